package mcproxy

import (
	"encoding/binary"
	"errors"
	"io"
)

// ReadByte reads byte from given reader.
func ReadByte(reader io.Reader) (byte, error) {
	var buff [1]byte
	_, err := reader.Read(buff[:])
	if err != nil {
		return 0, err
	}

	return buff[0], nil
}

// ReadBool reads bool from given reader.
func ReadBool(reader io.Reader) (bool, error) {
	value, err := ReadByte(reader)
	if err != nil {
		return false, err
	}

	if value > 0 {
		return true, nil
	} else {
		return false, nil
	}
}

// ReadInt16 reads int16 from given reader.
func ReadInt16(reader io.Reader, byteOrder ...binary.ByteOrder) (int16, error) {
	var buff [2]byte
	_, err := reader.Read(buff[:])
	if err != nil {
		return 0, err
	}

	var order binary.ByteOrder = binary.BigEndian
	if len(byteOrder) > 0 {
		order = byteOrder[0]
	}

	return int16(order.Uint16(buff[:])), nil
}

// ReadInt32 reads int32 from given reader.
func ReadInt32(reader io.Reader, byteOrder ...binary.ByteOrder) (int32, error) {
	var buff [4]byte
	_, err := reader.Read(buff[:])
	if err != nil {
		return 0, err
	}

	var order binary.ByteOrder = binary.BigEndian
	if len(byteOrder) > 0 {
		order = byteOrder[0]
	}

	return int32(order.Uint32(buff[:])), nil
}

// ReadInt64 reads int64 from given reader.
func ReadInt64(reader io.Reader, byteOrder ...binary.ByteOrder) (int64, error) {
	var buff [8]byte
	_, err := reader.Read(buff[:])
	if err != nil {
		return 0, err
	}

	var order binary.ByteOrder = binary.BigEndian
	if len(byteOrder) > 0 {
		order = byteOrder[0]
	}

	return int64(order.Uint64(buff[:])), nil
}

// ReadVarInt reads var int from given reader.
func ReadVarInt(reader io.Reader) (int, error) {
	var value int
	var position int

	for {
		currentByte, err := ReadByte(reader)
		if err != nil {
			return 0, err
		}

		value |= int(currentByte) & segmentBits << position

		if (int(currentByte) & continueBit) == 0 {
			break
		}

		position += 7

		if position >= 32 {
			return 0, errors.New("invalid size of VarInt")
		}
	}

	return value, nil
}

// ReadVarLong reads var int64 from given reader.
func ReadVarLong(reader io.Reader) (int64, error) {
	var value int64
	var position int64

	for {
		currentByte, err := ReadByte(reader)
		if err != nil {
			return 0, err
		}

		value |= int64(currentByte) & int64(segmentBits) << position

		if (int(currentByte) & continueBit) == 0 {
			break
		}

		position += 7

		if position >= 64 {
			return 0, errors.New("invalid size of VarLong")
		}
	}

	return value, nil
}

// DecodeUint16 reads a big-endian uint16 directly out of data, without an io.Reader's per-call
// overhead. ParseCaretHeader uses this for its header_size field, decoding out of an
// already-buffered frame header instead of pulling bytes off the wire one call at a time.
func DecodeUint16(data []byte) uint16 {
	return binary.BigEndian.Uint16(data)
}

// DecodeUint32 reads a big-endian uint32 directly out of data. ParseUmbrellaHeader and
// ParseCaretHeader use this for their body_size/type_id fields.
func DecodeUint32(data []byte) uint32 {
	return binary.BigEndian.Uint32(data)
}

// DecodeUint64 reads a big-endian uint64 directly out of data. ParseUmbrellaHeader and
// ParseCaretHeader use this for their request_id fields.
func DecodeUint64(data []byte) uint64 {
	return binary.BigEndian.Uint64(data)
}

// DecodeBool mirrors ReadBool's on-the-wire rule (non-zero is true) for a single already-buffered
// byte. ParseUmbrellaHeader uses this for its reply-flag byte.
func DecodeBool(b byte) bool {
	return b > 0
}

// ReadBytes reads exactly n bytes from reader, looping over partial reads the way WriteBytes loops
// over partial writes. Used to pull a frame's header or body off a live backend connection, where a
// single Read call is not guaranteed to fill the buffer.
func ReadBytes(reader io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return nil, err
	}

	return buf, nil
}

// ReadFrameHeader reads and decodes one frame header for the given protocol off reader. Unlike
// ParseUmbrellaHeader/ParseCaretHeader, which decode out of an already-buffered region, this pulls
// the fixed number of header bytes directly off the wire first, for callers (BackendClient) that
// only have an io.Reader, not a FrameDispatcher's read buffer.
func ReadFrameHeader(reader io.Reader, protocol Protocol) (FrameDescriptor, error) {
	size := umbrellaHeaderSize
	if protocol == ProtocolCaret {
		size = caretHeaderSize
	}

	header, err := ReadBytes(reader, size)
	if err != nil {
		return FrameDescriptor{}, err
	}

	var fd FrameDescriptor
	var status ParseStatus
	if protocol == ProtocolCaret {
		fd, status = ParseCaretHeader(header)
	} else {
		fd, status = ParseUmbrellaHeader(header)
	}

	if status != ParseOk {
		return FrameDescriptor{}, ErrMalformedHeader
	}

	return fd, nil
}

// ReadByteArray reads a var-int-prefixed byte array from given reader.
func ReadByteArray(reader io.Reader) ([]byte, error) {
	size, err := ReadVarInt(reader)
	if err != nil {
		return nil, err
	}

	return ReadBytes(reader, size)
}

// ReadString reads a var-int-prefixed string from given reader.
func ReadString(reader io.Reader) (string, error) {
	value, err := ReadByteArray(reader)
	if err != nil {
		return "", err
	}

	return string(value), nil
}
