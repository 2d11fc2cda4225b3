package mcproxy

import (
	"encoding/binary"
	"io"
)

// WriteBytes writes all of value into given writer, looping over partial writes.
func WriteBytes(writer io.Writer, value []byte) error {
	remainingBytes := len(value)

	for remainingBytes > 0 {
		bytesWritten, err := writer.Write(value[len(value)-remainingBytes:])
		if err != nil {
			return err
		}

		remainingBytes -= bytesWritten
	}

	return nil
}

// WriteByte writes a byte into given writer.
func WriteByte(writer io.Writer, value byte) error {
	return WriteBytes(writer, []byte{value})
}

// WriteBool writes a bool into given writer.
func WriteBool(writer io.Writer, value bool) error {
	var b byte
	if value {
		b = 1
	}

	return WriteByte(writer, b)
}

// WriteInt16 writes int16 into given writer.
func WriteInt16(writer io.Writer, value int16, byteOrder ...binary.ByteOrder) error {
	var order binary.ByteOrder = binary.BigEndian
	if len(byteOrder) > 0 {
		order = byteOrder[0]
	}

	return binary.Write(writer, order, value)
}

// WriteInt32 writes int32 into given writer.
func WriteInt32(writer io.Writer, value int32, byteOrder ...binary.ByteOrder) error {
	var order binary.ByteOrder = binary.BigEndian
	if len(byteOrder) > 0 {
		order = byteOrder[0]
	}

	return binary.Write(writer, order, value)
}

// WriteInt64 writes int64 into given writer.
func WriteInt64(writer io.Writer, value int64, byteOrder ...binary.ByteOrder) error {
	var order binary.ByteOrder = binary.BigEndian
	if len(byteOrder) > 0 {
		order = byteOrder[0]
	}

	return binary.Write(writer, order, value)
}

// EncodeUint16 writes v as big-endian directly into the first 2 bytes of buf, without an
// io.Writer's per-call overhead. ParseCaretHeader's counterpart, EncodeCaretHeader, uses this for
// its header_size field when building an already-buffered frame header.
func EncodeUint16(buf []byte, v uint16) {
	binary.BigEndian.PutUint16(buf, v)
}

// EncodeUint32 writes v as big-endian directly into the first 4 bytes of buf. EncodeUmbrellaHeader
// and EncodeCaretHeader use this for their body_size/type_id fields.
func EncodeUint32(buf []byte, v uint32) {
	binary.BigEndian.PutUint32(buf, v)
}

// EncodeUint64 writes v as big-endian directly into the first 8 bytes of buf. EncodeUmbrellaHeader
// and EncodeCaretHeader use this for their request_id fields.
func EncodeUint64(buf []byte, v uint64) {
	binary.BigEndian.PutUint64(buf, v)
}

// EncodeBool packs a bool into a single byte, mirroring WriteBool's on-the-wire rule (1 for true, 0
// for false) for callers that already hold a byte slice instead of an io.Writer. EncodeUmbrellaHeader
// uses this for its reply-flag byte; EncodeCaretHeader packs its reply flag into a bitmask instead,
// since the rest of that byte is reserved for future flags.
func EncodeBool(value bool) byte {
	if value {
		return 1
	}

	return 0
}

// WriteVarInt writes var int into given writer.
func WriteVarInt(writer io.Writer, value int) error {
	for {
		if (value & ^segmentBits) == 0 {
			err := WriteByte(writer, byte(value))
			if err != nil {
				return err
			}

			break
		}

		err := WriteByte(writer, byte((value&segmentBits)|continueBit))
		if err != nil {
			return err
		}

		value >>= 7
	}

	return nil
}

// WriteVarLong writes var long into given writer.
func WriteVarLong(writer io.Writer, value int64) error {
	for {
		if (value & ^int64(segmentBits)) == 0 {
			err := WriteByte(writer, byte(value))
			if err != nil {
				return err
			}

			break
		}

		err := WriteByte(writer, byte((value&int64(segmentBits))|int64(continueBit)))
		if err != nil {
			return err
		}

		value >>= 7
	}

	return nil
}

// WriteFrameHeader encodes fd for the given protocol and writes it to writer, looping over
// partial writes via WriteBytes. The counterpart to ReadFrameHeader, for callers that only have an
// io.Writer (BackendClient) rather than a FrameDispatcher to hand a frame to.
func WriteFrameHeader(writer io.Writer, protocol Protocol, fd FrameDescriptor) error {
	var header []byte
	if protocol == ProtocolCaret {
		header = EncodeCaretHeader(fd)
	} else {
		header = EncodeUmbrellaHeader(fd)
	}

	return WriteBytes(writer, header)
}

// WriteByteArray writes byte array into given writer.
func WriteByteArray(writer io.Writer, value []byte) error {
	err := WriteVarInt(writer, len(value))
	if err != nil {
		return err
	}

	err = WriteBytes(writer, value)
	return err
}

// WriteString writes string into given writer.
func WriteString(writer io.Writer, value string) error {
	return WriteByteArray(writer, []byte(value))
}
