package mcproxy

// Caret frame header layout (20 bytes, big-endian, all offsets fixed):
//
//	0       magic byte (0x12)
//	1       reply flag (bit 0), rest reserved
//	2..3    header_size  (uint16, widened to uint32)
//	4..7    body_size    (uint32)
//	8..11   type_id      (uint32)
//	12..19  request_id   (uint64)
//
// Caret carries the same logical fields as umbrella but a distinct, more
// compact layout, matching the real protocols' relationship: same framing
// contract, different bytes on the wire.
const caretHeaderSize = 20

// ParseCaretHeader decodes a fixed-layout caret header. It never mutates
// data and never allocates.
func ParseCaretHeader(data []byte) (FrameDescriptor, ParseStatus) {
	if len(data) == 0 || data[0] != caretMagicByte {
		return FrameDescriptor{}, ParseMalformed
	}

	if len(data) < caretHeaderSize {
		return FrameDescriptor{}, ParseNotEnoughData
	}

	headerSize := uint32(DecodeUint16(data[2:4]))
	if headerSize < caretHeaderSize {
		return FrameDescriptor{}, ParseMalformed
	}

	fd := FrameDescriptor{
		HeaderSize: headerSize,
		BodySize:   DecodeUint32(data[4:8]),
		TypeID:     DecodeUint32(data[8:12]),
		RequestID:  DecodeUint64(data[12:20]),
		ReplyFlag:  data[1]&0x01 != 0,
	}

	return fd, ParseOk
}

// EncodeCaretHeader writes fd into a 20-byte caret header, for tests and for
// round-trip encode/decode verification.
func EncodeCaretHeader(fd FrameDescriptor) []byte {
	buf := make([]byte, caretHeaderSize)

	buf[0] = caretMagicByte
	if fd.ReplyFlag {
		buf[1] = 0x01
	}

	EncodeUint16(buf[2:4], uint16(fd.HeaderSize))
	EncodeUint32(buf[4:8], fd.BodySize)
	EncodeUint32(buf[8:12], fd.TypeID)
	EncodeUint64(buf[12:20], fd.RequestID)

	return buf
}
