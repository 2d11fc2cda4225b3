package mcproxy

// Umbrella frame header layout (24 bytes, big-endian, all offsets fixed):
//
//	0       magic byte (0x81)
//	1       version / reserved
//	2       reply flag (0 or 1)
//	3       reserved
//	4..7    header_size  (uint32)
//	8..11   body_size    (uint32)
//	12..15  type_id      (uint32)
//	16..23  request_id   (uint64)
const umbrellaHeaderSize = 24

// ParseUmbrellaHeader decodes a fixed-layout umbrella header. It never
// mutates data and never allocates.
func ParseUmbrellaHeader(data []byte) (FrameDescriptor, ParseStatus) {
	if len(data) == 0 || data[0] != umbrellaMagicByte {
		return FrameDescriptor{}, ParseMalformed
	}

	if len(data) < umbrellaHeaderSize {
		return FrameDescriptor{}, ParseNotEnoughData
	}

	headerSize := DecodeUint32(data[4:8])
	if headerSize < umbrellaHeaderSize {
		return FrameDescriptor{}, ParseMalformed
	}

	fd := FrameDescriptor{
		HeaderSize: headerSize,
		BodySize:   DecodeUint32(data[8:12]),
		TypeID:     DecodeUint32(data[12:16]),
		RequestID:  DecodeUint64(data[16:24]),
		ReplyFlag:  DecodeBool(data[2]),
	}

	return fd, ParseOk
}

// EncodeUmbrellaHeader writes fd into a 24-byte umbrella header, for tests
// and for round-trip encode/decode verification.
func EncodeUmbrellaHeader(fd FrameDescriptor) []byte {
	buf := make([]byte, umbrellaHeaderSize)

	buf[0] = umbrellaMagicByte
	buf[1] = 0
	buf[2] = EncodeBool(fd.ReplyFlag)
	buf[3] = 0

	EncodeUint32(buf[4:8], fd.HeaderSize)
	EncodeUint32(buf[8:12], fd.BodySize)
	EncodeUint32(buf[12:16], fd.TypeID)
	EncodeUint64(buf[16:24], fd.RequestID)

	return buf
}
