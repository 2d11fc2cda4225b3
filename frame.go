package mcproxy

// FrameDescriptor is produced by header parsing. header_size and body_size
// are authoritative: the dispatcher never interprets body bytes itself.
type FrameDescriptor struct {
	HeaderSize uint32
	BodySize   uint32
	TypeID     uint32
	RequestID  uint64
	ReplyFlag  bool
}

// TotalSize returns header_size + body_size, the number of bytes that must
// be available before the frame can be delivered.
func (f FrameDescriptor) TotalSize() uint32 {
	return f.HeaderSize + f.BodySize
}

// ParseStatus is the tri-state result of a binary header parse.
type ParseStatus int

const (
	// ParseOk means a complete, well-formed header was decoded.
	ParseOk ParseStatus = iota

	// ParseNotEnoughData means more bytes are needed before the header can
	// be fully decoded.
	ParseNotEnoughData

	// ParseMalformed means the bytes present are not a valid header for
	// this protocol; fatal for the connection.
	ParseMalformed
)

// HeaderParser is the pure-function signature both binary protocols provide:
// given the pending buffer, decode (or fail to decode) one frame header.
// Implementations must not mutate data or allocate.
type HeaderParser func(data []byte) (FrameDescriptor, ParseStatus)
