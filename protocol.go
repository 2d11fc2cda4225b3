package mcproxy

// Protocol identifies which of the three supported wire protocols a
// connection is speaking. Detection happens once, on the first received
// byte, and is irrevocable for the lifetime of the connection.
type Protocol int

const (
	// ProtocolUnknown means detection has not yet run, or failed.
	ProtocolUnknown Protocol = iota

	// ProtocolAscii is the line-oriented, in-order memcached command protocol.
	ProtocolAscii

	// ProtocolUmbrella is the umbrella binary framing, magic byte 0x81.
	ProtocolUmbrella

	// ProtocolCaret is the caret binary framing, magic byte 0x12.
	ProtocolCaret
)

func (p Protocol) String() string {
	switch p {
	case ProtocolAscii:
		return "ascii"
	case ProtocolUmbrella:
		return "umbrella"
	case ProtocolCaret:
		return "caret"
	default:
		return "unknown"
	}
}

// OutOfOrder reports whether multiple requests may be in flight at once on a
// connection speaking this protocol, identified by request_id.
func (p Protocol) OutOfOrder() bool {
	return p == ProtocolUmbrella || p == ProtocolCaret
}

const (
	umbrellaMagicByte byte = 0x81
	caretMagicByte    byte = 0x12
)

// DetectProtocol classifies a connection from its first received byte. The
// binary magic bytes take priority over the ASCII verb-alphabet check since
// they are disjoint from it by construction.
func DetectProtocol(firstByte byte) Protocol {
	switch firstByte {
	case umbrellaMagicByte:
		return ProtocolUmbrella
	case caretMagicByte:
		return ProtocolCaret
	}

	if isAsciiVerbByte(firstByte) {
		return ProtocolAscii
	}

	return ProtocolUnknown
}

// isAsciiVerbByte reports whether b could begin a known ASCII memcached
// command verb (get, gets, set, add, replace, append, prepend, cas, delete,
// incr, decr, touch, gat, gats, stats, flush_all, version, verbosity, quit).
// Full verb validation is the job of the external ASCII sub-parser; this
// core only needs to disambiguate the first byte from the binary magic
// bytes above, so any lowercase ASCII letter is accepted provisionally.
func isAsciiVerbByte(b byte) bool {
	return b >= 'a' && b <= 'z'
}

// ParserState tracks the per-connection protocol-detection state carried
// across the dispatcher's read cycles.
type ParserState struct {
	firstByteSeen bool
	protocol      Protocol
}

// Observe records the first byte of a connection exactly once, fixing the
// protocol for the rest of the connection's lifetime. Subsequent calls are
// no-ops. Returns ErrUnknownProtocol if detection fails.
func (s *ParserState) Observe(firstByte byte) error {
	if s.firstByteSeen {
		return nil
	}

	s.protocol = DetectProtocol(firstByte)
	s.firstByteSeen = true

	if s.protocol == ProtocolUnknown {
		return ErrUnknownProtocol
	}

	return nil
}

// Protocol returns the detected protocol, or ProtocolUnknown before the
// first byte has been observed.
func (s *ParserState) Protocol() Protocol {
	return s.protocol
}

// FirstByteSeen reports whether Observe has run.
func (s *ParserState) FirstByteSeen() bool {
	return s.firstByteSeen
}

// OutOfOrder reports the out_of_order invariant: true iff the detected
// protocol is one of the binary framings.
func (s *ParserState) OutOfOrder() bool {
	return s.protocol.OutOfOrder()
}
