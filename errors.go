package mcproxy

import "errors"

// ErrUnknownProtocol is returned when the first byte of a connection does not
// match any known protocol prefix. The connection must be terminated.
var ErrUnknownProtocol = errors.New("mcproxy: unknown protocol")

// ErrMalformedHeader is returned when a binary header parser recognizes the
// protocol but cannot make sense of the header bytes. Fatal for the connection.
var ErrMalformedHeader = errors.New("mcproxy: malformed header")

// ErrAllocationFailed is returned when the buffer manager cannot grow the
// read buffer. Fatal for the connection.
var ErrAllocationFailed = errors.New("mcproxy: buffer allocation failed")

// ErrCallbackRefused is returned by the dispatcher when a delivery callback
// returns false, signalling a protocol violation discovered downstream.
var ErrCallbackRefused = errors.New("mcproxy: callback refused frame")

// ErrFrameTooLarge is returned when a frame descriptor declares a size past
// the configured maximum frame size.
var ErrFrameTooLarge = errors.New("mcproxy: frame exceeds maximum size")

// ErrReplyTimeout is the error carried by the synthetic reply a RequestContext
// sends itself when its reply timeout elapses before the route tree produces
// one.
var ErrReplyTimeout = errors.New("mcproxy: reply timeout elapsed")

// ErrorCode classifies a parse_error the dispatcher reports to its owner.
type ErrorCode int

const (
	// ErrRemote denotes an error attributable to the remote peer (malformed
	// input, protocol violation).
	ErrRemote ErrorCode = iota

	// ErrLocal denotes an error attributable to this process (allocation
	// failure, internal invariant violation).
	ErrLocal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrRemote:
		return "REMOTE_ERROR"
	case ErrLocal:
		return "LOCAL_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}
