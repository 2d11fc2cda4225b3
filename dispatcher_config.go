package mcproxy

import "time"

// BufferConfig holds the tuning knobs for a ReadBuffer.
type BufferConfig struct {
	// MinBufferSize is the initial and steady-state buffer capacity per
	// connection (default: 4096).
	MinBufferSize int

	// MaxBufferSize is the capacity threshold above which the shrink-to-
	// steady-state policy runs (default: 1<<20).
	MaxBufferSize int

	// UseSecureAllocator routes large frames through the non-dumpable
	// allocator instead of ordinary heap growth (default: false).
	UseSecureAllocator bool

	// AdjustInterval is the number of frames between shrink evaluations
	// (default: 10,000).
	AdjustInterval uint64
}

func mergeBufferConfig(provided BufferConfig) BufferConfig {
	config := BufferConfig{
		MinBufferSize:  4096,
		MaxBufferSize:  1 << 20,
		AdjustInterval: 10_000,
	}

	if provided.MinBufferSize > 0 {
		config.MinBufferSize = provided.MinBufferSize
	}
	if provided.MaxBufferSize > 0 {
		config.MaxBufferSize = provided.MaxBufferSize
	}
	if provided.AdjustInterval > 0 {
		config.AdjustInterval = provided.AdjustInterval
	}
	config.UseSecureAllocator = provided.UseSecureAllocator

	return config
}

// DispatcherConfig holds the tuning knobs for a FrameDispatcher, layering the
// buffer knobs with the maximum frame size the dispatcher will accept before
// treating a header as malformed.
type DispatcherConfig struct {
	Buffer BufferConfig

	// MaxFrameSize is the maximum allowed header_size + body_size across
	// all protocols. Frames declaring more are rejected as malformed
	// (default: 64MB).
	MaxFrameSize uint32
}

func mergeDispatcherConfig(provided DispatcherConfig) DispatcherConfig {
	config := DispatcherConfig{
		Buffer:       mergeBufferConfig(provided.Buffer),
		MaxFrameSize: 64 << 20,
	}

	if provided.MaxFrameSize > 0 {
		config.MaxFrameSize = provided.MaxFrameSize
	}

	return config
}

// RequestContextConfig holds construction-time knobs shared by every
// RequestContext created for a given proxy.
type RequestContextConfig struct {
	// ReplyTimeout bounds how long StartProcessing waits for the route tree
	// to call SendReply before the context synthesizes an ErrReplyTimeout
	// reply itself (request_context.go's fireTimeout).
	ReplyTimeout time.Duration
}

func mergeRequestContextConfig(provided RequestContextConfig) RequestContextConfig {
	config := RequestContextConfig{
		ReplyTimeout: 750 * time.Millisecond,
	}

	if provided.ReplyTimeout > 0 {
		config.ReplyTimeout = provided.ReplyTimeout
	}

	return config
}
