package mcproxy

// ReadBuffer is a growable, partially-filled byte region used to accumulate
// bytes read from a single connection between frame boundaries. It exposes a
// write-tail for appending freshly read bytes and a read-front for handing
// off completed frames without copying them.
//
// A ReadBuffer is never safe for concurrent use; it is owned exclusively by
// the dispatcher driving a single connection.
type ReadBuffer struct {
	buf []byte

	readOffset  int // start of the pending region
	writeOffset int // end of the pending region / start of writable tail

	targetSize    int
	minBufferSize int
	maxBufferSize int

	adjustInterval    uint64
	messagesSinceTidy uint64

	secure        *secureAllocator
	secureRelease func()
}

// NewReadBuffer allocates a ReadBuffer sized to cfg.MinBufferSize.
func NewReadBuffer(cfg BufferConfig) *ReadBuffer {
	cfg = mergeBufferConfig(cfg)

	b := &ReadBuffer{
		buf:           make([]byte, cfg.MinBufferSize),
		targetSize:    cfg.MinBufferSize,
		minBufferSize: cfg.MinBufferSize,
		maxBufferSize: cfg.MaxBufferSize,
		adjustInterval: cfg.AdjustInterval,
	}

	if cfg.UseSecureAllocator {
		b.secure = newSecureAllocator()
	}

	return b
}

// Cap returns the total capacity currently backing the buffer.
func (b *ReadBuffer) Cap() int {
	return len(b.buf)
}

// Pending returns the unparsed bytes accumulated so far. The slice aliases
// the buffer's internal storage and is only valid until the next call that
// mutates the buffer (AcquireWriteRegion, CommitWrite, ConsumeFront, grow).
func (b *ReadBuffer) Pending() []byte {
	return b.buf[b.readOffset:b.writeOffset]
}

// PendingLen returns the number of unparsed bytes currently buffered.
func (b *ReadBuffer) PendingLen() int {
	return b.writeOffset - b.readOffset
}

// AcquireWriteRegion returns a contiguous writable region at the tail of the
// buffer, performing exactly one adjustment (reset, reclaim, or grow) first.
// The returned slice is only valid until the next mutating call.
func (b *ReadBuffer) AcquireWriteRegion() ([]byte, error) {
	switch {
	case b.PendingLen() == 0 && len(b.buf) > 0:
		// (a) nothing pending: rewind cursors to the start of the buffer.
		b.readOffset = 0
		b.writeOffset = 0
	case b.readOffset > 0:
		// (b) reclaim headroom consumed by already-delivered frames.
		n := copy(b.buf, b.buf[b.readOffset:b.writeOffset])
		b.readOffset = 0
		b.writeOffset = n
	default:
		// (c) no headroom to reclaim: grow the backing array.
		if err := b.grow(b.targetSize); err != nil {
			return nil, err
		}
	}

	return b.buf[b.writeOffset:], nil
}

// CommitWrite extends the pending region by n bytes. The caller must have
// obtained a region of at least n bytes from the most recent
// AcquireWriteRegion call.
func (b *ReadBuffer) CommitWrite(n int) {
	b.writeOffset += n
}

// ConsumeFront advances the read cursor by n bytes without moving memory.
func (b *ReadBuffer) ConsumeFront(n int) {
	b.readOffset += n
}

// EnsureCapacity grows the buffer, if needed, so that frameSize bytes fit in
// the pending-plus-tail region, raising the steady-state target size along
// the way. It is a no-op if the buffer already has enough room.
func (b *ReadBuffer) EnsureCapacity(frameSize int) error {
	available := b.PendingLen() + (len(b.buf) - b.writeOffset)
	if available >= frameSize {
		return nil
	}

	if frameSize > b.targetSize {
		b.targetSize = frameSize
	}

	// When a full header has already arrived but the body has not, and a
	// secure allocator is configured, route the growth through a freshly
	// allocated non-dumpable buffer sized exactly to the frame instead of
	// growing the ordinary backing array. Allocation failure here is
	// non-fatal: fall through to the normal growth path.
	if b.secure != nil && b.PendingLen() > 0 && b.transferToSecure(frameSize) {
		return nil
	}

	additional := frameSize - available
	return b.grow(additional)
}

// NotifyFrameParsed records that one frame has been fully delivered and
// consumed, running the shrink policy evaluation. Must be called once per
// completed dispatch cycle.
func (b *ReadBuffer) NotifyFrameParsed() {
	b.messagesSinceTidy++

	if b.messagesSinceTidy < b.adjustInterval {
		return
	}
	if len(b.buf) <= b.maxBufferSize {
		return
	}
	if b.PendingLen() != 0 {
		return
	}

	shrinkTo := b.targetSize
	if shrinkTo > b.maxBufferSize {
		shrinkTo = b.maxBufferSize
	}
	if shrinkTo < b.minBufferSize {
		shrinkTo = b.minBufferSize
	}

	b.buf = make([]byte, shrinkTo)
	b.readOffset = 0
	b.writeOffset = 0
	b.messagesSinceTidy = 0
}

// MessagesSinceAdjust exposes the shrink-evaluation counter for tests.
func (b *ReadBuffer) MessagesSinceAdjust() uint64 {
	return b.messagesSinceTidy
}

// grow reserves at least `additional` more bytes of tail capacity by copying
// the pending bytes into a fresh heap slice. It never uses the secure
// allocator; EnsureCapacity goes through transferToSecure for that.
func (b *ReadBuffer) grow(additional int) error {
	if additional < 1 {
		additional = 1
	}

	newCap := len(b.buf) + additional
	if newCap < b.minBufferSize {
		newCap = b.minBufferSize
	}

	grown := make([]byte, newCap)
	n := copy(grown, b.buf[b.readOffset:b.writeOffset])
	b.buf = grown
	b.writeOffset = n
	b.readOffset = 0

	return nil
}

// transferToSecure copies the pending region into a freshly allocated
// non-dumpable buffer sized to exactly frameSize bytes. Used on the
// large-frame path when a full header but not yet a full body has arrived.
// Allocation failure here is non-fatal: the caller falls back to the normal
// growth path instead.
func (b *ReadBuffer) transferToSecure(frameSize int) bool {
	if b.secure == nil {
		return false
	}

	secureBuf, release, err := b.secure.alloc(frameSize)
	if err != nil {
		return false
	}

	n := copy(secureBuf, b.buf[b.readOffset:b.writeOffset])

	if b.secureRelease != nil {
		b.secureRelease()
	}

	b.buf = secureBuf
	b.secureRelease = release
	b.readOffset = 0
	b.writeOffset = n

	return true
}

// Close releases any secure allocation currently backing the buffer. Safe to
// call on a buffer that never used the secure allocator.
func (b *ReadBuffer) Close() {
	if b.secureRelease != nil {
		b.secureRelease()
		b.secureRelease = nil
	}
}
