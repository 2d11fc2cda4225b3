package mcproxy

// secureAllocator hands out page-backed buffers that are locked into RAM and
// excluded from core dumps, for the large-frame path where a request body
// may carry sensitive payload bytes. It is process-wide state; each call
// site is expected to hold at most one outstanding allocation per
// connection and release it promptly.
type secureAllocator struct{}

func newSecureAllocator() *secureAllocator {
	return &secureAllocator{}
}

// alloc returns a buffer of exactly size bytes along with a release function
// the caller must invoke once the buffer is no longer needed. On platforms
// without page-pinning support, alloc degrades to an ordinary heap
// allocation rather than failing: callers treat a failure here as
// non-fatal and fall back to the normal growth path regardless.
func (a *secureAllocator) alloc(size int) ([]byte, func(), error) {
	return secureAlloc(size)
}
