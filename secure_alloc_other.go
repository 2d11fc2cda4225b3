//go:build !linux

package mcproxy

// secureAlloc degrades to an ordinary heap allocation on platforms that
// don't expose mlock/madvise, matching the "allocation failure falls back to
// the normal path" error-handling rule rather than pretending to pin pages
// it cannot pin.
func secureAlloc(size int) ([]byte, func(), error) {
	if size < 1 {
		size = 1
	}

	return make([]byte, size), func() {}, nil
}
