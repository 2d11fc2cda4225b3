//go:build linux

package mcproxy

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// secureAlloc mlocks a fresh page-aligned buffer and marks it do-not-dump via
// madvise(MADV_DONTDUMP), matching the non-dumpable large-frame path.
// Failure at either syscall is reported to the caller so it can fall back to
// an ordinary allocation instead of losing the frame.
func secureAlloc(size int) ([]byte, func(), error) {
	if size < 1 {
		size = 1
	}

	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, nil, fmt.Errorf("mcproxy: mmap secure buffer: %w", err)
	}

	if err := unix.Mlock(buf); err != nil {
		_ = unix.Munmap(buf)
		return nil, nil, fmt.Errorf("mcproxy: mlock secure buffer: %w", err)
	}

	if err := unix.Madvise(buf, unix.MADV_DONTDUMP); err != nil {
		_ = unix.Munlock(buf)
		_ = unix.Munmap(buf)
		return nil, nil, fmt.Errorf("mcproxy: madvise secure buffer: %w", err)
	}

	release := func() {
		_ = unix.Munlock(buf)
		_ = unix.Munmap(buf)
	}

	return buf, release, nil
}
