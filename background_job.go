package mcproxy

import (
	"fmt"
	"sync"
	"time"
)

// backgroundJob drives a named, ticker-scheduled function on its own goroutine. The name is
// folded into every panic it recovers so a router running several of these side by side (socket
// housekeeping, config-reload polling, stat flushing) can tell which one misbehaved from the
// panic handler alone, without the caller having to close over its own label.
type backgroundJob struct {
	name         string
	fn           func()
	panicHandler func(error)
	interval     time.Duration

	ticker  *time.Ticker
	m       sync.Mutex
	running bool
}

func newBackgroundJob(name string, interval time.Duration, fn func(), panicHandler func(error)) *backgroundJob {
	return &backgroundJob{
		name:         name,
		fn:           fn,
		panicHandler: panicHandler,
		interval:     interval,
	}
}

func (b *backgroundJob) Start() {
	b.m.Lock()
	defer b.m.Unlock()

	if b.running {
		return
	}
	b.running = true

	go func() {
		defer func() {
			if r := recover(); r != nil {
				b.panicHandler(fmt.Errorf("%s: %v", b.name, r))
			}
		}()

		b.ticker = time.NewTicker(b.interval)

		for range b.ticker.C {
			b.m.Lock()

			if !b.running {
				break
			}

			b.fn()

			b.m.Unlock()
		}
	}()
}

func (b *backgroundJob) Stop() {
	b.m.Lock()
	defer b.m.Unlock()

	if !b.running {
		return
	}
	b.running = false

	b.ticker.Stop()
}
