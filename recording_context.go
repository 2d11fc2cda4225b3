package mcproxy

import "sync"

// Baton is a one-shot synchronisation primitive signalled exactly once,
// used by the recording-notify constructor so a caller can block until a
// recording context's traversal has fully drained.
type Baton struct {
	once sync.Once
	done chan struct{}
}

// NewBaton returns a ready-to-signal Baton.
func NewBaton() *Baton {
	return &Baton{done: make(chan struct{})}
}

// Signal fires the baton. Only the first call has any effect.
func (b *Baton) Signal() {
	b.once.Do(func() {
		close(b.done)
	})
}

// Wait blocks until Signal has been called.
func (b *Baton) Wait() {
	<-b.done
}

// RecordingOptions configures a recording RequestContext: recording = true,
// no config snapshot, no real I/O. Traversal visits are observed through
// DestinationCB and ShardSplitCB instead of being executed.
type RecordingOptions struct {
	Proxy Proxy

	// DestinationCB is invoked when route-tree traversal visits a
	// destination, via RecordDestination.
	DestinationCB func(pool string, index int, ap AccessPoint)

	// ShardSplitCB is invoked when route-tree traversal visits a shard
	// splitter, via RecordShardSplitter.
	ShardSplitCB func(splitter string)
}

// CreateRecording constructs a recording RequestContext: a context that
// never emits real I/O, and instead invokes the supplied observation
// callbacks when the route tree would visit destinations or shard
// splitters.
func CreateRecording(opts RecordingOptions) *RequestContext {
	ctx := newBaseRequestContext(baseContextOptions{
		proxy: opts.Proxy,
	})

	ctx.recording = true
	ctx.destinationCB = opts.DestinationCB
	ctx.shardSplitCB = opts.ShardSplitCB

	return ctx
}

// CreateRecordingNotify is the "notify" form of CreateRecording: the
// returned context additionally signals baton exactly once, on
// destruction, once all traversals it recorded have run. Since this core
// has no destructor hook, the caller is expected to call Release when the
// context is no longer needed (e.g. via defer immediately after
// construction, or after explicitly driving traversal to completion).
func CreateRecordingNotify(opts RecordingOptions, baton *Baton) *RequestContext {
	ctx := CreateRecording(opts)
	ctx.notifyBaton = baton
	return ctx
}
