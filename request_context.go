package mcproxy

import (
	"sync"
	"sync/atomic"
	"time"
)

// Priority classifies the urgency of a request for scheduling purposes
// external to this core (worker pool selection, load-shedding).
type Priority int

const (
	// PriorityCritical requests are never shed.
	PriorityCritical Priority = iota

	// PriorityNormal is the default priority.
	PriorityNormal

	// PriorityLow requests may be shed under load.
	PriorityLow
)

// ClientHandle identifies the sender of a request: the connection (or
// equivalent) that will eventually receive the client-visible reply.
type ClientHandle interface {
	SenderID() string
	UserIPAddress() string
}

// SharedConfig is the routing configuration snapshot a RequestContext keeps
// alive for the duration of its processing. It is shared-read-only once
// installed and never mutated by the context itself.
type SharedConfig struct {
	// Generation is an opaque, human-legible identifier for this snapshot,
	// useful for correlating a request with the config reload that produced
	// the routing decisions it saw.
	Generation string
	Data       any
}

// Proxy is the owning proxy thread's handle, exposing the route tree and
// configuration a context was constructed against.
type Proxy interface {
	RouteTree() RouteTree
	Config() *SharedConfig
}

var nextRequestID uint64

func allocateRequestID() uint64 {
	return atomic.AddUint64(&nextRequestID, 1)
}

// RequestContext represents one in-flight logical request: the object that
// tracks arrival, fan-out to backends, and the single client-visible reply.
//
// A RequestContext begins under exclusive ownership: only the goroutine
// that constructed it may touch it. Process moves it to shared ownership —
// from that point any sub-request the route tree creates may hold a
// reference, and the context lives until the last one drops.
type RequestContext struct {
	requestID        uint64
	priority         Priority
	failoverDisabled bool
	recording        bool
	userIP           string
	requester        ClientHandle
	proxy            Proxy
	statsSink        StatsSink
	loggers          []ReplyLogger
	onComplete       CompletionHook
	destinationCB    func(pool string, index int, ap AccessPoint)
	shardSplitCB     func(splitter string)
	notifyBaton      *Baton

	replyTimeout time.Duration
	timeoutTimer *time.Timer

	processMu      sync.Once
	configSnapshot *SharedConfig

	processing uint32
	replied    uint32

	payloadMu sync.RWMutex
	payload   any

	sendReplyImpl func(Reply)
}

// baseContextOptions groups the construction-time fields shared by every
// public constructor (typed and recording).
type baseContextOptions struct {
	priority         Priority
	failoverDisabled bool
	requester        ClientHandle
	userIP           string
	proxy            Proxy
	statsSink        StatsSink
	loggers          []ReplyLogger
	onComplete       CompletionHook
	payload          any
	replyTimeout     time.Duration
}

// newBaseRequestContext is the internal contract every typed constructor
// funnels through; it is not exported because the public construction paths
// are NewTypedRequestContext (see request_context_typed.go) and, for recording
// contexts, CreateRecording and CreateRecordingNotify.
func newBaseRequestContext(opts baseContextOptions) *RequestContext {
	sink := opts.statsSink
	if sink == nil {
		sink = NopStatsSink{}
	}

	return &RequestContext{
		requestID:        allocateRequestID(),
		priority:         opts.priority,
		failoverDisabled: opts.failoverDisabled,
		requester:        opts.requester,
		userIP:           opts.userIP,
		proxy:            opts.proxy,
		statsSink:        sink,
		loggers:          opts.loggers,
		onComplete:       opts.onComplete,
		payload:          opts.payload,
		replyTimeout:     opts.replyTimeout,
	}
}

// RequestID returns the process-unique identifier assigned at construction.
func (c *RequestContext) RequestID() uint64 {
	return c.requestID
}

// Priority returns the request's scheduling priority.
func (c *RequestContext) Priority() Priority {
	return c.priority
}

// FailoverDisabled reports whether this request must not be retried against
// a failover destination.
func (c *RequestContext) FailoverDisabled() bool {
	return c.failoverDisabled
}

// Recording reports whether this context observes traversal instead of
// performing real I/O.
func (c *RequestContext) Recording() bool {
	return c.recording
}

// SenderID returns the identity of the client that sent this request, or
// the empty string if none was supplied.
func (c *RequestContext) SenderID() string {
	if c.requester == nil {
		return ""
	}
	return c.requester.SenderID()
}

// UserIPAddress returns the originating client's address.
func (c *RequestContext) UserIPAddress() string {
	return c.userIP
}

// ProxyHandle returns the owning proxy's handle.
func (c *RequestContext) ProxyHandle() Proxy {
	return c.proxy
}

// ProxyRoute returns the route tree the owning proxy traverses requests
// with.
func (c *RequestContext) ProxyRoute() RouteTree {
	if c.proxy == nil {
		return noopRouteTree{}
	}
	return c.proxy.RouteTree()
}

// ProxyConfig returns the owning proxy's current configuration, distinct
// from the per-context snapshot installed at Process.
func (c *RequestContext) ProxyConfig() *SharedConfig {
	if c.proxy == nil {
		return nil
	}
	return c.proxy.Config()
}

// ConfigSnapshot returns the configuration snapshot installed at Process,
// or nil before hand-off (or always, for a recording context).
func (c *RequestContext) ConfigSnapshot() *SharedConfig {
	return c.configSnapshot
}

// Processing reports whether Process has run.
func (c *RequestContext) Processing() bool {
	return atomic.LoadUint32(&c.processing) == 1
}

// Replied reports whether SendReply has already fired.
func (c *RequestContext) Replied() bool {
	return atomic.LoadUint32(&c.replied) == 1
}

// Process moves the context from exclusive to shared ownership: it attaches
// the configuration snapshot, keeping it alive for the request's duration,
// and marks the context as processing. It is the only place a config
// snapshot is installed (never on a recording context), and it runs at most
// once.
func (c *RequestContext) Process(snapshot *SharedConfig) {
	c.processMu.Do(func() {
		if !c.recording {
			c.configSnapshot = snapshot
		}
		atomic.StoreUint32(&c.processing, 1)
	})
}

// StartProcessing launches route-tree traversal. It must be called exactly
// once, on the owning proxy thread, after Process. Calling it on a
// recording context is a programming error.
func (c *RequestContext) StartProcessing() {
	if c.recording {
		panic("mcproxy: StartProcessing called on a recording context")
	}
	if !c.Processing() {
		panic("mcproxy: StartProcessing called before Process")
	}

	if c.replyTimeout > 0 {
		c.timeoutTimer = time.AfterFunc(c.replyTimeout, c.fireTimeout)
	}

	tree := c.ProxyRoute()
	if tree == nil {
		tree = noopRouteTree{}
	}

	tree.Route(c)
}

// fireTimeout sends a synthetic timeout reply if the route tree has not
// replied by the time replyTimeout elapses. A no-op if SendReply already ran.
func (c *RequestContext) fireTimeout() {
	if !atomic.CompareAndSwapUint32(&c.replied, 0, 1) {
		return
	}

	if c.sendReplyImpl != nil {
		c.sendReplyImpl(Reply{Err: ErrReplyTimeout})
	}

	c.releasePayload()

	if c.onComplete != nil {
		c.onComplete(c)
	}
	c.statsSink.RecordCompletion(c)
}

// SendReply is the terminal operation for the client-visible reply.
// Preconditions: Replied() == false and Processing() == true. It releases
// the request payload reference; subsequent Payload() access after this
// call is a programming error, matching the spec's "undefined behavior,
// detected as misuse" resolution (a hard panic, here and on double-call).
func (c *RequestContext) SendReply(reply Reply) {
	if !c.Processing() {
		panic("mcproxy: SendReply called before Process/StartProcessing")
	}
	if !atomic.CompareAndSwapUint32(&c.replied, 0, 1) {
		panic("mcproxy: SendReply called twice on the same request context")
	}
	if c.timeoutTimer != nil {
		c.timeoutTimer.Stop()
	}

	if c.sendReplyImpl != nil {
		c.sendReplyImpl(reply)
	}

	c.releasePayload()

	if c.onComplete != nil {
		c.onComplete(c)
	}
	c.statsSink.RecordCompletion(c)
}

// OnReplyReceived is called for every reply from a backend, whether or not
// it becomes the client-visible reply. In recording mode it returns
// immediately. Otherwise it runs the primary logger followed by any
// additional loggers installed at construction, in that order.
func (c *RequestContext) OnReplyReceived(evt ReplyEvent) {
	if c.recording {
		return
	}

	for _, logger := range c.loggers {
		logger.LogReply(c, evt)
	}
}

// RecordDestination forwards to the destination callback when one is set
// (CreateRecording and CreateRecordingNotify install it) and does nothing
// otherwise. It does not check Recording().
func (c *RequestContext) RecordDestination(pool string, index int, ap AccessPoint) {
	if c.destinationCB != nil {
		c.destinationCB(pool, index, ap)
	}
}

// RecordShardSplitter forwards to the shard-split callback when one is set
// and does nothing otherwise. It does not check Recording().
func (c *RequestContext) RecordShardSplitter(splitter string) {
	if c.shardSplitCB != nil {
		c.shardSplitCB(splitter)
	}
}

// Payload returns the per-request-type payload reference installed at
// construction, or nil if it has already been released by SendReply.
func (c *RequestContext) Payload() any {
	c.payloadMu.RLock()
	defer c.payloadMu.RUnlock()

	return c.payload
}

func (c *RequestContext) releasePayload() {
	c.payloadMu.Lock()
	defer c.payloadMu.Unlock()

	c.payload = nil
}

// Release marks this context as fully drained, signalling its notify
// baton (if any) exactly once. Callers of CreateRecordingNotify must call
// Release once all traversals they recorded have run; every other context
// kind may ignore it, as it is a no-op without a baton.
func (c *RequestContext) Release() {
	if c.notifyBaton != nil {
		c.notifyBaton.Signal()
	}
}
