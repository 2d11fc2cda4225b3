package mcproxy

import "time"

// TypedRequestContext extends RequestContext with a typed payload reference
// and a typed reply encoder. Different request kinds have different reply
// types and wire encoders but share the base lifecycle (construction,
// Process, StartProcessing, SendReply, OnReplyReceived); this is the only
// public construction path for a non-recording context (recording contexts
// come from CreateRecording and CreateRecordingNotify).
type TypedRequestContext[P any, R any] struct {
	*RequestContext

	req    *P
	encode func(R) Reply
}

// TypedRequestContextOptions groups the construction-time fields for a
// typed request context.
type TypedRequestContextOptions[P any, R any] struct {
	Payload          P
	Priority         Priority
	FailoverDisabled bool
	Requester        ClientHandle
	UserIP           string
	Proxy            Proxy
	StatsSink        StatsSink
	Loggers          []ReplyLogger
	OnComplete       CompletionHook

	// ReplyTimeout bounds how long StartProcessing waits for SendReply before
	// sending a synthetic ErrReplyTimeout reply itself. Zero falls back to
	// RequestContextConfig's default (see mergeRequestContextConfig).
	ReplyTimeout time.Duration

	// Encode translates a protocol-specific reply value into the wire-level
	// Reply sent through SendReply.
	Encode func(R) Reply

	// SendToClient performs the actual protocol-specific write once a reply
	// has been encoded. It is invoked by the base context's send_reply_impl.
	SendToClient func(Reply)
}

// NewTypedRequestContext constructs a context in exclusive-ownership mode,
// off the owning proxy thread. Neither the configuration snapshot nor
// shared ownership is installed yet; call Process to perform the hand-off.
func NewTypedRequestContext[P any, R any](opts TypedRequestContextOptions[P, R]) *TypedRequestContext[P, R] {
	payload := opts.Payload

	base := newBaseRequestContext(baseContextOptions{
		priority:         opts.Priority,
		failoverDisabled: opts.FailoverDisabled,
		requester:        opts.Requester,
		userIP:           opts.UserIP,
		proxy:            opts.Proxy,
		statsSink:        opts.StatsSink,
		loggers:          opts.Loggers,
		onComplete:       opts.OnComplete,
		payload:          &payload,
		replyTimeout:     mergeRequestContextConfig(RequestContextConfig{ReplyTimeout: opts.ReplyTimeout}).ReplyTimeout,
	})

	typed := &TypedRequestContext[P, R]{
		RequestContext: base,
		req:            &payload,
		encode:         opts.Encode,
	}

	sendToClient := opts.SendToClient
	base.sendReplyImpl = func(reply Reply) {
		if sendToClient != nil {
			sendToClient(reply)
		}
	}

	return typed
}

// TypedPayload returns the typed per-request-type payload reference, or nil
// once SendReply has released it.
func (t *TypedRequestContext[P, R]) TypedPayload() *P {
	if t.Payload() == nil {
		return nil
	}
	return t.req
}

// SendTypedReply encodes reply via the constructor-supplied encoder and
// routes it through the base context's SendReply, preserving the
// replied-exactly-once invariant.
func (t *TypedRequestContext[P, R]) SendTypedReply(reply R) {
	var encoded Reply
	if t.encode != nil {
		encoded = t.encode(reply)
	}

	t.RequestContext.SendReply(encoded)
}
