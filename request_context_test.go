package mcproxy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClientHandle struct {
	senderID string
	userIP   string
}

func (h stubClientHandle) SenderID() string      { return h.senderID }
func (h stubClientHandle) UserIPAddress() string { return h.userIP }

type stubProxyHandle struct {
	tree   RouteTree
	config *SharedConfig
}

func (p stubProxyHandle) RouteTree() RouteTree    { return p.tree }
func (p stubProxyHandle) Config() *SharedConfig   { return p.config }

func newTestContext(t *testing.T, tree RouteTree, stats StatsSink) (*TypedRequestContext[[]byte, Reply], *[]Reply) {
	t.Helper()

	var replies []Reply
	ctx := NewTypedRequestContext(TypedRequestContextOptions[[]byte, Reply]{
		Payload:   []byte("payload"),
		Requester: stubClientHandle{senderID: "conn-1", userIP: "10.0.0.5"},
		UserIP:    "10.0.0.5",
		Proxy:     stubProxyHandle{tree: tree},
		StatsSink: stats,
		Encode:    func(r Reply) Reply { return r },
		SendToClient: func(r Reply) {
			replies = append(replies, r)
		},
	})

	return ctx, &replies
}

func TestRequestContextProcessIsIdempotent(t *testing.T) {
	// given
	ctx, _ := newTestContext(t, noopRouteTree{}, nil)
	snapshotA := &SharedConfig{Generation: "a"}
	snapshotB := &SharedConfig{Generation: "b"}

	// when
	ctx.Process(snapshotA)
	ctx.Process(snapshotB)

	// then
	assert.True(t, ctx.Processing())
	assert.Equal(t, "a", ctx.ConfigSnapshot().Generation, "the first Process call wins")
}

func TestRequestContextStartProcessingRoutesThenReplies(t *testing.T) {
	// given
	var routedWith *RequestContext
	tree := RouteTreeFunc(func(c *RequestContext) {
		routedWith = c
		c.SendReply(Reply{TypeID: 1, Payload: []byte("ok")})
	})
	stats := &CountingStatsSink{}
	ctx, replies := newTestContext(t, tree, stats)

	// when
	ctx.Process(&SharedConfig{Generation: "gen-1"})
	ctx.StartProcessing()

	// then
	require.NotNil(t, routedWith)
	assert.Equal(t, ctx.RequestID(), routedWith.RequestID())
	require.Len(t, *replies, 1)
	assert.Equal(t, []byte("ok"), (*replies)[0].Payload)
	assert.True(t, ctx.Replied())
	assert.Equal(t, uint64(1), stats.Count())
	assert.Nil(t, ctx.TypedPayload(), "payload reference must be released after SendReply")
}

func TestRequestContextSendReplyTwicePanics(t *testing.T) {
	// given
	ctx, _ := newTestContext(t, noopRouteTree{}, nil)
	ctx.Process(&SharedConfig{})
	ctx.StartProcessing()
	ctx.SendReply(Reply{})

	// then
	assert.Panics(t, func() {
		ctx.SendReply(Reply{})
	})
}

func TestRequestContextSendReplyBeforeProcessingPanics(t *testing.T) {
	// given
	ctx, _ := newTestContext(t, noopRouteTree{}, nil)

	// then
	assert.Panics(t, func() {
		ctx.SendReply(Reply{})
	})
}

func TestRequestContextStartProcessingBeforeProcessPanics(t *testing.T) {
	// given
	ctx, _ := newTestContext(t, noopRouteTree{}, nil)

	// then
	assert.Panics(t, func() {
		ctx.StartProcessing()
	})
}

func TestRequestContextReplyTimeoutFiresSyntheticReply(t *testing.T) {
	// given: a route tree that never replies
	tree := RouteTreeFunc(func(*RequestContext) {})

	var replies []Reply
	ctx := NewTypedRequestContext(TypedRequestContextOptions[[]byte, Reply]{
		Payload:      []byte("payload"),
		Proxy:        stubProxyHandle{tree: tree},
		ReplyTimeout: 10 * time.Millisecond,
		Encode:       func(r Reply) Reply { return r },
		SendToClient: func(r Reply) {
			replies = append(replies, r)
		},
	})
	ctx.Process(&SharedConfig{})

	// when
	ctx.StartProcessing()

	// then
	require.Eventually(t, func() bool {
		return ctx.Replied()
	}, time.Second, time.Millisecond)
	require.Len(t, replies, 1)
	assert.ErrorIs(t, replies[0].Err, ErrReplyTimeout)
}

func TestRequestContextTimeoutDoesNotFireAfterRealReply(t *testing.T) {
	// given
	tree := RouteTreeFunc(func(c *RequestContext) {
		c.SendReply(Reply{Payload: []byte("fast")})
	})

	var replies []Reply
	ctx := NewTypedRequestContext(TypedRequestContextOptions[[]byte, Reply]{
		Payload:      []byte("payload"),
		Proxy:        stubProxyHandle{tree: tree},
		ReplyTimeout: 20 * time.Millisecond,
		Encode:       func(r Reply) Reply { return r },
		SendToClient: func(r Reply) {
			replies = append(replies, r)
		},
	})
	ctx.Process(&SharedConfig{})

	// when
	ctx.StartProcessing()
	time.Sleep(50 * time.Millisecond)

	// then
	require.Len(t, replies, 1, "the timeout must not fire a second reply")
	assert.Equal(t, []byte("fast"), replies[0].Payload)
}

func TestRequestContextOnReplyReceivedRunsLoggersInOrder(t *testing.T) {
	// given
	var order []string
	loggers := []ReplyLogger{
		ReplyLoggerFunc(func(*RequestContext, ReplyEvent) { order = append(order, "first") }),
		ReplyLoggerFunc(func(*RequestContext, ReplyEvent) { order = append(order, "second") }),
	}

	ctx := NewTypedRequestContext(TypedRequestContextOptions[[]byte, Reply]{
		Payload: []byte("x"),
		Loggers: loggers,
		Encode:  func(r Reply) Reply { return r },
	})

	// when
	ctx.OnReplyReceived(ReplyEvent{})

	// then
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestRequestContextAccessors(t *testing.T) {
	// given
	ctx := NewTypedRequestContext(TypedRequestContextOptions[[]byte, Reply]{
		Payload:   []byte("x"),
		Requester: stubClientHandle{senderID: "conn-9", userIP: "1.2.3.4"},
		UserIP:    "1.2.3.4",
		Encode:    func(r Reply) Reply { return r },
	})

	// then
	assert.Equal(t, "conn-9", ctx.SenderID())
	assert.Equal(t, "1.2.3.4", ctx.UserIPAddress())
	assert.False(t, ctx.Recording())
	assert.NotZero(t, ctx.RequestID())
}
