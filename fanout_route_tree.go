package mcproxy

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// BackendDialer opens a connection to ap and performs a single request/reply
// round trip, returning the backend's reply. request is the RequestContext's
// raw payload (see RequestContext.Payload), typed per the caller's protocol.
type BackendDialer func(ctx context.Context, ap AccessPoint, request any) (Reply, error)

// FanoutRouteTree is a RouteTree that visits a fixed set of destinations
// concurrently, bounded by MaxConcurrency in flight at once, and merges their
// replies into a single client-visible reply. It is the simplest traversal
// shape a route tree can have: no sharding, no failover, just a bounded
// fan-out and a collect step.
type FanoutRouteTree struct {
	Destinations   []AccessPoint
	Dial           BackendDialer
	Merge          func(replies []Reply) Reply
	MaxConcurrency int64
	Timeout        time.Duration
}

// Route implements RouteTree. It passes every destination it visits to
// RecordDestination (which forwards only when the context has a destination
// callback set), fans the request out to each with at most
// MaxConcurrency requests in flight at once, and sends the merged reply.
func (f *FanoutRouteTree) Route(ctx *RequestContext) {
	maxConcurrency := f.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = int64(len(f.Destinations))
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	deadline := WithRequestID(context.Background(), ctx.RequestID())
	var cancel context.CancelFunc
	if f.Timeout > 0 {
		deadline, cancel = context.WithTimeout(deadline, f.Timeout)
		defer cancel()
	}

	sem := semaphore.NewWeighted(maxConcurrency)
	group, gctx := errgroup.WithContext(deadline)

	replies := make([]Reply, len(f.Destinations))
	request := ctx.Payload()

	for i, ap := range f.Destinations {
		i, ap := i, ap

		ctx.RecordDestination(ap.Pool, i, ap)

		group.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				replies[i] = Reply{Err: err}
				return nil
			}
			defer sem.Release(1)

			started := time.Now()
			reply, err := f.Dial(gctx, ap, request)
			if err != nil {
				reply = Reply{Err: err}
			}
			replies[i] = reply

			ctx.OnReplyReceived(ReplyEvent{
				Pool:        ap.Pool,
				AccessPoint: ap,
				Reply:       reply,
				TStart:      started,
				TEnd:        time.Now(),
			})

			return nil
		})
	}

	_ = group.Wait()

	merge := f.Merge
	if merge == nil {
		merge = firstSuccessfulReply
	}

	ctx.SendReply(merge(replies))
}

// firstSuccessfulReply is the default Merge strategy: the first reply
// without an error, or the last reply seen if every destination failed.
func firstSuccessfulReply(replies []Reply) Reply {
	var last Reply
	for _, r := range replies {
		last = r
		if r.Err == nil {
			return r
		}
	}
	return last
}
