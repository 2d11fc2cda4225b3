package main

import (
	"sync"

	"github.com/mrizzuto/mcproxy"
	"github.com/mrizzuto/mcproxy/config"
)

// stubProxy is the minimal mcproxy.Proxy implementation this daemon shell
// wires in place of a real router: its route tree always replies
// immediately by echoing the frame it received, and its configuration
// snapshot is refreshed by the config.Watcher on every reload.
type stubProxy struct {
	mu     sync.RWMutex
	config *mcproxy.SharedConfig
	tree   mcproxy.RouteTree
}

func newStubProxy() *stubProxy {
	p := &stubProxy{
		config: &mcproxy.SharedConfig{Generation: "initial"},
	}
	p.tree = mcproxy.RouteTreeFunc(func(ctx *mcproxy.RequestContext) {
		echoRoute(ctx)
	})

	return p
}

// RouteTree implements mcproxy.Proxy.
func (p *stubProxy) RouteTree() mcproxy.RouteTree {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.tree
}

// Config implements mcproxy.Proxy.
func (p *stubProxy) Config() *mcproxy.SharedConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.config
}

func (p *stubProxy) replaceConfig(next *config.RouterConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.config = &mcproxy.SharedConfig{
		Generation: next.Generation,
		Data:       next,
	}
}

// echoRoute is the stand-in route tree: it always produces a single
// client-visible reply that echoes the frame payload back, as if every
// destination had been reached and replied with its own request. A real
// RouteTree implementation would fan out to backends and call SendReply
// only once the destination's reply (or a synthetic timeout) arrives.
func echoRoute(ctx *mcproxy.RequestContext) {
	payload, _ := ctx.Payload().([]byte)

	ctx.SendReply(mcproxy.Reply{
		TypeID:  0,
		Payload: payload,
	})
}
