package mcproxy

import (
	"fmt"
	"sync/atomic"
)

// ForkingStrategy defines the way new connections are handled by the associated TCP server.
// Most naive implementation is to start a new goroutine for each new connection,
// and make this goroutine responsible for the whole lifecycle of the connection.
// This implementation might not fit the needs of some highly-concurrent servers,
// so other implementations (like worker pool) may be implemented on top of this interface.
type ForkingStrategy interface {
	// OnStart is called once, after server start.
	OnStart(panicHandler func(error))

	// OnAccept is called for every connection accepted by the server.
	// The implementation should handle all the interactions with the socket,
	// closing it after use and recovering from any potential panic.
	OnAccept(socket *Socket)

	// OnMetricsUpdate is called every time the server updates its metrics.
	OnMetricsUpdate(metrics *ServerMetrics)

	// OnStop is called once, after server stops.
	OnStop()
}

/*
	Goroutine Per Connection
*/

type goroutinePerConnection struct {
	handler      SocketHandler
	goroutines   int32
	panicHandler func(error)
}

func (g *goroutinePerConnection) OnStart(panicHandler func(error)) {
	g.panicHandler = panicHandler
}

func (g *goroutinePerConnection) OnStop() {
}

func (g *goroutinePerConnection) OnMetricsUpdate(metrics *ServerMetrics) {
	metrics.Goroutines = int(atomic.LoadInt32(&g.goroutines))
}

func (g *goroutinePerConnection) OnAccept(socket *Socket) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				if g.panicHandler != nil {
					g.panicHandler(fmt.Errorf("%v", r))
				}
			}
		}()

		defer func() {
			_ = socket.Close()
			socket.recycle()
			atomic.AddInt32(&g.goroutines, -1)
		}()

		atomic.AddInt32(&g.goroutines, 1)

		if g.handler != nil {
			g.handler(socket)
		}
	}()
}

// GoroutinePerConnection is the most naive implementation of the ForkingStrategy.
// This is the recommended implementation for most of the general-purpose TCP servers.
// It starts a new goroutine for every new connection. The handler associated with the connection will be responsible
// for handling blocking operations on this connection.
// Connections are automatically closed after their handler finishes.
func GoroutinePerConnection(handler SocketHandler) ForkingStrategy {
	return &goroutinePerConnection{
		handler: handler,
	}
}

/*
	Fixed Worker Pool
*/

// fixedWorkerPool is the Go analogue of spec.md §5's scheduling model: each worker in the pool
// drives its own single goroutine over a bounded run of connections, the same way each proxy
// worker there runs a single-threaded cooperative scheduler over the connections assigned to it.
// Parallelism lives across workers, never inside a single one's queue.
type fixedWorkerPool struct {
	handler      SocketHandler
	queue        chan *Socket
	workers      int
	panicHandler func(error)
	active       int32
	stop         chan struct{}
}

func (p *fixedWorkerPool) OnStart(panicHandler func(error)) {
	p.panicHandler = panicHandler
	p.stop = make(chan struct{})

	for i := 0; i < p.workers; i++ {
		go p.runWorker()
	}
}

func (p *fixedWorkerPool) OnStop() {
	close(p.stop)
}

func (p *fixedWorkerPool) OnMetricsUpdate(metrics *ServerMetrics) {
	metrics.Goroutines = int(atomic.LoadInt32(&p.active))
}

func (p *fixedWorkerPool) OnAccept(socket *Socket) {
	select {
	case p.queue <- socket:
	case <-p.stop:
		_ = socket.Close()
		socket.recycle()
	}
}

func (p *fixedWorkerPool) runWorker() {
	for {
		select {
		case socket := <-p.queue:
			p.handle(socket)
		case <-p.stop:
			return
		}
	}
}

func (p *fixedWorkerPool) handle(socket *Socket) {
	defer func() {
		if r := recover(); r != nil {
			if p.panicHandler != nil {
				p.panicHandler(fmt.Errorf("%v", r))
			}
		}
	}()

	defer func() {
		_ = socket.Close()
		socket.recycle()
		atomic.AddInt32(&p.active, -1)
	}()

	atomic.AddInt32(&p.active, 1)

	if p.handler != nil {
		p.handler(socket)
	}
}

// FixedWorkerPool bounds the number of connections processed concurrently to workers, each driven
// by its own goroutine pulling from a shared queue. Unlike GoroutinePerConnection, a burst of
// accepted connections beyond workers queues up instead of spawning unbounded goroutines; once a
// worker's current connection's handler returns, it picks up the next queued one. The queue holds
// at most workers sockets; while it is full, OnAccept blocks until a worker takes one. Suited to a
// proxy fronting a fixed-size backend fan-out budget, where unbounded concurrent handlers would
// just contend for the same backend connection limits anyway.
func FixedWorkerPool(workers int, handler SocketHandler) ForkingStrategy {
	if workers < 1 {
		workers = 1
	}

	return &fixedWorkerPool{
		handler: handler,
		workers: workers,
		queue:   make(chan *Socket, workers),
	}
}
