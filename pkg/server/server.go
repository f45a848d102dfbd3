// Package server runs the acceptor loop and the bounded worker pool that
// hands each accepted connection to a connection.Driver.
package server

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/zack890924/httpcacheproxy/pkg/constants"
)

// ConnHandler processes one accepted connection to completion, closing it.
type ConnHandler func(net.Conn)

// Pool is a fixed-size worker pool fed by a buffered channel of accepted
// connections — the idiomatic Go replacement for the original's
// mutex+condition-variable task queue: the channel itself serializes
// hand-off and wakes a waiting worker, so no explicit lock/condvar pair is
// needed on this side.
//
// Grounded on original_source/src/threadPool.hpp/.cpp.
type Pool struct {
	tasks   chan net.Conn
	handler ConnHandler
	wg      sync.WaitGroup
}

// NewPool starts workerCount goroutines pulling from an internally buffered
// channel and running handler on every connection received. A non-positive
// workerCount falls back to constants.DefaultWorkerCount.
func NewPool(workerCount int, handler ConnHandler) *Pool {
	if workerCount <= 0 {
		workerCount = constants.DefaultWorkerCount
	}

	p := &Pool{
		tasks:   make(chan net.Conn, workerCount),
		handler: handler,
	}

	p.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for conn := range p.tasks {
		p.handler(conn)
	}
}

// Submit hands a connection to the pool, blocking if every worker is busy
// and the task buffer is full.
func (p *Pool) Submit(conn net.Conn) {
	p.tasks <- conn
}

// Close stops accepting new work, notifying every worker to exit once its
// current connection (if any) finishes, and waits for them to join.
//
// Grounded on original_source/src/threadPool.cpp's destructor (set stop,
// notify all, join every worker) — closing the channel is Go's equivalent of
// setting the stop flag and notifying every waiter in one step.
func (p *Pool) Close() {
	close(p.tasks)
	p.wg.Wait()
}

// Acceptor runs the accept loop: a single listener bound to all interfaces,
// handing each connection to a Pool.
//
// Grounded on original_source/src/server.cpp's Server::init/acceptConnection
// and main.cpp's accept loop.
type Acceptor struct {
	listener net.Listener
	pool     *Pool
}

// Listen binds a TCP listener to ":port" on all interfaces, pairing it with
// pool. Go's net package has no listen(2) backlog knob the way BSD sockets
// do; constants.ListenBacklog documents intent against the original's
// listen(fd, 10) but the OS default backlog (typically well above 10) is
// what's actually in effect.
func Listen(port int, pool *Pool) (*Acceptor, error) {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return nil, err
	}
	return &Acceptor{listener: ln, pool: pool}, nil
}

// Addr returns the listener's bound address (useful when port 0 was
// requested and the OS picked an ephemeral one).
func (a *Acceptor) Addr() net.Addr {
	return a.listener.Addr()
}

// Serve accepts connections until ctx is canceled or the listener errors,
// submitting each one to the pool. It closes the listener and drains the
// pool before returning.
func (a *Acceptor) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		a.listener.Close()
	}()

	defer a.pool.Close()
	defer a.listener.Close()

	for {
		conn, err := a.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		a.pool.Submit(conn)
	}
}
