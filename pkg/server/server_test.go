package server

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolDispatchesToHandler(t *testing.T) {
	var count atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	pool := NewPool(2, func(conn net.Conn) {
		count.Add(1)
		conn.Close()
		wg.Done()
	})

	for i := 0; i < 3; i++ {
		client, srv := net.Pipe()
		pool.Submit(srv)
		client.Close()
	}

	wg.Wait()
	pool.Close()

	if got := count.Load(); got != 3 {
		t.Fatalf("expected 3 handled connections, got %d", got)
	}
}

func TestPoolCloseDrainsWorkers(t *testing.T) {
	handled := make(chan struct{}, 1)
	pool := NewPool(1, func(conn net.Conn) {
		conn.Close()
		handled <- struct{}{}
	})

	_, srv := net.Pipe()
	pool.Submit(srv)
	<-handled

	done := make(chan struct{})
	go func() {
		pool.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Close to return once workers drain")
	}
}

func TestAcceptorServesConnections(t *testing.T) {
	var got atomic.Int32
	pool := NewPool(2, func(conn net.Conn) {
		got.Add(1)
		io.Copy(io.Discard, conn)
		conn.Close()
	})

	acc, err := Listen(0, pool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() { serveDone <- acc.Serve(ctx) }()

	conn, err := net.Dial("tcp", acc.Addr().String())
	if err != nil {
		t.Fatalf("unexpected dial error: %v", err)
	}
	conn.Close()

	// Give the worker a moment to process before shutting down.
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case <-serveDone:
	case <-time.After(time.Second):
		t.Fatal("expected Serve to return after context cancellation")
	}

	if got.Load() != 1 {
		t.Fatalf("expected 1 connection handled, got %d", got.Load())
	}
}
