// Package connection drives a single accepted client connection end to end:
// frame one request, dispatch it to the proxy engine, write back the
// response, and — for CONNECT — run the blind tunnel loop afterward.
package connection

import (
	"io"
	"net"
	"strings"
	"sync/atomic"

	"github.com/zack890924/httpcacheproxy/pkg/constants"
	"github.com/zack890924/httpcacheproxy/pkg/framing"
	"github.com/zack890924/httpcacheproxy/pkg/logging"
	"github.com/zack890924/httpcacheproxy/pkg/proxy"
	"github.com/zack890924/httpcacheproxy/pkg/wire"
)

// requestCounter is the single process-wide, monotonically increasing
// source of request ids; ids may interleave across concurrent workers but
// are always unique.
//
// Grounded on original_source/src/connHandler.cpp's
// std::atomic<int> requestCounter.
var requestCounter atomic.Int64

var badRequest = []byte("HTTP/1.1 400 Bad Request\r\n\r\n")
var badGateway = []byte("HTTP/1.1 502 Bad Gateway\r\n\r\n")

// Driver runs the per-connection state machine:
// START → READ_REQUEST → {GET_FLOW | POST_FLOW | CONNECT_FLOW | UNSUPPORTED},
// with a BAD_REQUEST branch on framing failure.
//
// Grounded on original_source/src/connHandler.cpp's handleConnection/doTunnel.
type Driver struct {
	engine *proxy.Engine
	logger *logging.Logger
}

// New builds a Driver over the shared proxy engine and logger.
func New(engine *proxy.Engine, logger *logging.Logger) *Driver {
	return &Driver{engine: engine, logger: logger}
}

// Handle owns conn for its entire lifetime, closing it on every exit path.
func (d *Driver) Handle(conn net.Conn) {
	defer conn.Close()

	requestID := requestCounter.Add(1)
	clientIP := clientIPOf(conn)

	req, err := framing.ReadRequest(conn)
	if err != nil {
		framing.SendAll(conn, badRequest)
		d.logger.Responding(requestID, "HTTP/1.1 400 Bad Request")
		return
	}

	d.logger.NewRequest(requestID, req.RequestLine(), clientIP)

	switch req.Method {
	case "GET":
		framing.SendAll(conn, d.engine.HandleGet(req, requestID))
	case "POST":
		framing.SendAll(conn, d.engine.HandlePost(req, requestID))
	case "CONNECT":
		d.handleConnect(conn, req, requestID)
	default:
		framing.SendAll(conn, d.engine.HandleUnsupported())
		d.logger.Responding(requestID, "HTTP/1.1 501 Not Implemented")
	}
}

func (d *Driver) handleConnect(conn net.Conn, req *wire.Request, requestID int64) {
	established := d.engine.HandleConnect()
	if err := framing.SendAll(conn, established); err != nil {
		return
	}

	host, port := proxy.SplitHostPort(req.Target, constants.DefaultConnectPort)

	origin, err := proxy.DialOrigin(host, port)
	if err != nil {
		// The 200 has already gone out, but the original still follows it
		// with a 502 on the same connection rather than closing silently.
		framing.SendAll(conn, badGateway)
		d.logger.Responding(requestID, "HTTP/1.1 502 Bad Gateway")
		d.logger.Error(requestID, err.Error())
		return
	}
	defer origin.Close()

	runTunnel(conn, origin)
	d.logger.TunnelClosed(requestID)
}

// runTunnel relays bytes bidirectionally between client and origin until one
// side closes or errors: any read returning 0 or negative terminates the
// loop, and so does any write failure.
//
// Grounded on original_source/src/connHandler.cpp's doTunnel, adapted from a
// single-threaded select() loop over two file descriptors to two goroutines
// each doing blocking io.CopyBuffer in one direction — Go has no portable
// readiness-multiplexing primitive over arbitrary net.Conn, so two
// directional copy loops racing to the first close/error is the idiomatic
// replacement.
func runTunnel(client, origin net.Conn) {
	done := make(chan struct{}, 2)

	relay := func(dst, src net.Conn) {
		buf := make([]byte, constants.TunnelBufSize)
		io.CopyBuffer(dst, src, buf)
		done <- struct{}{}
	}

	go relay(origin, client)
	go relay(client, origin)

	// Whichever direction finishes first (peer close, read error, or write
	// error) ends the tunnel: close both sockets so the other goroutine's
	// blocking read unblocks with an error too, then wait for it to exit.
	<-done
	client.Close()
	origin.Close()
	<-done
}

func clientIPOf(conn net.Conn) string {
	addr := conn.RemoteAddr().String()
	if idx := strings.LastIndexByte(addr, ':'); idx >= 0 {
		return addr[:idx]
	}
	return addr
}
