// Package proxy implements the request lifecycle engine: per-method
// dispatch, cache consultation, upstream forwarding, and response
// classification.
package proxy

import (
	"strings"

	"github.com/zack890924/httpcacheproxy/pkg/cache"
	"github.com/zack890924/httpcacheproxy/pkg/constants"
	"github.com/zack890924/httpcacheproxy/pkg/framing"
	"github.com/zack890924/httpcacheproxy/pkg/logging"
	"github.com/zack890924/httpcacheproxy/pkg/timing"
	"github.com/zack890924/httpcacheproxy/pkg/wire"
)

var (
	badGateway      = []byte("HTTP/1.1 502 Bad Gateway\r\n\r\n")
	notImplemented  = []byte("HTTP/1.1 501 Not Implemented\r\n\r\n")
	connectEstablished = []byte("HTTP/1.1 200 Connection Established\r\nProxy-Agent: " +
		constants.ProxyName + "/" + constants.ProxyVersion + "\r\n\r\n")
)

// Engine dispatches requests per method, consulting and populating store and
// reporting every step to logger.
//
// Grounded on original_source/src/proxy.cpp's Proxy class.
type Engine struct {
	store  *cache.Store
	logger *logging.Logger
}

// NewEngine builds an Engine over a shared cache store and logger.
func NewEngine(store *cache.Store, logger *logging.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// HandleGet implements the GET flow: consult cache, conditionally
// revalidate or forward, classify the upstream response, and decide
// store-vs-pass-through.
func (e *Engine) HandleGet(req *wire.Request, requestID int64) []byte {
	key := CacheKey(req.Headers, req.Target)
	entry, status := e.store.Fetch(key)

	var etag string
	mustRevalidate := false

	switch status {
	case cache.Valid:
		e.logger.CacheValid(requestID)
		resp := wire.SerializeResponseForClient(entry.Response)
		e.logger.Responding(requestID, entry.Response.StatusLine())
		return resp
	case cache.Expired:
		e.logger.CacheExpired(requestID, wire.FormatHTTPDate(entry.ExpireTime))
		etag = entry.ETag
		mustRevalidate = true
	case cache.Revalidate:
		e.logger.CacheRequiresValidation(requestID)
		etag = entry.ETag
		mustRevalidate = true
	default:
		e.logger.NotInCache(requestID)
	}

	extraHeaders := ""
	if mustRevalidate && etag != "" {
		extraHeaders = "If-None-Match: " + etag + "\r\n"
	}

	host, port := SplitHostPort(req.HeaderValue("Host"), constants.DefaultUpstreamPort)
	resp, err := e.forward(req, requestID, host, port, extraHeaders)
	if err != nil {
		e.logger.Error(requestID, err.Error())
		return badGateway
	}

	if resp.StatusCode == 304 && mustRevalidate {
		e.store.UpdateHeaders(key, resp)
		refreshed, _ := e.store.Fetch(key)
		var served *wire.Response
		if refreshed != nil {
			served = refreshed.Response
		} else {
			served = entry.Response
		}
		e.logger.Responding(requestID, served.StatusLine())
		return wire.SerializeResponseForClient(served)
	}

	if resp.StatusCode == 200 {
		e.storeAndLog(requestID, key, resp)
	}

	e.logger.Responding(requestID, resp.StatusLine())
	return wire.SerializeResponseForClient(resp)
}

// HandlePost implements the POST flow: identical forwarding, never touches
// the cache.
func (e *Engine) HandlePost(req *wire.Request, requestID int64) []byte {
	host, port := SplitHostPort(req.HeaderValue("Host"), constants.DefaultUpstreamPort)
	resp, err := e.forward(req, requestID, host, port, "")
	if err != nil {
		e.logger.Error(requestID, err.Error())
		return badGateway
	}
	e.logger.Responding(requestID, resp.StatusLine())
	return wire.SerializeResponseForClient(resp)
}

// HandleConnect returns the literal bytes establishing a tunnel. The engine
// never talks to the origin for CONNECT — dialing and the tunnel loop are
// the connection driver's job.
func (e *Engine) HandleConnect() []byte {
	return connectEstablished
}

// HandleUnsupported returns the literal bytes for any method other than
// GET/POST/CONNECT.
func (e *Engine) HandleUnsupported() []byte {
	return notImplemented
}

func (e *Engine) forward(req *wire.Request, requestID int64, host string, port int, extraHeaders string) (*wire.Response, error) {
	e.logger.Requesting(requestID, req.RequestLine(), host)

	// net.Dial resolves and connects in one call, so DNS and TCP connect
	// time aren't separable here; both are folded into TCPConnect.
	timer := timing.NewTimer()
	timer.StartTCP()
	conn, err := DialOrigin(host, port)
	timer.EndTCP()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := framing.SendAll(conn, wire.SerializeRequest(req, extraHeaders)); err != nil {
		return nil, err
	}

	// ReadResponse returns only once the whole response has been framed, so
	// the TTFB span recorded here covers reading the full response, not just
	// the wait for its first byte.
	timer.StartTTFB()
	resp, err := framing.ReadResponse(conn)
	timer.EndTTFB()
	if err != nil {
		return nil, err
	}

	e.logger.Received(requestID, resp.StatusLine(), host)
	e.logger.Note(requestID, "upstream timing "+timer.GetMetrics().String())
	return resp, nil
}

// storeAndLog applies the engine's own no-store/private detection (to
// produce the precise reason string the log line names) before delegating
// to the store, which re-derives the same policy decision independently.
func (e *Engine) storeAndLog(requestID int64, key string, resp *wire.Response) {
	if reason, blocked := cacheControlBlockReason(resp.Headers); blocked {
		e.logger.NotCacheable(requestID, reason)
		return
	}

	if err := e.store.Store(key, resp); err != nil {
		e.logger.NotCacheable(requestID, err.Error())
		return
	}

	refreshed, status := e.store.Fetch(key)
	if status == cache.Revalidate {
		e.logger.CachedButRevalidate(requestID)
	} else {
		e.logger.CachedExpires(requestID, wire.FormatHTTPDate(refreshed.ExpireTime))
	}
}

// cacheControlBlockReason reports the exact Cache-Control directive that
// makes a response non-cacheable, matching original_source/src/proxy.cpp's
// own no-store/private check (distinct from cache.parseCacheControl's
// generic CachePolicy error, which this mirrors so the log line names the
// specific directive rather than a generic message).
func cacheControlBlockReason(headers map[string]string) (string, bool) {
	cc, ok := headers["Cache-Control"]
	if !ok {
		return "", false
	}
	if strings.Contains(cc, "no-store") {
		return "Cache-Control: no-store", true
	}
	if strings.Contains(cc, "private") {
		return "Cache-Control: private", true
	}
	return "", false
}
