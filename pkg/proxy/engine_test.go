package proxy

import (
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/zack890924/httpcacheproxy/pkg/cache"
	"github.com/zack890924/httpcacheproxy/pkg/logging"
	"github.com/zack890924/httpcacheproxy/pkg/wire"
)

func testEngine(t *testing.T) (*Engine, *cache.Store) {
	t.Helper()
	store := cache.New(10)
	logger, err := logging.Open(filepath.Join(t.TempDir(), "proxy.log"))
	if err != nil {
		t.Fatalf("unexpected error opening logger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return NewEngine(store, logger), store
}

// fakeOrigin starts a tcp4 loopback listener that accepts a single
// connection, replies to it with a canned response, then stops.
func fakeOrigin(t *testing.T, response string) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unexpected error starting fake origin: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		conn.Read(buf) // drain the request
		conn.Write([]byte(response))
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func TestHandleGetMissThenStore(t *testing.T) {
	e, store := testEngine(t)
	host, port := fakeOrigin(t, "HTTP/1.1 200 OK\r\nCache-Control: max-age=60\r\nContent-Length: 5\r\n\r\nhello")

	req := &wire.Request{
		Method:  "GET",
		Target:  "/a",
		Version: "HTTP/1.1",
		Headers: map[string]string{"Host": host + ":" + strconv.Itoa(port)},
		Body:    []byte{},
	}

	out := e.HandleGet(req, 1)
	if !strings.Contains(string(out), "200 OK") || !strings.Contains(string(out), "hello") {
		t.Fatalf("unexpected response: %q", out)
	}

	key := CacheKey(req.Headers, req.Target)
	if _, status := store.Fetch(key); status != cache.Valid {
		t.Fatalf("expected response stored as Valid, got %v", status)
	}
}

func TestHandleGetCacheHitSkipsUpstream(t *testing.T) {
	e, store := testEngine(t)

	req := &wire.Request{
		Method:  "GET",
		Target:  "/a",
		Version: "HTTP/1.1",
		Headers: map[string]string{"Host": "example.com"},
		Body:    []byte{},
	}
	key := CacheKey(req.Headers, req.Target)
	store.Store(key, &wire.Response{
		Version: "HTTP/1.1", StatusCode: 200, StatusMsg: "OK",
		Headers: map[string]string{"Cache-Control": "max-age=60", "Content-Length": "5"},
		Body:    []byte("hello"),
	})

	out := e.HandleGet(req, 2)
	if !strings.Contains(string(out), "hello") {
		t.Fatalf("expected cached body served without contacting an origin, got %q", out)
	}
}

func TestHandleGetNonCacheable(t *testing.T) {
	e, store := testEngine(t)
	host, port := fakeOrigin(t, "HTTP/1.1 200 OK\r\nCache-Control: no-store\r\nContent-Length: 2\r\n\r\nhi")

	req := &wire.Request{
		Method: "GET", Target: "/x", Version: "HTTP/1.1",
		Headers: map[string]string{"Host": host + ":" + strconv.Itoa(port)},
		Body:    []byte{},
	}
	out := e.HandleGet(req, 3)
	if !strings.Contains(string(out), "hi") {
		t.Fatalf("expected client to still receive the full response, got %q", out)
	}
	key := CacheKey(req.Headers, req.Target)
	if _, status := store.Fetch(key); status != cache.Miss {
		t.Fatalf("expected no-store response to be skipped, got %v", status)
	}
}

func TestHandleGetUpstreamFailureReturns502(t *testing.T) {
	e, _ := testEngine(t)
	req := &wire.Request{
		Method: "GET", Target: "/", Version: "HTTP/1.1",
		Headers: map[string]string{"Host": "127.0.0.1:1"}, // nothing listens there
		Body:    []byte{},
	}
	out := e.HandleGet(req, 4)
	if !strings.Contains(string(out), "502 Bad Gateway") {
		t.Fatalf("expected 502, got %q", out)
	}
}

func TestHandlePostForwardsBody(t *testing.T) {
	e, _ := testEngine(t)
	host, port := fakeOrigin(t, "HTTP/1.1 201 Created\r\nContent-Length: 0\r\n\r\n")

	req := &wire.Request{
		Method: "POST", Target: "/submit", Version: "HTTP/1.1",
		Headers: map[string]string{
			"Host":           host + ":" + strconv.Itoa(port),
			"Content-Length": "4",
		},
		Body: []byte("data"),
	}
	out := e.HandlePost(req, 5)
	if !strings.Contains(string(out), "201 Created") {
		t.Fatalf("unexpected response: %q", out)
	}
}

func TestHandleConnectReturnsLiteralBytes(t *testing.T) {
	e, _ := testEngine(t)
	out := e.HandleConnect()
	want := "HTTP/1.1 200 Connection Established\r\nProxy-Agent: "
	if !strings.HasPrefix(string(out), want) {
		t.Fatalf("unexpected CONNECT response: %q", out)
	}
}

func TestHandleUnsupportedReturns501(t *testing.T) {
	e, _ := testEngine(t)
	if string(e.HandleUnsupported()) != "HTTP/1.1 501 Not Implemented\r\n\r\n" {
		t.Fatalf("unexpected response: %q", e.HandleUnsupported())
	}
}

func TestSplitHostPort(t *testing.T) {
	cases := []struct {
		in       string
		wantHost string
		wantPort int
	}{
		{"example.com", "example.com", 80},
		{"example.com:8080", "example.com", 8080},
		{"example.com:notaport", "example.com:notaport", 80},
	}
	for _, c := range cases {
		host, port := SplitHostPort(c.in, 80)
		if host != c.wantHost || port != c.wantPort {
			t.Errorf("SplitHostPort(%q) = (%q, %d), want (%q, %d)", c.in, host, port, c.wantHost, c.wantPort)
		}
	}
}

func TestCacheKeyDefaultsToUnknown(t *testing.T) {
	if got := CacheKey(map[string]string{}, "/a"); got != "unknown|/a" {
		t.Fatalf("expected unknown sentinel, got %q", got)
	}
}
