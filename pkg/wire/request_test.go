package wire

import (
	"reflect"
	"testing"
)

func TestParseRequestBasic(t *testing.T) {
	raw := "GET /index.html HTTP/1.1\r\nHost: example.com\r\nUser-Agent: test\r\n\r\n"
	req, err := ParseRequest([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != "GET" || req.Target != "/index.html" || req.Version != "HTTP/1.1" {
		t.Fatalf("unexpected start line fields: %+v", req)
	}
	if req.HeaderValue("Host") != "example.com" {
		t.Fatalf("expected Host header, got %q", req.HeaderValue("Host"))
	}
	if len(req.Body) != 0 {
		t.Fatalf("expected empty body, got %q", req.Body)
	}
}

func TestParseRequestWithBody(t *testing.T) {
	raw := "POST /submit HTTP/1.1\r\nHost: example.com\r\nContent-Length: 5\r\n\r\nhello"
	req, err := ParseRequest([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(req.Body) != "hello" {
		t.Fatalf("expected body 'hello', got %q", req.Body)
	}
}

func TestParseRequestMalformedStartLine(t *testing.T) {
	_, err := ParseRequest([]byte("GET\r\nHost: x\r\n\r\n"))
	if err == nil {
		t.Fatal("expected error for malformed start line")
	}
}

func TestParseRequestMissingColon(t *testing.T) {
	_, err := ParseRequest([]byte("GET / HTTP/1.1\r\nBadHeader\r\n\r\n"))
	if err == nil {
		t.Fatal("expected error for header without colon")
	}
}

func TestParseRequestShortBody(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nshort"
	_, err := ParseRequest([]byte(raw))
	if err == nil {
		t.Fatal("expected error for body shorter than Content-Length")
	}
}

func TestRequestRoundTrip(t *testing.T) {
	req := &Request{
		Method:  "POST",
		Target:  "/a/b",
		Version: "HTTP/1.1",
		Headers: map[string]string{
			"Host":           "example.com",
			"Content-Length": "5",
			"Content-Type":   "text/plain",
		},
		Body: []byte("hello"),
	}
	out := SerializeRequest(req, "")
	parsed, err := ParseRequest(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(req, parsed) {
		t.Fatalf("round trip mismatch:\n  got:  %+v\n  want: %+v", parsed, req)
	}
}

func TestSerializeRequestExtraHeaders(t *testing.T) {
	req := &Request{
		Method:  "GET",
		Target:  "/",
		Version: "HTTP/1.1",
		Headers: map[string]string{"Host": "example.com"},
		Body:    []byte{},
	}
	out := SerializeRequest(req, "If-None-Match: \"abc\"\r\n")
	parsed, err := ParseRequest(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.HeaderValue("If-None-Match") != "\"abc\"" {
		t.Fatalf("expected injected If-None-Match, got %+v", parsed.Headers)
	}
}
