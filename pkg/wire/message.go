// Package wire implements the HTTP/1.1 codec: parsing and serializing
// complete request/response byte blobs, chunked-body decoding, and HTTP-date
// parsing. It never touches a socket directly — that is pkg/framing's job.
package wire

import "strconv"

// Request is a parsed HTTP/1.1 request. Headers are case-sensitive; a
// duplicate header name overwrites the previous value (last wins).
type Request struct {
	Method  string
	Target  string
	Version string
	Headers map[string]string
	Body    []byte
}

// Response is a parsed HTTP/1.1 response. Body is always already dechunked
// if the wire used chunked transfer-encoding.
type Response struct {
	Version    string
	StatusCode int
	StatusMsg  string
	Headers    map[string]string
	Body       []byte
}

// HeaderValue looks up a header case-sensitively, returning "" if absent.
func (r *Request) HeaderValue(name string) string {
	return r.Headers[name]
}

// HeaderValue looks up a header case-sensitively, returning "" if absent.
func (r *Response) HeaderValue(name string) string {
	return r.Headers[name]
}

// StatusLine renders "VERSION CODE MESSAGE" for logging, matching the
// canonical log line shapes the logger expects.
func (r *Response) StatusLine() string {
	return r.Version + " " + strconv.Itoa(r.StatusCode) + " " + r.StatusMsg
}

// RequestLine renders "METHOD TARGET VERSION" for logging.
func (r *Request) RequestLine() string {
	return r.Method + " " + r.Target + " " + r.Version
}
