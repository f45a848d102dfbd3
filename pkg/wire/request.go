package wire

import (
	"strings"

	"github.com/zack890924/httpcacheproxy/pkg/errors"
)

// ParseRequest parses a complete request byte blob: start-line, CRLF, header
// lines, blank line, optional Content-Length-framed body.
//
// Grounded on original_source/src/utils.cpp's parseRequest, generalized from
// a stream-splitting implementation to operate on a single in-memory blob
// (pkg/framing has already read exactly one message off the socket by the
// time this runs).
func ParseRequest(data []byte) (*Request, error) {
	idx := indexCRLF(data)
	if idx < 0 {
		return nil, errors.NewFramingError("missing request line", nil)
	}
	startLine := string(data[:idx])
	rest := data[idx+2:]

	parts := strings.Fields(startLine)
	if len(parts) < 2 {
		return nil, errors.NewFramingError("malformed request line: "+startLine, nil)
	}
	req := &Request{Method: parts[0], Target: parts[1]}
	if len(parts) >= 3 {
		req.Version = parts[2]
	}

	headerLines, body, err := splitHeaderBlock(rest)
	if err != nil {
		return nil, err
	}
	headers, err := parseHeaderLines(headerLines)
	if err != nil {
		return nil, err
	}
	req.Headers = headers

	length, present, err := contentLength(headers)
	if err != nil {
		return nil, err
	}
	if !present {
		req.Body = []byte{}
		return req, nil
	}
	if int64(len(body)) < length {
		return nil, errors.NewFramingError("body shorter than Content-Length", nil)
	}
	req.Body = body[:length]
	return req, nil
}

// SerializeRequest renders a request for sending to the origin. extraHeaders
// is a complete block of additional CRLF-terminated header lines (used by
// the proxy engine to inject If-None-Match on a revalidation) appended after
// the request's own headers but before the blank line, matching
// original_source's requestToString(req, revalidateHeader).
func SerializeRequest(r *Request, extraHeaders string) []byte {
	var buf strings.Builder
	buf.WriteString(r.Method)
	buf.WriteByte(' ')
	buf.WriteString(r.Target)
	buf.WriteByte(' ')
	buf.WriteString(r.Version)
	buf.WriteString("\r\n")

	writeHeaders(&buf, r.Headers)

	if extraHeaders != "" {
		buf.WriteString(extraHeaders)
	}

	buf.WriteString("\r\n")
	out := make([]byte, 0, buf.Len()+len(r.Body))
	out = append(out, buf.String()...)
	out = append(out, r.Body...)
	return out
}
