package wire

import (
	"strconv"
	"strings"

	"github.com/zack890924/httpcacheproxy/pkg/errors"
)

// ParseResponse parses a complete response byte blob: status-line, CRLF,
// header lines, blank line, body framed by Transfer-Encoding/Content-Length
// (a response with neither has an empty body at the codec level — read-until
// -close framing happens one layer down, in pkg/framing, which has already
// consumed exactly the right number of bytes by the time this runs).
//
// Grounded on original_source/src/utils.cpp's parseResponse + handleChunk.
func ParseResponse(data []byte) (*Response, error) {
	idx := indexCRLF(data)
	if idx < 0 {
		return nil, errors.NewFramingError("missing status line", nil)
	}
	statusLine := string(data[:idx])
	rest := data[idx+2:]

	parts := strings.SplitN(statusLine, " ", 3)
	if len(parts) < 2 {
		return nil, errors.NewFramingError("malformed status line: "+statusLine, nil)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, errors.NewFramingError("invalid status code", err)
	}
	res := &Response{Version: parts[0], StatusCode: code}
	if len(parts) == 3 {
		res.StatusMsg = parts[2]
	}

	headerLines, body, err := splitHeaderBlock(rest)
	if err != nil {
		return nil, err
	}
	headers, err := parseHeaderLines(headerLines)
	if err != nil {
		return nil, err
	}
	res.Headers = headers

	switch {
	case isChunked(headers):
		decoded, err := DecodeChunked(body)
		if err != nil {
			return nil, err
		}
		res.Body = decoded
	default:
		length, present, err := contentLength(headers)
		if err != nil {
			return nil, err
		}
		if !present {
			res.Body = []byte{}
			return res, nil
		}
		if int64(len(body)) < length {
			return nil, errors.NewFramingError("body shorter than Content-Length", nil)
		}
		res.Body = body[:length]
	}

	return res, nil
}

// DecodeChunked decodes a chunked-transfer body: repeated
// "hex-size CRLF data CRLF", terminated by a zero-size chunk. Trailers after
// the terminating chunk are discarded. A size mismatch or missing trailing
// CRLF fails the parse.
//
// Grounded on original_source/src/utils.cpp's handleChunk, adapted from
// std::getline-driven line splitting to explicit CRLF-offset scanning over a
// byte slice.
func DecodeChunked(data []byte) ([]byte, error) {
	var out []byte
	for {
		idx := indexCRLF(data)
		if idx < 0 {
			return nil, errors.NewFramingError("missing chunk size line", nil)
		}
		sizeLine := string(data[:idx])
		data = data[idx+2:]

		if semi := strings.IndexByte(sizeLine, ';'); semi >= 0 {
			sizeLine = sizeLine[:semi]
		}
		size, err := strconv.ParseInt(strings.TrimSpace(sizeLine), 16, 64)
		if err != nil || size < 0 {
			return nil, errors.NewFramingError("invalid chunk size", err)
		}
		if size == 0 {
			break
		}
		if int64(len(data)) < size+2 {
			return nil, errors.NewFramingError("chunk data shorter than declared size", nil)
		}
		out = append(out, data[:size]...)
		if data[size] != '\r' || data[size+1] != '\n' {
			return nil, errors.NewFramingError("missing CRLF after chunk data", nil)
		}
		data = data[size+2:]
	}

	// Discard trailers up to and including the final blank line.
	for len(data) > 0 {
		idx := indexCRLF(data)
		if idx < 0 {
			return nil, errors.NewFramingError("missing trailer terminator", nil)
		}
		line := data[:idx]
		data = data[idx+2:]
		if len(line) == 0 {
			break
		}
	}

	if out == nil {
		out = []byte{}
	}
	return out, nil
}

// SerializeResponseForClient renders a response for the client connection.
// If the response still carries a chunked Transfer-Encoding header (as
// stored by the cache, which always keeps the decoded body plus whatever
// headers accompanied it), that header is stripped and Content-Length is set
// to the decoded body's length — responses leaving this codec are always
// identity-encoded. Binary-safe: the full body is always emitted, unlike
// original_source's responseToString which truncated to a 500-byte preview
// for non-text content types.
func SerializeResponseForClient(r *Response) []byte {
	headers := r.Headers
	if isChunked(headers) {
		headers = cloneHeaders(headers)
		delete(headers, "Transfer-Encoding")
		headers["Content-Length"] = strconv.Itoa(len(r.Body))
	}

	var buf strings.Builder
	buf.WriteString(r.Version)
	buf.WriteByte(' ')
	buf.WriteString(strconv.Itoa(r.StatusCode))
	buf.WriteByte(' ')
	buf.WriteString(r.StatusMsg)
	buf.WriteString("\r\n")

	writeHeaders(&buf, headers)
	buf.WriteString("\r\n")

	out := make([]byte, 0, buf.Len()+len(r.Body))
	out = append(out, buf.String()...)
	out = append(out, r.Body...)
	return out
}

func cloneHeaders(h map[string]string) map[string]string {
	c := make(map[string]string, len(h))
	for k, v := range h {
		c[k] = v
	}
	return c
}
