package wire

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/zack890924/httpcacheproxy/pkg/errors"
)

// splitHeaderBlock splits a header block (everything after the start-line's CRLF,
// up to and including the blank line) into individual CRLF-terminated lines,
// and returns the remainder (the body, if any) as well.
//
// Grounded on original_source/src/utils.cpp's parseRequest/parseResponse,
// which read line-by-line with std::getline until an empty line; adapted
// here to work off an in-memory byte blob instead of a stream, since pkg/wire
// only ever sees complete blobs handed to it by pkg/framing.
func splitHeaderBlock(data []byte) (headerLines [][]byte, rest []byte, err error) {
	for {
		idx := indexCRLF(data)
		if idx < 0 {
			return nil, nil, errors.NewFramingError("incomplete header block", nil)
		}
		line := data[:idx]
		data = data[idx+2:]
		if len(line) == 0 {
			return headerLines, data, nil
		}
		headerLines = append(headerLines, line)
	}
}

func indexCRLF(data []byte) int {
	for i := 0; i+1 < len(data); i++ {
		if data[i] == '\r' && data[i+1] == '\n' {
			return i
		}
	}
	return -1
}

// parseHeaderLines parses "Name: Value" lines into a case-sensitive map
// (duplicate names overwrite — last wins). A line with no ':'
// fails the parse, matching original_source's behavior of throwing on a
// malformed header line.
func parseHeaderLines(lines [][]byte) (map[string]string, error) {
	headers := make(map[string]string, len(lines))
	for _, line := range lines {
		s := string(line)
		colon := strings.IndexByte(s, ':')
		if colon < 0 {
			return nil, errors.NewFramingError("malformed header line: "+s, nil)
		}
		name := s[:colon]
		value := s[colon+1:]
		if strings.HasPrefix(value, " ") {
			value = value[1:]
		}
		headers[name] = value
	}
	return headers, nil
}

// writeHeaders appends "Name: Value\r\n" lines for every header, iterating
// in sorted-by-name order so serialization is deterministic — the Go
// equivalent of original_source's std::map<string,string>, which iterates
// headers in ascending key order rather than insertion order.
func writeHeaders(buf *strings.Builder, headers map[string]string) {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.WriteString(headers[name])
		buf.WriteString("\r\n")
	}
}

// contentLength parses the Content-Length header if present. A negative or
// malformed value is a framing error.
func contentLength(headers map[string]string) (int64, bool, error) {
	raw, ok := headers["Content-Length"]
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 0 {
		return 0, true, errors.NewFramingError("invalid Content-Length", err)
	}
	return n, true, nil
}

// isChunked reports whether Transfer-Encoding names the "chunked" token,
// using golang.org/x/net/http/httpguts's RFC 9110 comma-separated,
// case-insensitive token matcher rather than a hand-rolled substring search.
func isChunked(headers map[string]string) bool {
	te, ok := headers["Transfer-Encoding"]
	if !ok {
		return false
	}
	return httpguts.HeaderValuesContainsToken([]string{te}, "chunked")
}

// connectionClose reports whether the Connection header names the "close"
// token.
func connectionClose(headers map[string]string) bool {
	c, ok := headers["Connection"]
	if !ok {
		return false
	}
	return httpguts.HeaderValuesContainsToken([]string{c}, "close")
}
