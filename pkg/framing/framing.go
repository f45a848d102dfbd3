// Package framing reads exactly one HTTP/1.1 message off a net.Conn and hands
// the complete byte blob to pkg/wire for parsing. It owns the stream-level
// concerns pkg/wire doesn't: where the message ends, and how large it is
// allowed to get before the connection is rejected.
package framing

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/zack890924/httpcacheproxy/pkg/constants"
	"github.com/zack890924/httpcacheproxy/pkg/errors"
	"github.com/zack890924/httpcacheproxy/pkg/wire"
)

// ReadRequest reads one request off conn: start-line and headers up to the
// blank line (capped at constants.MaxHeaderBytes), then a Content-Length body
// if present (capped at constants.MaxBodyBytes). A request carrying neither
// Content-Length nor chunked Transfer-Encoding is treated as bodyless, which
// is the only framing a forward proxy needs to support for GET/POST in
// practice.
//
// Grounded on pkg/client/client.go's readResponse/readHeaders/readBody
// dispatch, adapted from parsing a response to parsing a request, and from
// accumulating into a plain in-memory buffer to handing the fully-read blob
// to pkg/wire for structural parsing. As in the original proxy.cpp (which
// builds the message as a single std::string), nothing here ever spills to
// disk: every blob this package frames is capped at MaxBodyBytes and is read
// in full into the parser regardless, so a disk-backed accumulator would add
// I/O without saving any memory.
func ReadRequest(conn net.Conn) (*wire.Request, error) {
	reader := bufio.NewReaderSize(conn, constants.InitReadBuf)

	var blob bytes.Buffer

	headers, err := readHeaderBlock(reader, &blob)
	if err != nil {
		return nil, err
	}

	if isChunkedHeader(headers) {
		if err := readChunkedRaw(reader, &blob); err != nil {
			return nil, err
		}
	} else if length, present, err := contentLengthHeader(headers); err != nil {
		return nil, err
	} else if present {
		if err := readExactly(reader, &blob, length); err != nil {
			return nil, err
		}
	}

	return wire.ParseRequest(blob.Bytes())
}

// ReadResponse reads one response off conn, framed by Transfer-Encoding,
// Content-Length, or (absent both) read-until-close — all capped at
// constants.MaxBodyBytes.
func ReadResponse(conn net.Conn) (*wire.Response, error) {
	reader := bufio.NewReaderSize(conn, constants.InitReadBuf)

	var blob bytes.Buffer

	headers, err := readHeaderBlock(reader, &blob)
	if err != nil {
		return nil, err
	}

	switch {
	case isChunkedHeader(headers):
		if err := readChunkedRaw(reader, &blob); err != nil {
			return nil, err
		}
	default:
		length, present, err := contentLengthHeader(headers)
		if err != nil {
			return nil, err
		}
		if present {
			if err := readExactly(reader, &blob, length); err != nil {
				return nil, err
			}
		} else if err := readUntilClose(reader, &blob); err != nil {
			return nil, err
		}
	}

	return wire.ParseResponse(blob.Bytes())
}

// SendAll writes the entire payload to conn, looping through partial writes.
// Shared by the proxy engine's upstream leg and the connection driver's
// client-facing reply.
//
// Grounded on pkg/client/client.go's sendRequest.
func SendAll(conn net.Conn, data []byte) error {
	written := 0
	for written < len(data) {
		n, err := conn.Write(data[written:])
		if err != nil {
			return errors.NewIOError("writing to connection", err)
		}
		written += n
	}
	return nil
}

// readHeaderBlock reads start-line + header lines up to and including the
// blank line, writing every byte read into blob, and returns the parsed
// header map (for framing decisions only — pkg/wire re-parses the full blob
// for the caller-facing Request/Response).
func readHeaderBlock(reader *bufio.Reader, blob *bytes.Buffer) (map[string]string, error) {
	headers := make(map[string]string)
	total := 0
	sawBlank := false
	lineNo := 0

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, errors.NewFramingError("reading header block", err)
		}
		total += len(line)
		if total > constants.MaxHeaderBytes {
			return nil, errors.NewFramingError("header block exceeds maximum size", nil)
		}
		if _, err := blob.Write([]byte(line)); err != nil {
			return nil, err
		}
		lineNo++

		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			sawBlank = true
			break
		}
		if lineNo == 1 {
			// start-line, not a header
			continue
		}
		colon := strings.IndexByte(trimmed, ':')
		if colon < 0 {
			return nil, errors.NewFramingError("malformed header line: "+trimmed, nil)
		}
		name := trimmed[:colon]
		value := strings.TrimPrefix(trimmed[colon+1:], " ")
		headers[name] = value
	}

	if !sawBlank {
		return nil, errors.NewFramingError("missing blank line terminating headers", nil)
	}
	return headers, nil
}

func contentLengthHeader(headers map[string]string) (int64, bool, error) {
	raw, ok := headers["Content-Length"]
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 0 {
		return 0, true, errors.NewFramingError("invalid Content-Length", err)
	}
	if n > constants.MaxBodyBytes {
		return 0, true, errors.NewFramingError("Content-Length exceeds maximum body size", nil)
	}
	return n, true, nil
}

func isChunkedHeader(headers map[string]string) bool {
	te, ok := headers["Transfer-Encoding"]
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(te), "chunked")
}

func readExactly(reader *bufio.Reader, blob *bytes.Buffer, n int64) error {
	if _, err := io.CopyN(blob, reader, n); err != nil {
		return errors.NewFramingError("reading fixed-length body", err)
	}
	return nil
}

// readChunkedRaw copies the raw chunked wire bytes (size lines, chunk data,
// CRLFs, the zero-size terminator, and any trailers) into blob verbatim;
// pkg/wire's DecodeChunked strips the envelope once the whole blob is
// re-parsed. The decoded-size running total is capped at MaxBodyBytes so an
// attacker can't exhaust memory/disk with a long run of small chunks.
func readChunkedRaw(reader *bufio.Reader, blob *bytes.Buffer) error {
	var decoded int64
	for {
		sizeLine, err := reader.ReadString('\n')
		if err != nil {
			return errors.NewFramingError("reading chunk size line", err)
		}
		if _, err := blob.Write([]byte(sizeLine)); err != nil {
			return err
		}

		trimmed := strings.TrimRight(sizeLine, "\r\n")
		if semi := strings.IndexByte(trimmed, ';'); semi >= 0 {
			trimmed = trimmed[:semi]
		}
		size, err := strconv.ParseInt(strings.TrimSpace(trimmed), 16, 64)
		if err != nil || size < 0 {
			return errors.NewFramingError("invalid chunk size", err)
		}

		if size == 0 {
			// Drain trailers up to and including the blank line.
			for {
				line, err := reader.ReadString('\n')
				if err != nil {
					return errors.NewFramingError("reading chunk trailer", err)
				}
				if _, err := blob.Write([]byte(line)); err != nil {
					return err
				}
				if strings.TrimRight(line, "\r\n") == "" {
					return nil
				}
			}
		}

		decoded += size
		if decoded > constants.MaxBodyBytes {
			return errors.NewFramingError("chunked body exceeds maximum size", nil)
		}

		if _, err := io.CopyN(blob, reader, size); err != nil {
			return errors.NewFramingError("reading chunk data", err)
		}
		crlf := make([]byte, 2)
		if _, err := io.ReadFull(reader, crlf); err != nil {
			return errors.NewFramingError("reading chunk terminator", err)
		}
		if crlf[0] != '\r' || crlf[1] != '\n' {
			return errors.NewFramingError("malformed chunk terminator", nil)
		}
		if _, err := blob.Write(crlf); err != nil {
			return err
		}
	}
}

// readUntilClose copies everything remaining on the connection until EOF,
// capped at MaxBodyBytes. Used for responses carrying neither
// Transfer-Encoding nor Content-Length, framed by the origin closing the
// connection.
func readUntilClose(reader *bufio.Reader, blob *bytes.Buffer) error {
	limited := io.LimitReader(reader, constants.MaxBodyBytes+1)
	n, err := io.Copy(blob, limited)
	if err != nil {
		return errors.NewFramingError("reading until close", err)
	}
	if n > constants.MaxBodyBytes {
		return errors.NewFramingError("read-until-close body exceeds maximum size", nil)
	}
	return nil
}
