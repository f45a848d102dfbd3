// Package logging renders the proxy's per-request event stream to a single
// append-only log file, in the canonical line shapes the original C++
// Logger class used, on top of github.com/sirupsen/logrus for the actual
// writer-locking and file handling.
package logging

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// canonicalFormatter renders "<request_id>: <message>\n" regardless of
// whatever other fields a call carries, so the text hitting disk matches the
// original's ofstream-based logger byte for byte while every call site still
// passes structured logrus.Fields for anything that wants them (tests,
// future sinks).
type canonicalFormatter struct{}

func (canonicalFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	id, _ := entry.Data["request_id"].(int64)
	return []byte(fmt.Sprintf("%d: %s\n", id, entry.Message)), nil
}

// Logger is the serialized append-only sink described in the logger
// interface: every call below writes exactly one complete line. logrus's
// own internal mutex on its output writer is what actually serializes
// concurrent callers; no extra lock is layered on top of it.
//
// Grounded on original_source/src/logger.cpp's canonical line shapes,
// implemented with github.com/sirupsen/logrus (the logging library
// docker-compose standardizes on) and a custom Formatter.
type Logger struct {
	base *logrus.Logger
	file *os.File
}

// Open creates (or appends to) the log file at path and returns a Logger
// writing to it.
func Open(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", path, err)
	}

	base := logrus.New()
	base.SetOutput(f)
	base.SetFormatter(canonicalFormatter{})
	base.SetLevel(logrus.InfoLevel)

	return &Logger{base: base, file: f}, nil
}

// Close flushes and closes the underlying log file.
func (l *Logger) Close() error {
	return l.file.Close()
}

func (l *Logger) line(requestID int64, msg string) {
	l.base.WithField("request_id", requestID).Info(msg)
}

// NewRequest logs the arrival of a request: `"<line>" from <client_ip> @ <UTC timestamp>`.
func (l *Logger) NewRequest(requestID int64, requestLine, clientIP string) {
	ts := nowUTC()
	l.line(requestID, fmt.Sprintf("%q from %s @ %s", requestLine, clientIP, ts))
}

// NotInCache logs a cache miss.
func (l *Logger) NotInCache(requestID int64) {
	l.line(requestID, "not in cache")
}

// CacheValid logs a fresh cache hit served without revalidation.
func (l *Logger) CacheValid(requestID int64) {
	l.line(requestID, "in cache, valid")
}

// CacheRequiresValidation logs a must-revalidate cache hit.
func (l *Logger) CacheRequiresValidation(requestID int64) {
	l.line(requestID, "in cache, requires validation")
}

// CacheExpired logs an expired cache hit, with its (now past) expiry time.
func (l *Logger) CacheExpired(requestID int64, expireTime string) {
	l.line(requestID, "in cache, but expired at "+expireTime)
}

// Requesting logs the outbound request about to be sent upstream:
// `Requesting "<line>" from <host>`.
func (l *Logger) Requesting(requestID int64, reqLine, host string) {
	l.line(requestID, fmt.Sprintf("Requesting %q from %s", reqLine, host))
}

// Received logs the upstream response as it arrives: `Received "<line>" from <host>`.
func (l *Logger) Received(requestID int64, respLine, host string) {
	l.line(requestID, fmt.Sprintf("Received %q from %s", respLine, host))
}

// Responding logs the response line sent back to the client.
func (l *Logger) Responding(requestID int64, respLine string) {
	l.line(requestID, fmt.Sprintf("Responding %q", respLine))
}

// TunnelClosed logs the termination of a CONNECT tunnel.
func (l *Logger) TunnelClosed(requestID int64) {
	l.line(requestID, "Tunnel closed")
}

// NotCacheable logs a skipped store, with the reason (e.g. "Cache-Control: no-store").
func (l *Logger) NotCacheable(requestID int64, reason string) {
	l.line(requestID, "not cacheable because "+reason)
}

// CachedExpires logs a successful store, with its computed expiry time.
func (l *Logger) CachedExpires(requestID int64, expireTime string) {
	l.line(requestID, "cached, expires at "+expireTime)
}

// CachedButRevalidate logs a successful store whose entry carries must-revalidate.
func (l *Logger) CachedButRevalidate(requestID int64) {
	l.line(requestID, "cached, but requires re-validation")
}

// Note logs a free-form informational message.
func (l *Logger) Note(requestID int64, msg string) {
	l.line(requestID, "NOTE "+msg)
}

// Error logs a free-form error message.
func (l *Logger) Error(requestID int64, msg string) {
	l.line(requestID, "ERROR "+msg)
}
