// Package cache implements the proxy's bounded LRU response cache: policy
// parsing from Cache-Control/Expires/ETag, storage keyed by host-qualified
// URL, and the revalidation bookkeeping a 304 response needs.
package cache

import (
	"time"

	"github.com/zack890924/httpcacheproxy/pkg/wire"
)

// Entry is one cached response plus the metadata needed to decide whether it
// can still be served, must be revalidated first, or has aged out.
//
// Grounded on original_source/src/cache.hpp's Cache class.
type Entry struct {
	ExpireTime     time.Time
	MustRevalidate bool
	ETag           string
	Response       *wire.Response
}

// IsExpired reports whether the entry's expiration time has passed.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.ExpireTime)
}

// clone returns a value copy of e, including a copy of its Response and that
// Response's header map, so a caller holding the copy shares no mutable state
// with the table entry still sitting in the store.
func (e *Entry) clone() *Entry {
	respCopy := *e.Response

	headers := make(map[string]string, len(e.Response.Headers))
	for k, v := range e.Response.Headers {
		headers[k] = v
	}
	respCopy.Headers = headers

	if e.Response.Body != nil {
		respCopy.Body = append([]byte(nil), e.Response.Body...)
	}

	cp := *e
	cp.Response = &respCopy
	return &cp
}

// Status classifies a fetched entry for the caller.
type Status int

const (
	// Miss means no entry exists for the key.
	Miss Status = iota
	// Valid means the entry may be served as-is.
	Valid
	// Expired means the entry's freshness lifetime has passed and it must be
	// revalidated (or refetched) before being served.
	Expired
	// Revalidate means the entry carries must-revalidate and always requires
	// a conditional request before being served, regardless of freshness.
	Revalidate
)
