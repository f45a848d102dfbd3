package cache

import (
	"container/list"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zack890924/httpcacheproxy/pkg/constants"
	"github.com/zack890924/httpcacheproxy/pkg/errors"
	"github.com/zack890924/httpcacheproxy/pkg/wire"
)

// Store is a bounded LRU cache of Entry values keyed by a host-qualified
// cache key (see pkg/proxy's key derivation). Reads and writes are guarded by
// a single RWMutex; eviction is O(1) via a doubly linked list of keys plus an
// index map to list elements.
//
// Grounded on original_source/src/cacheStore.hpp/.cpp, whose std::list<string>
// + unordered_map<string, list::iterator> pair is the C++ shape this
// container/list + map[string]*list.Element pair replaces directly — Go's
// list.Element pointer plays the same role as the stored iterator.
type Store struct {
	mu       sync.RWMutex
	data     map[string]*Entry
	order    *list.List
	index    map[string]*list.Element
	capacity int
}

// New creates an empty store bounded to capacity entries. A non-positive
// capacity falls back to constants.DefaultCacheCapacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = constants.DefaultCacheCapacity
	}
	return &Store{
		data:     make(map[string]*Entry),
		order:    list.New(),
		index:    make(map[string]*list.Element),
		capacity: capacity,
	}
}

// Fetch looks up key and classifies the result. It follows a read-then-
// upgrade locking pattern: phase 1 copies out the entry under a shared lock
// (no LRU mutation, so concurrent readers never block each other), phase 2
// takes the exclusive lock only to reposition the key to the front of the
// LRU order. Between the phases the entry may have been evicted by a
// concurrent Store call; that race is tolerated by re-checking membership
// before reordering, matching the original fetchData's two-phase shape.
//
// The Entry (and its Response, including the header map) returned to the
// caller is always a copy: the table's own *Entry, and the map inside it,
// never leave the lock. Without this, a caller reading the returned Response
// headers with no lock held could race UpdateHeaders mutating that same map
// under the store's exclusive lock.
func (s *Store) Fetch(key string) (*Entry, Status) {
	s.mu.RLock()
	live, ok := s.data[key]
	var entry *Entry
	if ok {
		entry = live.clone()
	}
	s.mu.RUnlock()
	if !ok {
		return nil, Miss
	}

	s.mu.Lock()
	if _, stillPresent := s.data[key]; stillPresent {
		s.moveToFrontLocked(key)
	}
	s.mu.Unlock()

	switch {
	case entry.IsExpired():
		return entry, Expired
	case entry.MustRevalidate:
		return entry, Revalidate
	default:
		return entry, Valid
	}
}

// Store records response under key, applying Cache-Control/Expires policy.
// Only 200 responses are ever cached; a response carrying no-store or
// private in Cache-Control is rejected with a CachePolicy error and never
// enters the store.
func (s *Store) Store(key string, response *wire.Response) error {
	if response.StatusCode != 200 {
		return nil
	}

	expireTime, revalidate, err := parseCacheControl(response.Headers)
	if err != nil {
		return err
	}

	entry := &Entry{
		ExpireTime:     expireTime,
		MustRevalidate: revalidate,
		ETag:           response.HeaderValue("ETag"),
		Response:       response,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		s.data[key] = entry
		s.moveToFrontLocked(key)
	} else {
		el := s.order.PushFront(key)
		s.index[key] = el
		s.data[key] = entry
	}

	if len(s.data) > s.capacity {
		oldest := s.order.Back()
		if oldest != nil {
			oldKey := oldest.Value.(string)
			s.order.Remove(oldest)
			delete(s.index, oldKey)
			delete(s.data, oldKey)
		}
	}

	return nil
}

// UpdateHeaders merges the headers of a 304 response into the cached entry
// for key (the origin's canonical way of refreshing freshness without
// resending the body) and recomputes expiration/must-revalidate from the
// merged headers. If the merged headers turn out non-cacheable, the entry is
// kept rather than evicted: the headers stay merged, but its previous
// expiration and must-revalidate flag are left as they were.
//
// A no-op if key is absent (e.g. evicted between the revalidation request
// being issued and its 304 arriving); calling it twice with the same
// response is idempotent since it always fully overwrites the same fields.
func (s *Store) UpdateHeaders(key string, notModified *wire.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[key]
	if !ok {
		return
	}

	if entry.Response.Headers == nil {
		entry.Response.Headers = make(map[string]string)
	}
	for name, value := range notModified.Headers {
		entry.Response.Headers[name] = value
	}

	if etag := notModified.HeaderValue("ETag"); etag != "" {
		entry.ETag = etag
		entry.Response.Headers["ETag"] = etag
	}

	if expireTime, revalidate, err := parseCacheControl(entry.Response.Headers); err == nil {
		entry.ExpireTime = expireTime
		entry.MustRevalidate = revalidate
	}
}

// Len reports the current number of cached entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *Store) moveToFrontLocked(key string) {
	el, ok := s.index[key]
	if !ok {
		return
	}
	s.order.MoveToFront(el)
}

// parseCacheControl derives an expiration time and a must-revalidate flag
// from a response's Cache-Control and Expires headers. no-store or private
// in Cache-Control makes the response uncacheable, reported as a
// CachePolicy error. Absent any freshness directive, an entry is kept fresh
// for constants.DefaultCacheTTL.
//
// Grounded on original_source/src/cacheStore.cpp's parseCacheControl,
// translated field-for-field from its substring scanning into Go string
// helpers.
func parseCacheControl(headers map[string]string) (time.Time, bool, error) {
	expireTime := time.Now().Add(constants.DefaultCacheTTL)
	revalidate := false

	if cc, ok := headers["Cache-Control"]; ok {
		lower := strings.ToLower(cc)

		if strings.Contains(lower, "no-store") || strings.Contains(lower, "private") {
			return time.Time{}, false, errors.NewCachePolicyError("not cacheable (no-store/private)")
		}
		if strings.Contains(lower, "must-revalidate") {
			revalidate = true
		}
		if maxAge, ok := parseMaxAge(cc); ok {
			expireTime = time.Now().Add(time.Duration(maxAge) * time.Second)
		}
	}

	if expiresRaw, ok := headers["Expires"]; ok {
		if parsed, err := wire.ParseHTTPDate(expiresRaw); err == nil {
			if parsed.After(time.Now()) {
				expireTime = parsed
			}
		}
	}

	return expireTime, revalidate, nil
}

// parseMaxAge extracts the integer value of the first "max-age=" directive
// in a Cache-Control header value, stopping at the first non-digit
// (matching the original's digit-scan rather than a full token parser).
func parseMaxAge(cacheControl string) (int, bool) {
	idx := strings.Index(cacheControl, "max-age=")
	if idx < 0 {
		return 0, false
	}
	rest := cacheControl[idx+len("max-age="):]

	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
