// Package cache provides the request-signature memoization layer shared
// by the source clients and the location search engine. The store is an
// explicit dependency constructed once in main and injected; nothing in
// this package is reachable through package-level state.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"
)

// Store memoizes expensive fetches keyed by a request signature for a
// bounded TTL. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the cached payload for key if present and unexpired.
	Get(key string) (interface{}, bool)

	// Set stores payload under key with the given TTL.
	Set(key string, payload interface{}, ttl time.Duration)

	// GetOrFetch returns the cached payload on a hit; on a miss it
	// invokes fetch, caches a successful result and returns it.
	// Errors are never cached. Concurrent callers for the same key
	// share one in-flight fetch.
	GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch func(ctx context.Context) (interface{}, error)) (interface{}, error)
}

// Signature builds a stable cache key from a source identifier and its
// canonicalized (key-sorted) query parameters.
func Signature(source string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(source))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(params[k]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

type entry struct {
	payload   interface{}
	expiresAt time.Time
}

type inflight struct {
	done    chan struct{}
	payload interface{}
	err     error
}

// MemoryStore is the in-process Store implementation.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]entry
	inflight map[string]*inflight
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string]entry),
		inflight: make(map[string]*inflight),
		now:      time.Now,
	}
}

// Get returns the cached payload for key if present and unexpired.
func (s *MemoryStore) Get(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(key)
}

func (s *MemoryStore) getLocked(key string) (interface{}, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, key)
		return nil, false
	}
	return e.payload, true
}

// Set stores payload under key with the given TTL.
func (s *MemoryStore) Set(key string, payload interface{}, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{payload: payload, expiresAt: s.now().Add(ttl)}
}

// GetOrFetch implements single-flight fetch-through caching.
func (s *MemoryStore) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	s.mu.Lock()
	if payload, ok := s.getLocked(key); ok {
		s.mu.Unlock()
		return payload, nil
	}

	if fl, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		select {
		case <-fl.done:
			return fl.payload, fl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	fl := &inflight{done: make(chan struct{})}
	s.inflight[key] = fl
	s.mu.Unlock()

	fl.payload, fl.err = fetch(ctx)

	s.mu.Lock()
	delete(s.inflight, key)
	if fl.err == nil {
		s.entries[key] = entry{payload: fl.payload, expiresAt: s.now().Add(ttl)}
	}
	s.mu.Unlock()

	close(fl.done)
	return fl.payload, fl.err
}

// Purge removes expired entries. Callers may run it periodically; the
// store also evicts lazily on read.
func (s *MemoryStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	now := s.now()
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
