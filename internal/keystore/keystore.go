// Package keystore tracks demo API keys and their per-key usage counts for
// the webhook server.
package keystore

import "sync"

// Store is a mutex-guarded demo-key store. Created once at process start
// and shared across request handlers.
type Store struct {
	mu    sync.Mutex
	usage map[string]int
}

// New creates a Store accepting the given keys.
func New(keys []string) *Store {
	usage := make(map[string]int, len(keys))
	for _, k := range keys {
		if k != "" {
			usage[k] = 0
		}
	}
	return &Store{usage: usage}
}

// Authorize reports whether the key is known and, when it is, records one
// use.
func (s *Store) Authorize(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	count, ok := s.usage[key]
	if !ok {
		return false
	}
	s.usage[key] = count + 1
	return true
}

// Usage returns how many requests a key has made.
func (s *Store) Usage(key string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count, ok := s.usage[key]
	return count, ok
}

// Snapshot copies the current usage counts.
func (s *Store) Snapshot() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.usage))
	for k, v := range s.usage {
		out[k] = v
	}
	return out
}
