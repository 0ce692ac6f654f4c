// Package tempo provides Store, a lazily expiring key set used to debounce
// and rate limit things like trigger replies or task due times.
//
// There is no background sweep: an expired key is only reclaimed when Exists
// is called for that exact key. Keep the key space small (per channel, per
// trigger, per task); it is not meant for unbounded key cardinality.
package tempo

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type Store struct {
	mu    sync.Mutex
	now   func() time.Time
	store map[string]time.Time
}

type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{now: time.Now, store: map[string]time.Time{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Set records key as present for ttl, replacing any previous expiry.
func (s *Store) Set(key string, ttl time.Duration) {
	s.mu.Lock()
	s.store[key] = s.now().Add(ttl)
	s.mu.Unlock()
}

// Exists reports whether key is present. An expired key is removed.
func (s *Store) Exists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.store[key]
	if !ok {
		return false
	}
	if !exp.After(s.now()) {
		delete(s.store, key)
		return false
	}
	return true
}

// Len returns the number of recorded keys, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.store)
}

type snapshot struct {
	Store map[string]string `json:"store"`
}

// Dump serializes live entries with absolute RFC3339 expiry timestamps.
func (s *Store) Dump() ([]byte, error) {
	s.mu.Lock()
	now := s.now()
	snap := snapshot{Store: make(map[string]string, len(s.store))}
	for k, exp := range s.store {
		if !exp.After(now) {
			continue
		}
		snap.Store[k] = exp.UTC().Format(time.RFC3339Nano)
	}
	s.mu.Unlock()

	return json.Marshal(snap)
}

// Load replaces the content of the store with a snapshot made by Dump.
// Entries that expired in the meantime are dropped.
func (s *Store) Load(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("tempo: decode snapshot: %w", err)
	}

	entries := make(map[string]time.Time, len(snap.Store))
	for k, v := range snap.Store {
		exp, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return fmt.Errorf("tempo: key %q: %w", k, err)
		}
		entries[k] = exp
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.store = make(map[string]time.Time, len(entries))
	for k, exp := range entries {
		if exp.After(now) {
			s.store[k] = exp
		}
	}
	return nil
}
