package main

import (
	"errors"
	"strings"
	"sync"
)

var ErrMissingKey = errors.New("update has no key")

// SnapshotStore holds the latest record per instrument key. Every update
// replaces the previous record for its key wholesale; fields are never merged.
//
// It is safe for concurrent use by any number of writers and readers. Records
// are stored and returned by value so a reader never sees a partially
// written record.
type SnapshotStore struct {
	mu    sync.RWMutex
	order []string
	state map[string]InstrumentRecord
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		state: make(map[string]InstrumentRecord, 64),
	}
}

// ApplyUpdate inserts or replaces the record for rec.Key. Keys are trimmed
// and upper-cased.
func (s *SnapshotStore) ApplyUpdate(rec InstrumentRecord) error {
	key := normalizeKey(rec.Key)
	if key == "" {
		return ErrMissingKey
	}
	rec.Key = key

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state[key]; !ok {
		s.order = append(s.order, key)
	}
	s.state[key] = rec
	return nil
}

// CurrentRecords returns one record per key in first-seen order, taken from a
// single point-in-time view of the map.
func (s *SnapshotStore) CurrentRecords() []InstrumentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]InstrumentRecord, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.state[k])
	}
	return out
}

func (s *SnapshotStore) Get(key string) (InstrumentRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.state[normalizeKey(key)]
	return rec, ok
}

func (s *SnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state)
}

// Keys returns known keys in first-seen order.
func (s *SnapshotStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

func normalizeKey(k string) string {
	return strings.ToUpper(strings.TrimSpace(k))
}
