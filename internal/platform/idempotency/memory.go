package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps reservations in process, so it only deduplicates commits reaching this
// instance.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Reserve(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	key, now, ttl, err := normalise(key, now, ttl)
	if err != nil {
		return Reservation{}, err
	}
	id := documentID(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	stored, found := s.records[id]
	res, write, err := reserveTransition(stored, found, key, fingerprint, now, ttl)
	if err != nil {
		return Reservation{}, err
	}
	if write {
		s.records[id] = res.Record
	}
	return res, nil
}

func (s *MemoryStore) Complete(_ context.Context, key, fingerprint string, result []byte, now time.Time, ttl time.Duration) error {
	key, now, ttl, err := normalise(key, now, ttl)
	if err != nil {
		return err
	}
	id := documentID(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	stored, found := s.records[id]
	next, err := completeTransition(stored, found, key, fingerprint, result, now, ttl)
	if err != nil {
		return err
	}
	s.records[id] = next
	return nil
}

// Release drops the reservation only while fingerprint still holds it.
func (s *MemoryStore) Release(_ context.Context, key, fingerprint string) error {
	id := documentID(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.records[id]; ok && stored.Fingerprint == fingerprint {
		delete(s.records, id)
	}
	return nil
}

// CleanupExpired removes up to limit expired reservations; a non-positive limit removes all.
func (s *MemoryStore) CleanupExpired(_ context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, stored := range s.records {
		if limit > 0 && removed == limit {
			break
		}
		if stored.expired(now) {
			delete(s.records, id)
			removed++
		}
	}
	return removed, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }
