package storage

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Ensure MemoryStore implements the full interface
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory store for development and tests. Expiry is
// checked lazily on every read, so behavior matches a TTL-enforcing
// backend even when the cleanup sweeper isn't running.
type MemoryStore struct {
	mu        sync.Mutex
	states    map[string]StateRecord
	sessions  map[string]SessionRecord
	whitelist []string
	hasList   bool

	// now is swappable in tests
	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:   make(map[string]StateRecord),
		sessions: make(map[string]SessionRecord),
		now:      time.Now,
	}
}

// SetClock overrides the store's time source. Test use only.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) PutState(_ context.Context, state string, record StateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state] = record
	return nil
}

func (s *MemoryStore) ConsumeState(_ context.Context, state string) (StateRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.states[state]
	if !ok {
		return StateRecord{}, ErrStateNotFound
	}
	// Single-use either way: an expired record is deleted, not resurrected.
	delete(s.states, state)
	if record.Expired(s.now()) {
		return StateRecord{}, ErrStateNotFound
	}
	return record, nil
}

func (s *MemoryStore) PutSession(_ context.Context, id string, record SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = record
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.sessions[id]
	if !ok {
		return SessionRecord{}, ErrSessionNotFound
	}
	return record, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) GetWhitelist(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasList {
		return nil, ErrWhitelistNotFound
	}
	return slices.Clone(s.whitelist), nil
}

func (s *MemoryStore) PutWhitelist(_ context.Context, emails []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.whitelist = slices.Clone(emails)
	s.hasList = true
	return nil
}

func (s *MemoryStore) CleanupExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := 0
	for state, record := range s.states {
		if record.Expired(now) {
			delete(s.states, state)
			count++
		}
	}
	for id, record := range s.sessions {
		if record.Expired(now) {
			delete(s.sessions, id)
			count++
		}
	}
	return count, nil
}
