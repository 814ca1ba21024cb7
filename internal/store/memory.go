package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used for tests and dry runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	seq     int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) ListEntries(ctx context.Context, projectID string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []Entry
	for _, e := range s.entries {
		if e.ProjectID == projectID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

func (s *MemoryStore) CreateEntry(ctx context.Context, projectID string, e Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = NewID()
	}
	e.ProjectID = projectID
	s.seq++
	if e.CreatedAt.IsZero() {
		// Sequence-stamped so ListEntries keeps insertion order even when
		// several entries arrive in the same instant.
		e.CreatedAt = time.Now().Add(time.Duration(s.seq) * time.Microsecond)
	}
	e.UpdatedAt = time.Now()
	s.entries[e.ID] = e
	return e.ID, nil
}

func (s *MemoryStore) UpdateEntry(ctx context.Context, id string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.ID = id
	e.ProjectID = existing.ProjectID
	e.CreatedAt = existing.CreatedAt
	e.UpdatedAt = time.Now()
	s.entries[id] = e
	return nil
}

func (s *MemoryStore) DeleteEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

// Get returns one entry by id (test helper).
func (s *MemoryStore) Get(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return e, ok
}

// Len reports the number of stored entries (test helper).
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
