package store

import (
	"context"
	"sync"
	"time"

	"github.com/lexiqai/interview-engine/internal/reasoning"
)

// memoryStore keeps records in a map; used in development and tests
type memoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	now     func() time.Time
}

func newMemoryStore(now func() time.Time) *memoryStore {
	return &memoryStore{records: make(map[string]*Record), now: now}
}

// Create implements Store
func (s *memoryStore) Create(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return ErrAlreadyExists
	}

	now := s.now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	stored := *rec
	s.records[rec.ID] = &stored
	return nil
}

// Get implements Store; the returned record is a copy
func (s *memoryStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[id]
	if !exists {
		return nil, ErrNotFound
	}
	out := *rec
	out.Transcript = append([]reasoning.Turn(nil), rec.Transcript...)
	return &out, nil
}

// Update implements Store
func (s *memoryStore) Update(ctx context.Context, id string, outcome Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[id]
	if !exists {
		return ErrNotFound
	}

	outcome.Transcript = append([]reasoning.Turn(nil), outcome.Transcript...)
	rec.Outcome = outcome
	rec.Completed = true
	rec.UpdatedAt = s.now()
	return nil
}

// Close implements Store
func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*Record)
	return nil
}
