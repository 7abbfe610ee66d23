package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/supabase-community/supabase-go"
)

// supabaseStore writes records to a PostgREST table through supabase-go
type supabaseStore struct {
	client *supabase.Client
	table  string
	now    func() time.Time
}

// NewSupabaseClient creates the client used by WithSupabase
func NewSupabaseClient(url, apiKey string) (*supabase.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}

	client, err := supabase.NewClient(url, apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return client, nil
}

// Create implements Store
func (s *supabaseStore) Create(ctx context.Context, rec *Record) error {
	now := s.now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, _, err := s.client.From(s.table).
		Insert(rec, false, "", "minimal", "").
		Execute()
	if err != nil {
		if isConflict(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Get implements Store
func (s *supabaseStore) Get(ctx context.Context, id string) (*Record, error) {
	var records []Record
	_, err := s.client.From(s.table).
		Select("*", "", false).
		Eq("id", id).
		ExecuteTo(&records)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return &records[0], nil
}

// Update implements Store
func (s *supabaseStore) Update(ctx context.Context, id string, outcome Outcome) error {
	values := map[string]any{
		"feedback":               outcome.Feedback,
		"preparation_percentage": outcome.PreparationPercentage,
		"transcript":             outcome.Transcript,
		"completed":              true,
		"updated_at":             s.now(),
	}

	var updated []Record
	_, err := s.client.From(s.table).
		Update(values, "representation", "").
		Eq("id", id).
		ExecuteTo(&updated)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if len(updated) == 0 {
		return ErrNotFound
	}
	return nil
}

// Close implements Store
func (s *supabaseStore) Close() error {
	return nil
}

// isConflict reports a unique violation surfaced by PostgREST
func isConflict(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}
