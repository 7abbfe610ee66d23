package plan

import (
	"context"
	"fmt"

	"github.com/supabase-community/supabase-go"
)

// SupabaseLookup reads plan limits from the user_plans view
type SupabaseLookup struct {
	client *supabase.Client
	table  string
}

// NewSupabaseLookup creates a lookup backed by Supabase PostgREST
func NewSupabaseLookup(url, apiKey string) (*SupabaseLookup, error) {
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

	return &SupabaseLookup{client: client, table: "user_plans"}, nil
}

// Lookup implements EntitlementLookup
func (s *SupabaseLookup) Lookup(ctx context.Context, userID string) (Limits, error) {
	if userID == "" {
		return Limits{}, fmt.Errorf("user id is required for plan lookup")
	}

	var limits Limits
	_, err := s.client.From(s.table).
		Select("monthly_interview_cap,max_minutes_per_interview", "", false).
		Eq("user_id", userID).
		Single().
		ExecuteTo(&limits)
	if err != nil {
		return Limits{}, fmt.Errorf("failed to get plan limits: %w", err)
	}

	return limits, nil
}
