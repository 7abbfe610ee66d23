// Package store persists interview session records and their outcomes.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/lexiqai/interview-engine/internal/reasoning"
)

var (
	// ErrNotFound is returned when a session record does not exist
	ErrNotFound = errors.New("session not found")

	// ErrAlreadyExists is returned when creating a record whose ID is taken
	ErrAlreadyExists = errors.New("session already exists")

	// ErrInvalidConfig is returned when a driver is missing its client
	ErrInvalidConfig = errors.New("invalid store configuration")

	// ErrInvalidStoreType is returned for an unknown driver name
	ErrInvalidStoreType = errors.New("invalid store type")
)

// Record is the persisted state of one interview session
type Record struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id,omitempty"`
	Technology       string    `json:"technology"`
	Company          string    `json:"company,omitempty"`
	Level            string    `json:"level,omitempty"`
	RequestedMinutes int       `json:"requested_minutes"`
	AllowedMinutes   int       `json:"allowed_minutes"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	Outcome
	Completed bool `json:"completed"`
}

// Outcome is written once by the finalizer.
// PreparationPercentage is nil when the summary carried no usable value.
type Outcome struct {
	Feedback              string           `json:"feedback,omitempty"`
	PreparationPercentage *int             `json:"preparation_percentage"`
	Transcript            []reasoning.Turn `json:"transcript,omitempty"`
}

// Store defines the session persistence operations the engine needs
type Store interface {
	// Create persists a new record. Returns ErrAlreadyExists if the ID is taken.
	Create(ctx context.Context, rec *Record) error

	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Update attaches the outcome to an existing record and marks it completed.
	// Returns ErrNotFound if the record does not exist.
	Update(ctx context.Context, id string, outcome Outcome) error

	// Close releases any resources held by the store.
	Close() error
}
