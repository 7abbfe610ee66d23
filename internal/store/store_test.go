package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lexiqai/interview-engine/internal/reasoning"
)

func intPtr(v int) *int { return &v }

func fixedClock() func() time.Time {
	t := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func newRecord() *Record {
	return &Record{
		ID:               uuid.New().String(),
		UserID:           "user-1",
		Technology:       "Go",
		Company:          "Acme",
		Level:            "senior",
		RequestedMinutes: 45,
		AllowedMinutes:   30,
	}
}

// exerciseStore runs the behaviour every driver must share
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("update missing", func(t *testing.T) {
		if err := s.Update(ctx, "missing", Outcome{Feedback: "x"}); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("create and get", func(t *testing.T) {
		rec := newRecord()
		if err := s.Create(ctx, rec); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}

		got, err := s.Get(ctx, rec.ID)
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if got.AllowedMinutes != 30 || got.RequestedMinutes != 45 {
			t.Errorf("Expected minutes 45/30, got %d/%d", got.RequestedMinutes, got.AllowedMinutes)
		}
		if got.Completed {
			t.Error("Expected new record not to be completed")
		}
		if got.PreparationPercentage != nil {
			t.Error("Expected no preparation percentage on a new record")
		}
	})

	t.Run("duplicate create", func(t *testing.T) {
		rec := newRecord()
		if err := s.Create(ctx, rec); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		dup := *rec
		if err := s.Create(ctx, &dup); !errors.Is(err, ErrAlreadyExists) {
			t.Errorf("Expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("update attaches outcome", func(t *testing.T) {
		rec := newRecord()
		if err := s.Create(ctx, rec); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}

		outcome := Outcome{
			Feedback:              "Strong fundamentals.",
			PreparationPercentage: intPtr(72),
			Transcript: []reasoning.Turn{
				{Role: reasoning.RoleAssistant, Content: "Hello"},
				{Role: reasoning.RoleUser, Content: "Hi"},
			},
		}
		if err := s.Update(ctx, rec.ID, outcome); err != nil {
			t.Fatalf("Update() failed: %v", err)
		}

		got, err := s.Get(ctx, rec.ID)
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if !got.Completed {
			t.Error("Expected record to be completed")
		}
		if got.Feedback != "Strong fundamentals." {
			t.Errorf("Expected feedback to persist, got '%s'", got.Feedback)
		}
		if got.PreparationPercentage == nil || *got.PreparationPercentage != 72 {
			t.Errorf("Expected preparation percentage 72, got %v", got.PreparationPercentage)
		}
		if len(got.Transcript) != 2 {
			t.Errorf("Expected 2 transcript turns, got %d", len(got.Transcript))
		}
	})
}

func TestMemoryStore(t *testing.T) {
	s, err := NewStore(StoreTypeMemory, WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	defer s.Close()

	exerciseStore(t, s)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s, _ := NewStore(StoreTypeMemory)
	ctx := context.Background()

	rec := newRecord()
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	rec.Technology = "mutated after create"

	got, _ := s.Get(ctx, rec.ID)
	got.Technology = "mutated after get"

	again, _ := s.Get(ctx, rec.ID)
	if again.Technology != "Go" {
		t.Errorf("Expected stored record to be isolated, got '%s'", again.Technology)
	}
}

func TestMemoryStore_Timestamps(t *testing.T) {
	clock := fixedClock()
	s, _ := NewStore(StoreTypeMemory, WithClock(clock))

	rec := newRecord()
	s.Create(context.Background(), rec)
	if !rec.CreatedAt.Equal(clock()) {
		t.Errorf("Expected CreatedAt %v, got %v", clock(), rec.CreatedAt)
	}
}

func TestNewStore_Errors(t *testing.T) {
	tests := []struct {
		name      string
		storeType StoreType
		want      error
	}{
		{"redis without client", StoreTypeRedis, ErrInvalidConfig},
		{"supabase without client", StoreTypeSupabase, ErrInvalidConfig},
		{"unknown driver", StoreType("etcd"), ErrInvalidStoreType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewStore(tt.storeType); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNewSupabaseClient_RequiresCredentials(t *testing.T) {
	if _, err := NewSupabaseClient("", "key"); err == nil {
		t.Error("Expected error for missing URL")
	}
	if _, err := NewSupabaseClient("https://example.supabase.co", ""); err == nil {
		t.Error("Expected error for missing key")
	}
}

// TestRedisStore runs against a live server when TEST_REDIS_URL is set
func TestRedisStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("ParseURL() failed: %v", err)
	}
	s, err := NewStore(StoreTypeRedis, WithRedisClient(redis.NewClient(opts)), WithRedisTTL(time.Minute))
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	defer s.Close()

	exerciseStore(t, s)
}
