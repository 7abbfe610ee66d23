package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "interview:"

// redisStore keeps each record as a JSON string under interview:<id>
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// Create implements Store
func (s *redisStore) Create(ctx context.Context, rec *Record) error {
	now := s.now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	created, err := s.client.SetNX(ctx, sessionKeyPrefix+rec.ID, val, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if !created {
		return ErrAlreadyExists
	}
	return nil
}

// Get implements Store
func (s *redisStore) Get(ctx context.Context, id string) (*Record, error) {
	key := sessionKeyPrefix + id
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	// Refresh TTL on read
	_ = s.client.Expire(ctx, key, s.ttl).Err()

	return &rec, nil
}

// Update implements Store. The read-modify-write runs under WATCH so a
// concurrent writer aborts the transaction instead of being overwritten.
func (s *redisStore) Update(ctx context.Context, id string, outcome Outcome) error {
	key := sessionKeyPrefix + id

	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var rec Record
		if err := json.Unmarshal(val, &rec); err != nil {
			return fmt.Errorf("failed to decode session: %w", err)
		}

		rec.Outcome = outcome
		rec.Completed = true
		rec.UpdatedAt = s.now()

		newVal, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newVal, s.ttl)
			return nil
		})
		return err
	}, key)
}

// Close implements Store
func (s *redisStore) Close() error {
	return s.client.Close()
}
