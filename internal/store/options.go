package store

import (
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/supabase-community/supabase-go"
)

// StoreOption is a functional option for configuring a store
type StoreOption func(*storeConfig)

type storeConfig struct {
	redisClient    *redis.Client
	redisTTL       time.Duration
	supabaseClient *supabase.Client
	supabaseTable  string
	now            func() time.Time
}

// WithRedisClient sets the client for the redis driver
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithRedisTTL sets the expiry of redis keys
func WithRedisTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.redisTTL = ttl
	}
}

// WithSupabase sets the client and table for the supabase driver
func WithSupabase(client *supabase.Client, table string) StoreOption {
	return func(c *storeConfig) {
		c.supabaseClient = client
		c.supabaseTable = table
	}
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) StoreOption {
	return func(c *storeConfig) {
		c.now = now
	}
}
