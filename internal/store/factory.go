package store

import (
	"time"
)

// StoreType names a storage driver
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeRedis    StoreType = "redis"
	StoreTypeSupabase StoreType = "supabase"
)

// NewStore creates a Store for the given driver.
// The redis driver requires WithRedisClient and the supabase driver WithSupabase.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	config := &storeConfig{now: time.Now}
	for _, opt := range opts {
		opt(config)
	}

	switch storeType {
	case StoreTypeMemory:
		return newMemoryStore(config.now), nil

	case StoreTypeRedis:
		if config.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		ttl := config.redisTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		return &redisStore{client: config.redisClient, ttl: ttl, now: config.now}, nil

	case StoreTypeSupabase:
		if config.supabaseClient == nil {
			return nil, ErrInvalidConfig
		}
		table := config.supabaseTable
		if table == "" {
			table = "interviews"
		}
		return &supabaseStore{client: config.supabaseClient, table: table, now: config.now}, nil

	default:
		return nil, ErrInvalidStoreType
	}
}
