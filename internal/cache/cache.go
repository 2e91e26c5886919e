// Package cache implements the idempotency cache: a string key/value store
// with per-key expiry used to deduplicate create-order retries. It is a hint,
// never a source of truth, so every backend may lose entries.
//
// Backends:
//   - Redis: shared across replicas (go-redis)
//   - Memory: process-local LRU with lazy expiry (hashicorp/golang-lru)
//   - Database: rows in idempotency_entries next to the orders table
//
// Errors are returned as *domain.Error with CacheUnavailable or
// CacheQueryFailed. A missing or expired key is not an error.
package cache

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-order-backend/internal/config"
)

// Store is implemented by every backend.
type Store interface {
	// Get returns the value for key and whether it was present and unexpired.
	Get(ctx context.Context, key string) (string, bool, error)
	// SetWithTTL stores value under key, replacing any previous value.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}

// New builds the backend selected by cfg.Backend. db is only used by the
// database backend.
func New(cfg config.CacheConfig, db *gorm.DB) (Store, error) {
	switch cfg.Backend {
	case config.CacheRedis:
		return NewRedis(cfg.RedisURL)
	case config.CacheMemory:
		return NewMemory(cfg.MemorySize)
	case config.CacheDatabase:
		if db == nil {
			return nil, fmt.Errorf("cache: database backend needs a store handle")
		}
		return NewDatabase(db), nil
	default:
		return nil, fmt.Errorf("cache: unsupported backend %q", cfg.Backend)
	}
}
