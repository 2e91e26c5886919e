package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memEntry struct {
	value     string
	expiresAt time.Time
}

// Memory is a bounded, process-local backend. Expired entries read as a miss
// and stay resident until overwritten or evicted by the LRU bound, so a
// read never removes a value written concurrently.
type Memory struct {
	lru *lru.Cache[string, memEntry]
	now func() time.Time
}

// NewMemory builds an LRU holding at most size entries.
func NewMemory(size int) (*Memory, error) {
	c, err := lru.New[string, memEntry](size)
	if err != nil {
		return nil, fmt.Errorf("cache: new lru: %w", err)
	}
	return &Memory{lru: c, now: time.Now}, nil
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	e, ok := m.lru.Get(key)
	if !ok {
		return "", false, nil
	}
	if !m.now().Before(e.expiresAt) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *Memory) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	m.lru.Add(key, memEntry{value: value, expiresAt: m.now().Add(ttl)})
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error {
	m.lru.Purge()
	return nil
}

// Len reports the number of resident entries, expired ones included.
func (m *Memory) Len() int { return m.lru.Len() }
