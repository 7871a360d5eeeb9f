// Package prefs stores per-user UI preferences.
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Preferences are the UI settings persisted per user across sessions.
type Preferences struct {
	SidebarCollapsed bool   `json:"sidebar_collapsed"`
	ActiveModule     string `json:"active_module,omitempty"`
}

// Store persists preferences keyed by user ID.
type Store interface {
	Get(ctx context.Context, userID string) (Preferences, error)
	Set(ctx context.Context, userID string, p Preferences) error
}

// MemoryStore keeps preferences in process memory. Used when Redis is not
// configured; preferences then live only for the lifetime of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	prefs map[string]Preferences
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{prefs: make(map[string]Preferences)}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs[userID], nil
}

func (s *MemoryStore) Set(_ context.Context, userID string, p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[userID] = p
	return nil
}

// RedisStore persists preferences in Redis so they survive restarts and are
// shared across gateway instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, ttl: 90 * 24 * time.Hour}
}

func (s *RedisStore) key(userID string) string {
	return "gateway:prefs:" + userID
}

func (s *RedisStore) Get(ctx context.Context, userID string) (Preferences, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err == redis.Nil {
		return Preferences{}, nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("prefs get: %w", err)
	}
	var p Preferences
	if err := json.Unmarshal(data, &p); err != nil {
		// Corrupt entry: fall back to defaults rather than failing the request.
		return Preferences{}, nil
	}
	return p, nil
}

func (s *RedisStore) Set(ctx context.Context, userID string, p Preferences) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("prefs marshal: %w", err)
	}
	if err := s.client.Set(ctx, s.key(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("prefs set: %w", err)
	}
	return nil
}
