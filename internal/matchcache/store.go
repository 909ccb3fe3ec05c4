// Package matchcache keeps the match data fetched for a page view so a later
// booking request can resolve the chosen therapist without refetching.
package matchcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/solhealth/match-booking/internal/solhealth"
)

const (
	keyPrefix  = "match:page:"
	defaultTTL = 30 * time.Minute
)

// Store saves and loads match results by survey response id. Get returns
// (nil, nil) on a miss.
type Store interface {
	Put(ctx context.Context, responseID string, result *solhealth.MatchResult) error
	Get(ctx context.Context, responseID string) (*solhealth.MatchResult, error)
	Delete(ctx context.Context, responseID string) error
}

var errNoResponseID = errors.New("matchcache: response id required")

// RedisStore is a Store shared by all gateway replicas.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a Redis-backed store. Entries expire after ttl.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func pageKey(responseID string) string {
	return keyPrefix + responseID
}

func (s *RedisStore) Put(ctx context.Context, responseID string, result *solhealth.MatchResult) error {
	responseID = strings.TrimSpace(responseID)
	if responseID == "" {
		return errNoResponseID
	}
	if result == nil {
		return s.Delete(ctx, responseID)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("matchcache: marshal: %w", err)
	}
	if err := s.rdb.Set(ctx, pageKey(responseID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("matchcache: set: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, responseID string) (*solhealth.MatchResult, error) {
	data, err := s.rdb.Get(ctx, pageKey(strings.TrimSpace(responseID))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("matchcache: get: %w", err)
	}
	var result solhealth.MatchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("matchcache: unmarshal: %w", err)
	}
	return &result, nil
}

func (s *RedisStore) Delete(ctx context.Context, responseID string) error {
	if err := s.rdb.Del(ctx, pageKey(strings.TrimSpace(responseID))).Err(); err != nil {
		return fmt.Errorf("matchcache: delete: %w", err)
	}
	return nil
}

// MemoryStore is a single-replica Store for when Redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	result  solhealth.MatchResult
	expires time.Time
}

// NewMemoryStore creates an in-process store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryStore{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Put(_ context.Context, responseID string, result *solhealth.MatchResult) error {
	responseID = strings.TrimSpace(responseID)
	if responseID == "" {
		return errNoResponseID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if result == nil {
		delete(s.entries, responseID)
		return nil
	}
	now := s.now()
	for id, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, id)
		}
	}
	s.entries[responseID] = memoryEntry{result: *result, expires: now.Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, responseID string) (*solhealth.MatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[strings.TrimSpace(responseID)]
	if !ok || s.now().After(e.expires) {
		return nil, nil
	}
	result := e.result
	return &result, nil
}

func (s *MemoryStore) Delete(_ context.Context, responseID string) error {
	s.mu.Lock()
	delete(s.entries, strings.TrimSpace(responseID))
	s.mu.Unlock()
	return nil
}
