package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Guard admits at most one booking attempt per key at a time.
type Guard interface {
	// Acquire claims key. It returns ErrBookingInFlight when the key is held.
	// The returned release func must be called once the attempt ends.
	Acquire(ctx context.Context, key string) (release func(context.Context), err error)
}

// LocalGuard is an in-process Guard. It only protects a single replica.
type LocalGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalGuard creates an empty in-process guard.
func NewLocalGuard() *LocalGuard {
	return &LocalGuard{held: make(map[string]struct{})}
}

func (g *LocalGuard) Acquire(_ context.Context, key string) (func(context.Context), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.held[key]; ok {
		return nil, ErrBookingInFlight
	}
	g.held[key] = struct{}{}
	var once sync.Once
	return func(context.Context) {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, nil
}

// releaseScript deletes the lock only if it still carries our token, so an
// attempt that outlived its TTL cannot free a newer holder's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard is a Guard shared by every gateway replica. Locks expire after
// ttl so a crashed replica cannot block a client forever.
type RedisGuard struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisGuard creates a Redis-backed guard.
func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	if client == nil {
		panic("booking: redis client required")
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisGuard{redis: client, ttl: ttl, prefix: "booking:inflight:"}
}

func (g *RedisGuard) key(key string) string {
	return g.prefix + key
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(context.Context), error) {
	token := uuid.NewString()
	ok, err := g.redis.SetNX(ctx, g.key(key), token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("booking: acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrBookingInFlight
	}
	return func(ctx context.Context) {
		// On error the TTL frees the lock.
		_ = releaseScript.Run(ctx, g.redis, []string{g.key(key)}, token).Err()
	}, nil
}
