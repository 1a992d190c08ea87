package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists serialised carts between sessions.
type Store interface {
	// Load returns the stored payload and whether the key existed.
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, data []byte) error
}

// RedisStore keeps carts in Redis with a sliding TTL.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore constructs a Redis backed store.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "cart:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil || s.client == nil || key == "" {
		return nil, false, nil
	}
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, key string, data []byte) error {
	if s == nil || s.client == nil || key == "" {
		return nil
	}
	return s.client.Set(ctx, s.prefix+key, data, s.ttl).Err()
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), data...)
	return nil
}

// ErrStoreUnavailable is returned by GuardedStore while its breaker is open.
var ErrStoreUnavailable = errors.New("cart store unavailable")

// Breaker gates calls to a store that keeps failing.
type Breaker interface {
	Allow(ctx context.Context) bool
	Report(ctx context.Context, success bool)
}

// GuardedStore short-circuits Store calls while Breaker is open.
type GuardedStore struct {
	Store   Store
	Breaker Breaker
}

// Load implements Store.
func (g GuardedStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	if g.Breaker != nil && !g.Breaker.Allow(ctx) {
		return nil, false, ErrStoreUnavailable
	}
	data, ok, err := g.Store.Load(ctx, key)
	g.report(ctx, err)
	return data, ok, err
}

// Save implements Store.
func (g GuardedStore) Save(ctx context.Context, key string, data []byte) error {
	if g.Breaker != nil && !g.Breaker.Allow(ctx) {
		return ErrStoreUnavailable
	}
	err := g.Store.Save(ctx, key, data)
	g.report(ctx, err)
	return err
}

func (g GuardedStore) report(ctx context.Context, err error) {
	if g.Breaker != nil {
		g.Breaker.Report(ctx, err == nil)
	}
}
