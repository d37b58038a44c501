package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"campusmap_backend/internals/logger"
)

// Keys of cached public payloads.
const (
	KeyActiveMap     = "campusmap:public:active-map"
	KeyPublishedMaps = "campusmap:public:maps"
)

var publicKeys = []string{KeyActiveMap, KeyPublishedMaps}

// PublicCache holds rendered public payloads. A miss is never an error.
type PublicCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// InvalidatePublic drops every public payload.
	InvalidatePublic(ctx context.Context)
}

// New returns a Redis-backed cache, or a no-op one when url is empty.
func New(url string) (PublicCache, error) {
	if url == "" {
		logger.App().Info("🔌 REDIS_URL empty, public cache disabled")
		return NopCache{}, nil
	}
	return NewRedisCache(url)
}

type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}

	logger.App().Infof("✅ connected to Redis at %s", opts.Addr)
	return &RedisCache{rdb: rdb}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.App().WithError(err).WithField("key", key).Warn("cache get failed")
		}
		return nil, false
	}
	return b, true
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := r.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		logger.App().WithError(err).WithField("key", key).Warn("cache set failed")
	}
}

func (r *RedisCache) InvalidatePublic(ctx context.Context) {
	if err := r.rdb.Del(ctx, publicKeys...).Err(); err != nil {
		logger.App().WithError(err).Warn("cache invalidate failed")
	}
}

func (r *RedisCache) Close() error { return r.rdb.Close() }

type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (NopCache) Set(context.Context, string, []byte, time.Duration) {}
func (NopCache) InvalidatePublic(context.Context)                   {}

// MemoryCache is an in-process PublicCache, used in tests.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	// Invalidations counts InvalidatePublic calls.
	Invalidations int
}

func NewMemoryCache() *MemoryCache { return &MemoryCache{entries: map[string][]byte{}} }

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.entries[key]
	return b, ok
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
}

func (m *MemoryCache) InvalidatePublic(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range publicKeys {
		delete(m.entries, k)
	}
	m.Invalidations++
}
