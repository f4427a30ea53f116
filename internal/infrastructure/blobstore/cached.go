package blobstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix  = "chaingraph:artifact:"
	defaultCacheTTL = time.Hour
)

// Backend is the durable store a CachedStore wraps.
type Backend interface {
	Put(ctx context.Context, scope, key string, payload []byte) error
	Get(ctx context.Context, scope, key string) ([]byte, bool, error)
	Has(ctx context.Context, scope, key string) (bool, error)
	Ping(ctx context.Context) error
}

type CacheConfig struct {
	Addr string
	TTL  time.Duration
}

// CachedStore layers a redis read-through cache over a durable
// backend. Artifact entries are immutable per key, so serving stale
// reads is not a concern; Put still writes through and re-primes.
type CachedStore struct {
	Backend
	cache *redis.Client
	ttl   time.Duration
}

func NewCachedStore(base Backend, cfg CacheConfig) (*CachedStore, error) {
	if base == nil {
		return nil, errors.New("base store is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return &CachedStore{Backend: base}, nil
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &CachedStore{Backend: base, cache: client, ttl: cfg.TTL}, nil
}

func (s *CachedStore) Put(ctx context.Context, scope, key string, payload []byte) error {
	if err := s.Backend.Put(ctx, scope, key, payload); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey(scope, key), payload, s.ttl).Err()
	}
	return nil
}

func (s *CachedStore) Get(ctx context.Context, scope, key string) ([]byte, bool, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey(scope, key)).Bytes(); err == nil {
			return cached, true, nil
		}
	}
	payload, ok, err := s.Backend.Get(ctx, scope, key)
	if err != nil || !ok {
		return payload, ok, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey(scope, key), payload, s.ttl).Err()
	}
	return payload, true, nil
}

func (s *CachedStore) Has(ctx context.Context, scope, key string) (bool, error) {
	if s.cache != nil {
		if exists, err := s.cache.Exists(ctx, cacheKey(scope, key)).Result(); err == nil && exists > 0 {
			return true, nil
		}
	}
	return s.Backend.Has(ctx, scope, key)
}

func cacheKey(scope, key string) string {
	return cacheKeyPrefix + scope + ":" + key
}
