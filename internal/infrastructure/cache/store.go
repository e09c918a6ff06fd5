package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// Store is the byte-level backend behind the schema cache. Get's second
// return reports a hit; a miss is not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// LRUStore is an in-process, fixed-size LRU store. TTLs are ignored:
// entries live until evicted or invalidated, which is safe because every
// Save and Delete invalidates its key.
type LRUStore struct {
	entries *lru.Cache[string, []byte]
}

func NewLRUStore(maxKeys int) (*LRUStore, error) {
	entries, err := lru.New[string, []byte](maxKeys)
	if err != nil {
		return nil, err
	}
	return &LRUStore{entries: entries}, nil
}

func (s *LRUStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, ok := s.entries.Get(key)
	return value, ok, nil
}

func (s *LRUStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.entries.Add(key, value)
	return nil
}

func (s *LRUStore) Delete(ctx context.Context, key string) error {
	s.entries.Remove(key)
	return nil
}

// RedisStore backs the cache with Redis, for deployments where several
// configd replicas should share one warm cache.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the Redis at url (redis://...) and verifies
// the connection.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) Close() error { return s.client.Close() }
