package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisStorage implements Storage on redis. Cache names live in a sorted set
// scored by a creation counter; each cache is one hash of key -> JSON entry.
type RedisStorage struct {
	rdb    redis.Cmdable
	prefix string
}

type redisCache struct {
	s    *RedisStorage
	name string
}

// NewRedisStorage wraps rdb. prefix namespaces every key this storage touches.
func NewRedisStorage(rdb redis.Cmdable, prefix string) *RedisStorage {
	return &RedisStorage{rdb: rdb, prefix: prefix}
}

func (s *RedisStorage) namesKey() string { return s.prefix + "names" }
func (s *RedisStorage) seqKey() string   { return s.prefix + "seq" }
func (s *RedisStorage) hashKey(name string) string {
	return s.prefix + "cache:" + name
}

// Open returns the named cache, registering it if needed.
func (s *RedisStorage) Open(ctx context.Context, name string) (Cache, error) {
	ok, err := s.Has(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		seq, err := s.rdb.Incr(ctx, s.seqKey()).Result()
		if err != nil {
			return nil, fmt.Errorf("redis incr: %w", err)
		}
		if err := s.rdb.ZAddNX(ctx, s.namesKey(), redis.Z{Score: float64(seq), Member: name}).Err(); err != nil {
			return nil, fmt.Errorf("redis zadd: %w", err)
		}
	}
	return &redisCache{s: s, name: name}, nil
}

func (s *RedisStorage) Has(ctx context.Context, name string) (bool, error) {
	_, err := s.rdb.ZScore(ctx, s.namesKey(), name).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis zscore: %w", err)
	}
	return true, nil
}

func (s *RedisStorage) Keys(ctx context.Context) ([]string, error) {
	names, err := s.rdb.ZRange(ctx, s.namesKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange: %w", err)
	}
	return names, nil
}

// Delete unregisters the cache and drops its hash.
func (s *RedisStorage) Delete(ctx context.Context, name string) (bool, error) {
	removed, err := s.rdb.ZRem(ctx, s.namesKey(), name).Result()
	if err != nil {
		return false, fmt.Errorf("redis zrem: %w", err)
	}
	if err := s.rdb.Del(ctx, s.hashKey(name)).Err(); err != nil {
		return false, fmt.Errorf("redis del: %w", err)
	}
	return removed > 0, nil
}

func (s *RedisStorage) Match(ctx context.Context, key string) (*Entry, bool, error) {
	return matchAll(ctx, s, key)
}

// Ping checks if redis is reachable. Used for health checks.
func (s *RedisStorage) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (c *redisCache) Match(ctx context.Context, key string) (*Entry, bool, error) {
	raw, err := c.s.rdb.HGet(ctx, c.s.hashKey(c.name), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis hget: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, fmt.Errorf("decode entry: %w", err)
	}
	return &e, true, nil
}

func (c *redisCache) Put(ctx context.Context, key string, e *Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := c.s.rdb.HSet(ctx, c.s.hashKey(c.name), key, raw).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, key string) (bool, error) {
	n, err := c.s.rdb.HDel(ctx, c.s.hashKey(c.name), key).Result()
	if err != nil {
		return false, fmt.Errorf("redis hdel: %w", err)
	}
	return n > 0, nil
}

func (c *redisCache) Keys(ctx context.Context) ([]string, error) {
	keys, err := c.s.rdb.HKeys(ctx, c.s.hashKey(c.name)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hkeys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
