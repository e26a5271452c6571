package kvstore

import (
	"context"
	"errors"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcachedStore implements Store on memcached. Items are written without
// expiration; memcached may still evict them under memory pressure, which the
// dashboard treats the same as a first run.
type MemcachedStore struct {
	client *memcache.Client
	prefix string
}

// NewMemcachedStore wraps client. prefix namespaces every key.
func NewMemcachedStore(client *memcache.Client, prefix string) *MemcachedStore {
	return &MemcachedStore{client: client, prefix: prefix}
}

func (s *MemcachedStore) Get(ctx context.Context, key string) (string, bool, error) {
	if ctx.Err() != nil {
		return "", false, ctx.Err()
	}
	item, err := s.client.Get(s.prefix + key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(item.Value), true, nil
}

func (s *MemcachedStore) Set(ctx context.Context, key, value string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return s.client.Set(&memcache.Item{Key: s.prefix + key, Value: []byte(value)})
}

func (s *MemcachedStore) Delete(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	err := s.client.Delete(s.prefix + key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

func (s *MemcachedStore) Ping(ctx context.Context) error {
	return s.client.Ping()
}
