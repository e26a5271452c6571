package cache

import (
	"context"
	"sort"
	"sync"
)

// InMemoryStorage implements Storage with process memory. Safe for concurrent use.
type InMemoryStorage struct {
	mu     sync.RWMutex
	names  []string
	caches map[string]*memoryCache
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewInMemoryStorage creates an empty storage.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{caches: make(map[string]*memoryCache)}
}

// Open returns the named cache, creating it if needed.
func (s *InMemoryStorage) Open(ctx context.Context, name string) (Cache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[name]
	if !ok {
		c = &memoryCache{entries: make(map[string]*Entry)}
		s.caches[name] = c
		s.names = append(s.names, name)
	}
	return c, nil
}

func (s *InMemoryStorage) Has(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.caches[name]
	return ok, nil
}

func (s *InMemoryStorage) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.names...), nil
}

// Delete drops the named cache and all its entries.
func (s *InMemoryStorage) Delete(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.caches[name]; !ok {
		return false, nil
	}
	delete(s.caches, name)
	for i, n := range s.names {
		if n == name {
			s.names = append(s.names[:i], s.names[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *InMemoryStorage) Match(ctx context.Context, key string) (*Entry, bool, error) {
	return matchAll(ctx, s, key)
}

func (s *InMemoryStorage) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (c *memoryCache) Match(ctx context.Context, key string) (*Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return e.clone(), true, nil
}

func (c *memoryCache) Put(ctx context.Context, key string, e *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = e.clone()
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok, nil
}

func (c *memoryCache) Keys(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
