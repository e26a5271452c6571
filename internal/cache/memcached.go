package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/google/uuid"
)

const (
	defaultMemcachedPrefix = "wpwa:"
	maxCASAttempts         = 8
	maxRelativeExp         = 30 * 24 * 60 * 60 // 30 days
	// maxKeysPerCache keeps a cache's key list well under the 1 MB item limit.
	maxKeysPerCache = 2048
)

// ErrIndexContention is returned when a CAS update of an index keeps losing races.
var ErrIndexContention = errors.New("memcached index contention")

// MemcachedStorage implements Storage on memcached. Memcached cannot enumerate
// keys, so cache names live in a CAS-updated JSON index. Each cache gets a fresh
// generation id on creation and its entry keys are hashed under that
// generation, so deleting a cache orphans its entries until they expire.
type MemcachedStorage struct {
	client *memcache.Client
	prefix string
	ttl    time.Duration
}

type memcachedIndex struct {
	Caches []memcachedName `json:"caches"`
}

type memcachedName struct {
	Name string `json:"name"`
	Gen  string `json:"gen"`
}

type memcachedCache struct {
	s    *MemcachedStorage
	name string
	gen  string
}

// NewMemcachedClient creates a client. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// use package defaults if zero.
func NewMemcachedClient(addrs string, timeout time.Duration, maxIdleConns int) *memcache.Client {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return client
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// NewMemcachedStorage wraps client. Entries expire after ttl (clamped to the
// memcached 30 day relative limit, 7 days if zero).
func NewMemcachedStorage(client *memcache.Client, prefix string, ttl time.Duration) *MemcachedStorage {
	if prefix == "" {
		prefix = defaultMemcachedPrefix
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &MemcachedStorage{client: client, prefix: prefix, ttl: ttl}
}

func (s *MemcachedStorage) indexKey() string { return s.prefix + "names" }

func (s *MemcachedStorage) keysKey(gen string) string { return s.prefix + "k:" + gen }

func (s *MemcachedStorage) entryKey(gen, key string) string {
	sum := sha256.Sum256([]byte(gen + "\x00" + key))
	return s.prefix + "e:" + hex.EncodeToString(sum[:])
}

func (s *MemcachedStorage) expiration() int32 {
	exp := int32(s.ttl.Seconds())
	if exp <= 0 || exp > maxRelativeExp {
		exp = maxRelativeExp
	}
	return exp
}

// casUpdate applies fn to the JSON document at key with compare-and-swap,
// creating it when absent. fn reports whether it changed the document. exp is
// written on every store since gets do not return it; 0 never expires.
func (s *MemcachedStorage) casUpdate(key string, exp int32, fresh func() any, fn func(doc any) bool) error {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		doc := fresh()
		item, err := s.client.Get(key)
		switch {
		case errors.Is(err, memcache.ErrCacheMiss):
			if !fn(doc) {
				return nil
			}
			raw, err := json.Marshal(doc)
			if err != nil {
				return err
			}
			err = s.client.Add(&memcache.Item{Key: key, Value: raw, Expiration: exp})
			if errors.Is(err, memcache.ErrNotStored) {
				continue
			}
			return err
		case err != nil:
			return err
		}
		if err := json.Unmarshal(item.Value, doc); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		if !fn(doc) {
			return nil
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		item.Value = raw
		item.Expiration = exp
		err = s.client.CompareAndSwap(item)
		if errors.Is(err, memcache.ErrCASConflict) || errors.Is(err, memcache.ErrNotStored) {
			continue
		}
		return err
	}
	return fmt.Errorf("%s: %w", key, ErrIndexContention)
}

func (s *MemcachedStorage) index() (memcachedIndex, error) {
	var idx memcachedIndex
	item, err := s.client.Get(s.indexKey())
	if errors.Is(err, memcache.ErrCacheMiss) {
		return idx, nil
	}
	if err != nil {
		return idx, err
	}
	if err := json.Unmarshal(item.Value, &idx); err != nil {
		return idx, fmt.Errorf("decode index: %w", err)
	}
	return idx, nil
}

func (idx memcachedIndex) find(name string) (memcachedName, bool) {
	for _, c := range idx.Caches {
		if c.Name == name {
			return c, true
		}
	}
	return memcachedName{}, false
}

// Open returns the named cache, registering a new generation if needed.
func (s *MemcachedStorage) Open(ctx context.Context, name string) (Cache, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	var gen string
	err := s.casUpdate(s.indexKey(), 0, func() any { return &memcachedIndex{} }, func(doc any) bool {
		idx := doc.(*memcachedIndex)
		if existing, ok := idx.find(name); ok {
			gen = existing.Gen
			return false
		}
		gen = uuid.NewString()
		idx.Caches = append(idx.Caches, memcachedName{Name: name, Gen: gen})
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return &memcachedCache{s: s, name: name, gen: gen}, nil
}

func (s *MemcachedStorage) Has(ctx context.Context, name string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	idx, err := s.index()
	if err != nil {
		return false, err
	}
	_, ok := idx.find(name)
	return ok, nil
}

func (s *MemcachedStorage) Keys(ctx context.Context) ([]string, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	idx, err := s.index()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(idx.Caches))
	for _, c := range idx.Caches {
		names = append(names, c.Name)
	}
	return names, nil
}

// Delete unregisters the cache. Its entries are left to expire.
func (s *MemcachedStorage) Delete(ctx context.Context, name string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	removed := false
	err := s.casUpdate(s.indexKey(), 0, func() any { return &memcachedIndex{} }, func(doc any) bool {
		idx := doc.(*memcachedIndex)
		for i, c := range idx.Caches {
			if c.Name == name {
				idx.Caches = append(idx.Caches[:i], idx.Caches[i+1:]...)
				removed = true
				return true
			}
		}
		return false
	})
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", name, err)
	}
	return removed, nil
}

func (s *MemcachedStorage) Match(ctx context.Context, key string) (*Entry, bool, error) {
	return matchAll(ctx, s, key)
}

// Ping checks if memcached is reachable. Used for health checks.
func (s *MemcachedStorage) Ping(ctx context.Context) error {
	return s.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (s *MemcachedStorage) Close() error {
	return s.client.Close()
}

func (c *memcachedCache) Match(ctx context.Context, key string) (*Entry, bool, error) {
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}
	item, err := c.s.client.Get(c.s.entryKey(c.gen, key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var e Entry
	if err := json.Unmarshal(item.Value, &e); err != nil {
		return nil, false, fmt.Errorf("decode entry: %w", err)
	}
	return &e, true, nil
}

func (c *memcachedCache) Put(ctx context.Context, key string, e *Entry) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := c.s.client.Set(&memcache.Item{
		Key:        c.s.entryKey(c.gen, key),
		Value:      raw,
		Expiration: c.s.expiration(),
	}); err != nil {
		return err
	}
	var evicted []string
	err = c.s.casUpdate(c.s.keysKey(c.gen), c.s.expiration(), func() any { return &[]string{} }, func(doc any) bool {
		keys := doc.(*[]string)
		var changed bool
		*keys, evicted, changed = appendKeyCapped(*keys, key, maxKeysPerCache)
		return changed
	})
	if err != nil {
		return err
	}
	for _, k := range evicted {
		if err := c.s.client.Delete(c.s.entryKey(c.gen, k)); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
			return fmt.Errorf("evict %s: %w", k, err)
		}
	}
	return nil
}

// appendKeyCapped adds key to keys unless present, dropping the oldest keys
// beyond limit. It returns the new list, the dropped keys and whether the list changed.
func appendKeyCapped(keys []string, key string, limit int) ([]string, []string, bool) {
	for _, k := range keys {
		if k == key {
			return keys, nil, false
		}
	}
	keys = append(keys, key)
	if over := len(keys) - limit; limit > 0 && over > 0 {
		evicted := append([]string(nil), keys[:over]...)
		return keys[over:], evicted, true
	}
	return keys, nil, true
}

func (c *memcachedCache) Delete(ctx context.Context, key string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	err := c.s.client.Delete(c.s.entryKey(c.gen, key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = c.s.casUpdate(c.s.keysKey(c.gen), c.s.expiration(), func() any { return &[]string{} }, func(doc any) bool {
		keys := doc.(*[]string)
		for i, k := range *keys {
			if k == key {
				*keys = append((*keys)[:i], (*keys)[i+1:]...)
				return true
			}
		}
		return false
	})
	return true, err
}

func (c *memcachedCache) Keys(ctx context.Context) ([]string, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	item, err := c.s.client.Get(c.s.keysKey(c.gen))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var keys []string
	if err := json.Unmarshal(item.Value, &keys); err != nil {
		return nil, fmt.Errorf("decode keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
