// Package backends opens the storage pair the process runs on: the offline
// response cache and the dashboard key-value store, both on one backend.
package backends

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-pro-dashboard/internal/cache"
	"github.com/kjstillabower/weather-pro-dashboard/internal/config"
	"github.com/kjstillabower/weather-pro-dashboard/internal/kvstore"
)

// Options selects and addresses a backend. Mirrors the storage fields of config.Config.
type Options struct {
	Backend string
	Prefix  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	MemcachedTTL          time.Duration
}

// FromConfig copies the storage settings out of cfg.
func FromConfig(cfg *config.Config) Options {
	return Options{
		Backend:               cfg.StorageBackend,
		Prefix:                cfg.StoragePrefix,
		RedisAddr:             cfg.RedisAddr,
		RedisPassword:         cfg.RedisPassword,
		RedisDB:               cfg.RedisDB,
		MemcachedAddrs:        cfg.MemcachedAddrs,
		MemcachedTimeout:      cfg.MemcachedTimeout,
		MemcachedMaxIdleConns: cfg.MemcachedMaxIdleConns,
		MemcachedTTL:          cfg.MemcachedTTL,
	}
}

// Set is an opened backend.
type Set struct {
	Name    string
	Storage cache.Storage
	Store   kvstore.Store

	closers []func() error
}

// Close releases backend connections. Safe to call on an in-memory set.
func (s *Set) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open connects to the selected backend and pings it once. An unreachable
// redis or memcached is an error: the process refuses to start on storage it
// cannot reach.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (*Set, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cachePrefix, kvPrefix := opts.Prefix+"cache:", opts.Prefix+"kv:"

	var set *Set
	switch opts.Backend {
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
		set = &Set{
			Name:    config.BackendRedis,
			Storage: cache.NewRedisStorage(rdb, cachePrefix),
			Store:   kvstore.NewRedisStore(rdb, kvPrefix),
			closers: []func() error{rdb.Close},
		}
		logger.Info("storage backend: redis", zap.String("addr", opts.RedisAddr), zap.Int("db", opts.RedisDB))
	case config.BackendMemcached:
		mc := cache.NewMemcachedClient(opts.MemcachedAddrs, opts.MemcachedTimeout, opts.MemcachedMaxIdleConns)
		storage := cache.NewMemcachedStorage(mc, cachePrefix, opts.MemcachedTTL)
		set = &Set{
			Name:    config.BackendMemcached,
			Storage: storage,
			Store:   kvstore.NewMemcachedStore(mc, kvPrefix),
			closers: []func() error{storage.Close},
		}
		logger.Info("storage backend: memcached", zap.String("addrs", opts.MemcachedAddrs))
	case config.BackendInMemory, "":
		set = &Set{
			Name:    config.BackendInMemory,
			Storage: cache.NewInMemoryStorage(),
			Store:   kvstore.NewInMemoryStore(),
		}
		logger.Info("storage backend: in_memory")
		return set, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}

	if err := set.Storage.Ping(ctx); err != nil {
		_ = set.Close()
		return nil, fmt.Errorf("%s unreachable: %w", set.Name, err)
	}
	return set, nil
}
