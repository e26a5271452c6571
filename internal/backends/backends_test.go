package backends

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/weather-pro-dashboard/internal/cache"
	"github.com/kjstillabower/weather-pro-dashboard/internal/config"
	"github.com/kjstillabower/weather-pro-dashboard/internal/kvstore"
)

func TestOpen_InMemory(t *testing.T) {
	for _, name := range []string{"", config.BackendInMemory} {
		set, err := Open(context.Background(), Options{Backend: name}, nil)
		require.NoError(t, err)
		assert.Equal(t, config.BackendInMemory, set.Name)
		assert.IsType(t, &cache.InMemoryStorage{}, set.Storage)
		assert.IsType(t, &kvstore.InMemoryStore{}, set.Store)
		assert.NoError(t, set.Close())
	}
}

func TestOpen_RedisSeparatesNamespaces(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	set, err := Open(ctx, Options{Backend: config.BackendRedis, RedisAddr: mr.Addr(), Prefix: "wpwa:"}, nil)
	require.NoError(t, err)
	defer set.Close()

	require.NoError(t, set.Store.Set(ctx, "theme", "light"))
	c, err := set.Storage.Open(ctx, "v1-static")
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "https://app.local/", &cache.Entry{Status: 200, Body: []byte("x")}))

	got, err := mr.Get("wpwa:kv:theme")
	require.NoError(t, err)
	assert.Equal(t, "light", got)
	for _, k := range mr.Keys() {
		assert.Regexp(t, `^wpwa:(kv|cache):`, k)
	}
}

func TestOpen_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Open(context.Background(), Options{Backend: config.BackendRedis, RedisAddr: addr}, nil)
	assert.ErrorContains(t, err, "redis unreachable")
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "etcd"}, nil)
	assert.ErrorContains(t, err, `unknown storage backend "etcd"`)
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{StorageBackend: config.BackendRedis, StoragePrefix: "p:", RedisAddr: "r:6379", RedisDB: 2}
	opts := FromConfig(cfg)
	assert.Equal(t, Options{Backend: config.BackendRedis, Prefix: "p:", RedisAddr: "r:6379", RedisDB: 2}, opts)
}
