package kvstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "wp_theme")
	require.NoError(t, err)
	assert.False(t, ok, "Get() on empty store")

	require.NoError(t, s.Set(ctx, "wp_theme", "light"))
	require.NoError(t, s.Set(ctx, "wp_theme", "dark"))
	v, ok, err := s.Get(ctx, "wp_theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dark", v, "last write wins")

	require.NoError(t, s.Delete(ctx, "wp_theme"))
	_, ok, err = s.Get(ctx, "wp_theme")
	require.NoError(t, err)
	assert.False(t, ok, "Get() after Delete")
	require.NoError(t, s.Delete(ctx, "wp_theme"), "Delete() of missing key")

	assert.NoError(t, s.Ping(ctx))
}

func TestInMemoryStore(t *testing.T) {
	exerciseStore(t, NewInMemoryStore())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := NewRedisStore(rdb, "wp:")
	exerciseStore(t, s)

	require.NoError(t, s.Set(context.Background(), "wp_place", `{"name":"Kraków"}`))
	got, err := mr.Get("wp:wp_place")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Kraków"}`, got)
	assert.Zero(t, mr.TTL("wp:wp_place"), "state keys never expire")
}
