package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/component-directory/pkg/logger"
)

func setupCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewFromClient(client, logger.Nop())
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_GetSetDel(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	val, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	val, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	require.NoError(t, c.Del(ctx, "k"))
	val, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, val)
}

func TestCache_Lock(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	ok, err := c.AcquireLock(ctx, "refresh:lock", "run-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AcquireLock(ctx, "refresh:lock", "run-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be rejected")

	released, err := c.ReleaseLock(ctx, "refresh:lock", "run-2")
	require.NoError(t, err)
	assert.False(t, released, "a foreign token cannot release the lock")

	released, err = c.ReleaseLock(ctx, "refresh:lock", "run-1")
	require.NoError(t, err)
	assert.True(t, released)

	ok, err = c.AcquireLock(ctx, "refresh:lock", "run-3", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = c.AcquireLock(ctx, "refresh:lock", "run-4", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired lock is free again")
}

func TestCache_Health(t *testing.T) {
	c, mr := setupCache(t)
	require.NoError(t, c.Health(context.Background()))

	mr.Close()
	assert.Error(t, c.Health(context.Background()))
}
