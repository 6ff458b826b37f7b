package store

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("redis not available:", err)
	}
	client.FlushDB(ctx)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisKV(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	kv := NewRedisKV(client, "h2:")

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "history:mlg_4v4:b", []byte("2")))
	require.NoError(t, kv.Set(ctx, "history:mlg_4v4:a", []byte("1")))
	keys, err := kv.Keys(ctx, "history:mlg_4v4:")
	require.NoError(t, err)
	assert.Equal(t, []string{"history:mlg_4v4:a", "history:mlg_4v4:b"}, keys)

	require.NoError(t, kv.Delete(ctx, "history:mlg_4v4:a"))
	_, err = kv.Get(ctx, "history:mlg_4v4:a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisLock(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	l, err := AcquireLock(ctx, client, "h2:lock", 5*time.Second)
	require.NoError(t, err)

	_, err = AcquireLock(ctx, client, "h2:lock", 5*time.Second)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	require.NoError(t, l.Refresh(ctx))
	require.NoError(t, l.Release(ctx))
	assert.ErrorIs(t, l.Release(ctx), ErrLockNotHeld)

	l2, err := AcquireLock(ctx, client, "h2:lock", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, l2.Release(ctx))
}
