package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisKV_GetSetDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	kv := NewRedisKV(client)
	ctx := context.Background()

	_, err := kv.Get(ctx, "team:t1:members")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "team:t1:members", `[{"user_id":"u1"}]`, time.Minute))
	v, err := kv.Get(ctx, "team:t1:members")
	require.NoError(t, err)
	assert.Equal(t, `[{"user_id":"u1"}]`, v)

	mr.FastForward(2 * time.Minute)
	_, err = kv.Get(ctx, "team:t1:members")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "a", "1", 0))
	require.NoError(t, kv.Delete(ctx, "a"))
	_, err = kv.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)
	assert.NoError(t, kv.Delete(ctx))
}

func TestMemoryKV_TTL(t *testing.T) {
	kv := NewMemoryKV()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	kv.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))
	v, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	now = now.Add(61 * time.Second)
	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "forever", "v", 0))
	now = now.Add(24 * time.Hour)
	_, err = kv.Get(ctx, "forever")
	assert.NoError(t, err)
}
