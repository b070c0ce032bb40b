package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishJSONToStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	id, err := PublishJSONToStream(ctx, client, "seido:test", 0, map[string]string{"user_id": "u1"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := client.XRange(ctx, "seido:test", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"user_id":"u1"}`, msgs[0].Values["data"].(string))
	assert.NotEmpty(t, msgs[0].Values["timestamp"])
}

func TestStringify(t *testing.T) {
	cases := map[string]interface{}{
		"abc":      "abc",
		"12":       12,
		"true":     true,
		"1.5":      1.5,
		`["a"]`:    []string{"a"},
		"raw-byte": []byte("raw-byte"),
	}
	for want, in := range cases {
		got, err := stringify(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
