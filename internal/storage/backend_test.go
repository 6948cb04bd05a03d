package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/rescueme/pkg/logger"
	"github.com/danghamo/rescueme/pkg/redisx"
)

func exerciseBackend(t *testing.T, b Backend) {
	ctx := context.Background()

	_, found, err := b.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, b.Set(ctx, KeyContacts, `[{"id":"1"}]`))
	v, found, err := b.Get(ctx, KeyContacts)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[{"id":"1"}]`, v)

	empty, err := b.HGetAll(ctx, "missing-hash")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, b.HSet(ctx, KeyTrackingState, map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, b.HSet(ctx, KeyTrackingState, map[string]string{"b": "3"}))
	h, err := b.HGetAll(ctx, KeyTrackingState)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "3"}, h)
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemoryBackend())
}

func TestMemoryBackend_FailWrites(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	b.FailWrites(2)
	assert.ErrorIs(t, b.Set(ctx, "k", "v"), ErrInjected)
	assert.ErrorIs(t, b.HSet(ctx, "h", map[string]string{"f": "v"}), ErrInjected)
	assert.NoError(t, b.Set(ctx, "k", "v"))
	assert.Equal(t, 3, b.Writes())

	b.FailWrites(-1)
	for i := 0; i < 5; i++ {
		assert.Error(t, b.Set(ctx, "k", "x"))
	}
	v, _, _ := b.Get(ctx, "k")
	assert.Equal(t, "v", v)
}

// Integration test - requires Redis server
func TestRedisBackend(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set, skipping Redis backend test")
	}

	client, err := redisx.NewClient(redisURL, logger.NewNop())
	require.NoError(t, err)
	defer client.Close()

	ns := "rescueme-test-" + t.Name()
	defer func() {
		ctx := context.Background()
		keys, _ := client.Keys(ctx, ns+":*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
	}()

	exerciseBackend(t, NewRedisBackend(client, ns))
}
