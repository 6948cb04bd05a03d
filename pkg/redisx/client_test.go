package redisx

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/rescueme/pkg/logger"
)

// testRedisURL returns REDIS_URL or skips the test
func testRedisURL(t *testing.T) string {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL environment variable not set, skipping Redis integration tests")
	}
	return redisURL
}

func cleanupPrivateDB(t *testing.T, redisURL string) {
	opt, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	opt.DB = 0
	rdb := redis.NewClient(opt)
	defer rdb.Close()
	rdb.Del(context.Background(), "private_db", "private_db:counter")
}

func TestPrivateURLWithHostname_Validation(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		hostname string
	}{
		{name: "empty URL", url: "", hostname: "test-host"},
		{name: "empty hostname", url: "redis://localhost:6379/0", hostname: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := privateURLWithHostname(tt.url, tt.hostname)
			assert.Error(t, err)
		})
	}
}

func TestPrivateURLWithHostname_ConnectionError(t *testing.T) {
	_, err := privateURLWithHostname("redis://invalid-host.invalid:9999/0", "test-host")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to"))
}

func TestPrivateURLWithHostname_Consistency(t *testing.T) {
	redisURL := testRedisURL(t)
	cleanupPrivateDB(t, redisURL)
	defer cleanupPrivateDB(t, redisURL)

	first, err := privateURLWithHostname(redisURL, "rescue-host-1")
	require.NoError(t, err)

	again, err := privateURLWithHostname(redisURL, "rescue-host-1")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	other, err := privateURLWithHostname(redisURL, "rescue-host-2")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestClient_StringAndHashHelpers(t *testing.T) {
	redisURL := testRedisURL(t)

	client, err := NewClient(redisURL, logger.NewNop())
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	key := "rescueme:test:redisx:blob"
	hashKey := "rescueme:test:redisx:hash"
	defer client.Del(ctx, key, hashKey)

	_, found, err := client.GetString(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, client.SetString(ctx, key, `[{"id":"1"}]`))
	value, found, err := client.GetString(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[{"id":"1"}]`, value)

	require.NoError(t, client.HSetFields(ctx, hashKey, map[string]string{"a": "1", "b": "2"}))
	fields, err := client.HGetAllFields(ctx, hashKey)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, fields)

	require.NoError(t, client.HealthCheck(ctx))
}
