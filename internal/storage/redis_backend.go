package storage

import (
	"context"
	"fmt"

	"github.com/danghamo/rescueme/pkg/redisx"
)

// RedisBackend stores values in Redis under "<namespace>:<key>"
type RedisBackend struct {
	client    *redisx.Client
	namespace string
}

// NewRedisBackend creates a new Redis-backed storage
func NewRedisBackend(client *redisx.Client, namespace string) *RedisBackend {
	if namespace == "" {
		namespace = "rescueme"
	}
	return &RedisBackend{
		client:    client,
		namespace: namespace,
	}
}

func (b *RedisBackend) key(k string) string {
	return fmt.Sprintf("%s:%s", b.namespace, k)
}

func (b *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	return b.client.GetString(ctx, b.key(key))
}

func (b *RedisBackend) Set(ctx context.Context, key, value string) error {
	return b.client.SetString(ctx, b.key(key), value)
}

func (b *RedisBackend) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return b.client.HGetAllFields(ctx, b.key(key))
}

func (b *RedisBackend) HSet(ctx context.Context, key string, fields map[string]string) error {
	return b.client.HSetFields(ctx, b.key(key), fields)
}
