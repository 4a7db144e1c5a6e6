//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"docflow/internal/platform/config"
	platformredis "docflow/internal/platform/redis"
)

// RedisContainer is a Redis 7 instance reached through the same client
// constructor the server uses.
type RedisContainer struct {
	Container testcontainers.Container
	URL       string
	Client    *platformredis.Client
}

// NewRedisContainer starts Redis and connects with default pool settings.
// The manager owns the container; Ryuk removes it when the binary exits.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	url, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("redis connection string: %v", err)
	}

	client, err := platformredis.New(ctx, config.RedisConfig{URL: url, PoolSize: 64, KeyPrefix: "test"})
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("connect redis: %v", err)
	}
	return &RedisContainer{Container: container, URL: url, Client: client}
}

// Reset drops the keys a suite wrote under prefix.
func (r *RedisContainer) Reset(ctx context.Context, prefix string) error {
	_, err := r.Client.DeletePrefix(ctx, prefix)
	return err
}
