package repository

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/screening-server/internal/domain"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := NewRedisClient(ctx, domain.CacheConfig{RedisURL: url, PoolSize: 4, PoolTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisSessionRepository(t *testing.T) {
	client := newRedisClient(t)
	repo := NewRedisSessionRepository(client, time.Minute, quietLogger())
	ctx := context.Background()

	s := testSession("redis-1")
	s.Annotations = domain.Annotations{1: {Functionality: "Y"}}
	require.NoError(t, repo.Save(ctx, s))

	got, err := repo.Get(ctx, "redis-1")
	require.NoError(t, err)
	assert.Equal(t, s.Answers, got.Answers)
	assert.Equal(t, s.Annotations, got.Annotations)
	assert.True(t, s.ConsentAt.Equal(*got.ConsentAt))
	assert.Equal(t, s.Step, got.Step)

	ttl, err := client.TTL(ctx, sessionKey("redis-1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, repo.Delete(ctx, "redis-1"))
	_, err = repo.Get(ctx, "redis-1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRedisSessionRepository_CorruptEntry(t *testing.T) {
	client := newRedisClient(t)
	repo := NewRedisSessionRepository(client, time.Minute, quietLogger())
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, sessionKey("bad"), "{not json", 0).Err())
	_, err := repo.Get(ctx, "bad")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	n, err := client.Exists(ctx, sessionKey("bad")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
