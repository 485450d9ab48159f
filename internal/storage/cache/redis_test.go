package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeovahfialho/t212-digrin/internal/config"
	"github.com/jeovahfialho/t212-digrin/internal/domain"
)

func setupTestCache(t *testing.T) *RedisCache {
	t.Helper()

	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL não definido")
	}

	c, err := NewRedisCache(&config.Config{RedisURL: url, CacheTTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPendingKey(t *testing.T) {
	assert.Equal(t, "t212:pending:2024-01", pendingKey("2024-01"))
}

func TestNewRedisCache_InvalidURL(t *testing.T) {
	_, err := NewRedisCache(&config.Config{RedisURL: "://not-a-url"})
	assert.Error(t, err)
}

func TestPendingReport_RoundTrip(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()

	month := "1999-01"
	require.NoError(t, c.ClearPendingReport(ctx, month))
	t.Cleanup(func() { c.ClearPendingReport(context.Background(), month) })

	id, ok, err := c.PendingReport(ctx, month)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, domain.ReportID(0), id)

	require.NoError(t, c.SavePendingReport(ctx, month, domain.ReportID(7)))

	raw, err := c.client.Get(ctx, pendingKey(month)).Result()
	require.NoError(t, err)
	assert.Equal(t, "7", raw)

	ttl, err := c.client.TTL(ctx, pendingKey(month)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	id, ok, err = c.PendingReport(ctx, month)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.ReportID(7), id)

	require.NoError(t, c.ClearPendingReport(ctx, month))

	id, ok, err = c.PendingReport(ctx, month)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, domain.ReportID(0), id)
}

func TestPendingReport_CorruptValue(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()

	month := "1999-02"
	t.Cleanup(func() { c.ClearPendingReport(context.Background(), month) })
	require.NoError(t, c.client.Set(ctx, pendingKey(month), "not-json", time.Minute).Err())

	_, ok, err := c.PendingReport(ctx, month)
	assert.Error(t, err)
	assert.False(t, ok)
}
