package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edmiller1/woofs-welcome-sub000/pkg/logger"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	log, err := logger.New("error", "test")
	require.NoError(t, err)

	client, err := NewClient("redis://"+mr.Addr(), "test", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestNewClient_InvalidURL(t *testing.T) {
	log, err := logger.New("error", "test")
	require.NoError(t, err)

	client, err := NewClient("invalid://url", "test", log)
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestClient_SetNX(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	ok, err := client.SetNX(ctx, "marker", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second set of the same key must not win
	ok, err = client.SetNX(ctx, "marker", "2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	val, err := client.Get(ctx, "marker")
	require.NoError(t, err)
	assert.Equal(t, "1", val)
}

func TestClient_HashOps(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := client.HIncrBy(ctx, "counters", "total", 1)
		require.NoError(t, err)
	}

	fields, err := client.HGetAll(ctx, "counters")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"total": "3"}, fields)

	require.NoError(t, client.HDel(ctx, "counters", "total"))
	val, err := client.HGet(ctx, "counters", "total")
	assert.Equal(t, Nil, err)
	assert.Empty(t, val)
}

func TestClient_ListOps(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.RPush(ctx, "batch", "a", "b"))
	require.NoError(t, client.RPush(ctx, "batch", "c"))

	items, err := client.LRange(ctx, "batch", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, items)

	// Non-destructive read: the list is still there
	items, err = client.LRange(ctx, "batch", 0, -1)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestClient_SortedSetOps(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.ZIncrBy(ctx, "cities", 2, "Auckland"))
	require.NoError(t, client.ZIncrBy(ctx, "cities", 1, "Wellington"))
	require.NoError(t, client.ZIncrBy(ctx, "cities", 1, "Auckland"))

	members, err := client.ZRevRangeWithScores(ctx, "cities", 0, 9)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Auckland", members[0].Member)
	assert.Equal(t, float64(3), members[0].Score)
}

func TestClient_ScanKeys(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "place:a:views", "1", 0))
	require.NoError(t, client.Set(ctx, "place:b:views", "1", 0))
	require.NoError(t, client.Set(ctx, "place:a:sessions:2026-08-31", "1", 0))

	keys, err := client.ScanKeys(ctx, "place:*:views")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"place:a:views", "place:b:views"}, keys)

	keys, err = client.ScanKeys(ctx, "place:*:nothing")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestClient_ExpiredKeysVanish(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "ephemeral", "1", time.Minute))
	mr.FastForward(2 * time.Minute)

	n, err := client.Exists(ctx, "ephemeral")
	require.NoError(t, err)
	assert.Zero(t, n)
}
