package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edmiller1/woofs-welcome-sub000/internal/domain"
	"github.com/edmiller1/woofs-welcome-sub000/pkg/redis"
)

func TestFlushHour_EmptyBatchIsNoOp(t *testing.T) {
	f := setupAnalytics(t)

	flushed, err := f.svc.FlushHour(context.Background(), "2026-08-31-13")
	require.NoError(t, err)
	assert.Zero(t, flushed)
	assert.Empty(t, f.viewRepo.inserted)
	assert.Empty(t, f.placeRepo.views)
}

func TestFlushHour_DeletesBatchAfterInsert(t *testing.T) {
	f := setupAnalytics(t)
	ctx := context.Background()

	for _, session := range []string{"s1", "s2"} {
		_, err := f.svc.RecordView(ctx, viewInput("p1", session))
		require.NoError(t, err)
	}
	_, err := f.svc.RecordView(ctx, viewInput("p2", "s1"))
	require.NoError(t, err)

	hourKey := redis.HourKey(testNow)
	batchKey := f.client.KeyBuilder.KeyViewsBatch(hourKey)
	require.True(t, f.mr.Exists(batchKey))

	flushed, err := f.svc.FlushHour(ctx, hourKey)
	require.NoError(t, err)
	assert.Equal(t, 3, flushed)

	assert.Len(t, f.viewRepo.inserted, 3)
	assert.Equal(t, int64(2), f.placeRepo.views["p1"])
	assert.Equal(t, int64(1), f.placeRepo.views["p2"])
	assert.False(t, f.mr.Exists(batchKey))
}

func TestFlushHour_InsertFailureRetainsBatch(t *testing.T) {
	f := setupAnalytics(t)
	ctx := context.Background()

	_, err := f.svc.RecordView(ctx, viewInput("p1", "s1"))
	require.NoError(t, err)

	f.viewRepo.insertErr = errors.New("connection refused")

	hourKey := redis.HourKey(testNow)
	_, err = f.svc.FlushHour(ctx, hourKey)
	require.Error(t, err)

	// The batch survives for the next run to retry
	batchKey := f.client.KeyBuilder.KeyViewsBatch(hourKey)
	assert.True(t, f.mr.Exists(batchKey))
	assert.Empty(t, f.placeRepo.views)

	f.viewRepo.insertErr = nil
	flushed, err := f.svc.FlushHour(ctx, hourKey)
	require.NoError(t, err)
	assert.Equal(t, 1, flushed)
	assert.False(t, f.mr.Exists(batchKey))
}

func TestFlushHour_RedeliveryDuplicatesRows(t *testing.T) {
	f := setupAnalytics(t)
	ctx := context.Background()

	_, err := f.svc.RecordView(ctx, viewInput("p1", "s1"))
	require.NoError(t, err)

	hourKey := redis.HourKey(testNow)
	batchKey := f.client.KeyBuilder.KeyViewsBatch(hourKey)
	items, err := f.client.LRange(ctx, batchKey, 0, -1)
	require.NoError(t, err)
	require.Len(t, items, 1)

	flushed, err := f.svc.FlushHour(ctx, hourKey)
	require.NoError(t, err)
	require.Equal(t, 1, flushed)

	// Simulate a crash between the insert and the batch delete: the same
	// payload is still pending on the next run and flushes again. Delivery
	// is at-least-once, so the database ends up with duplicate rows.
	require.NoError(t, f.client.RPush(ctx, batchKey, items[0]))

	flushed, err = f.svc.FlushHour(ctx, hourKey)
	require.NoError(t, err)
	assert.Equal(t, 1, flushed)

	require.Len(t, f.viewRepo.inserted, 2)
	assert.Equal(t, f.viewRepo.inserted[0].ID, f.viewRepo.inserted[1].ID)
	assert.Equal(t, int64(2), f.placeRepo.views["p1"])
}

func TestFlushHour_SkipsUndecodableEntries(t *testing.T) {
	f := setupAnalytics(t)
	ctx := context.Background()

	hourKey := "2026-08-31-14"
	batchKey := f.client.KeyBuilder.KeyViewsBatch(hourKey)

	payload, err := json.Marshal(&domain.ViewEvent{
		ID:        "v1",
		PlaceID:   "p1",
		SessionID: "s1",
		ViewedAt:  time.Date(2026, 8, 31, 14, 5, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.NoError(t, f.client.RPush(ctx, batchKey, "{not json"))
	require.NoError(t, f.client.RPush(ctx, batchKey, string(payload)))

	flushed, err := f.svc.FlushHour(ctx, hourKey)
	require.NoError(t, err)
	assert.Equal(t, 1, flushed)
	require.Len(t, f.viewRepo.inserted, 1)
	assert.Equal(t, "v1", f.viewRepo.inserted[0].ID)
}

func TestFlushHour_AllEntriesUndecodableDeletesBatch(t *testing.T) {
	f := setupAnalytics(t)
	ctx := context.Background()

	hourKey := "2026-08-31-14"
	batchKey := f.client.KeyBuilder.KeyViewsBatch(hourKey)
	require.NoError(t, f.client.RPush(ctx, batchKey, "garbage"))

	flushed, err := f.svc.FlushHour(ctx, hourKey)
	require.NoError(t, err)
	assert.Zero(t, flushed)
	assert.False(t, f.mr.Exists(batchKey))
	assert.Empty(t, f.viewRepo.inserted)
}
