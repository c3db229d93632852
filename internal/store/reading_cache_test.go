package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestCache(t *testing.T) (*miniredis.Miniredis, *ReadingCache) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return mr, NewReadingCache(redisClient, zap.NewNop())
}

func TestReadingCache_SetAndGet(t *testing.T) {
	_, cache := setupTestCache(t)
	ctx := context.Background()

	reading := &LatestReading{
		UserID:      42,
		Timestamp:   time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
		GSR:         2.35,
		HeartRate:   87.79,
		Temperature: 38.47,
		StressLevel: 3,
	}
	require.NoError(t, cache.SetLatest(ctx, reading))

	got, err := cache.GetLatest(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, reading.UserID, got.UserID)
	assert.Equal(t, reading.StressLevel, got.StressLevel)
	assert.InDelta(t, reading.GSR, got.GSR, 1e-9)
	assert.True(t, reading.Timestamp.Equal(got.Timestamp))
}

func TestReadingCache_Miss(t *testing.T) {
	_, cache := setupTestCache(t)

	_, err := cache.GetLatest(context.Background(), 999)
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestReadingCache_TTLExpiry(t *testing.T) {
	mr, cache := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetLatest(ctx, &LatestReading{UserID: 1, StressLevel: 0}))

	mr.FastForward(11 * time.Minute)

	_, err := cache.GetLatest(ctx, 1)
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestReadingCache_Invalidate(t *testing.T) {
	_, cache := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetLatest(ctx, &LatestReading{UserID: 1}))
	require.NoError(t, cache.Invalidate(ctx, 1))

	_, err := cache.GetLatest(ctx, 1)
	require.ErrorIs(t, err, ErrCacheMiss)
}
