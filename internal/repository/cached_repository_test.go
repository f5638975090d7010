package repository

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"plantlab/internal/models"
)

func TestCachedRepository_AppendWritesLatestJSON(t *testing.T) {
	kv := newFakeKVStore()
	repo := NewCachedRepository(NewMemoryRepository(10), kv, DefaultCacheKeyPrefix, time.Hour, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, models.Reading{SensorID: "S1", Timestamp: 100, RawADC: 2100, Percent: 42.5}))

	raw, err := kv.Get(ctx, "plantlab:sensor:S1:latest")
	require.NoError(t, err)
	var decoded models.Reading
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Equal(t, 42.5, decoded.Percent)
	assert.Equal(t, int64(100), decoded.Timestamp)
}

func TestCachedRepository_OlderArrivalKeepsNewerCache(t *testing.T) {
	kv := newFakeKVStore()
	repo := NewCachedRepository(NewMemoryRepository(10), kv, DefaultCacheKeyPrefix, time.Hour, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, models.Reading{SensorID: "S1", Timestamp: 200, Percent: 20}))
	require.NoError(t, repo.Append(ctx, models.Reading{SensorID: "S1", Timestamp: 100, Percent: 10}))

	latest, ok, err := repo.Latest(ctx, "S1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 20.0, latest.Percent)
}

func TestCachedRepository_MissFallsBackAndFills(t *testing.T) {
	kv := newFakeKVStore()
	inner := NewMemoryRepository(10)
	ctx := context.Background()
	require.NoError(t, inner.Append(ctx, models.Reading{SensorID: "S2", Timestamp: 7, Percent: 70}))

	repo := NewCachedRepository(inner, kv, DefaultCacheKeyPrefix, time.Hour, zap.NewNop())
	latest, ok, err := repo.Latest(ctx, "S2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 70.0, latest.Percent)

	_, err = kv.Get(ctx, "plantlab:sensor:S2:latest")
	assert.NoError(t, err)
}

func TestCachedRepository_KVErrorFallsBack(t *testing.T) {
	kv := newFakeKVStore()
	inner := NewMemoryRepository(10)
	ctx := context.Background()
	require.NoError(t, inner.Append(ctx, models.Reading{SensorID: "S1", Timestamp: 1, Percent: 11}))
	kv.getErr = errKVDown

	repo := NewCachedRepository(inner, kv, DefaultCacheKeyPrefix, time.Hour, zap.NewNop())
	latest, ok, err := repo.Latest(ctx, "S1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 11.0, latest.Percent)
}

func TestCachedRepository_NoReadings(t *testing.T) {
	repo := NewCachedRepository(NewMemoryRepository(10), newFakeKVStore(), DefaultCacheKeyPrefix, time.Hour, zap.NewNop())

	_, ok, err := repo.Latest(context.Background(), "S3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisKVStore_SetIfNewerWithTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	kv := NewRedisKVStore(client)
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	stored, err := kv.SetIfNewer(ctx, "k", "v200", 200, time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = kv.SetIfNewer(ctx, "k", "v150", 150, time.Minute)
	require.NoError(t, err)
	assert.False(t, stored)

	stored, err = kv.SetIfNewer(ctx, "k", "v200b", 200, time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)

	v, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v200b", v)

	mr.FastForward(2 * time.Minute)
	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCachedRepository_ConcurrentAppendKeepsNewest(t *testing.T) {
	kv := newFakeKVStore()
	inner := NewMemoryRepository(10)
	repo := NewCachedRepository(inner, kv, DefaultCacheKeyPrefix, time.Hour, zap.NewNop())
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	kv.beforeSet = func(version int64) {
		if version == 150 {
			close(entered)
			<-release
		}
	}

	done := make(chan error)
	go func() {
		done <- repo.Append(ctx, models.Reading{SensorID: "S1", Timestamp: 150, Percent: 15})
	}()
	<-entered

	require.NoError(t, repo.Append(ctx, models.Reading{SensorID: "S1", Timestamp: 200, Percent: 20}))
	close(release)
	require.NoError(t, <-done)

	want, _, err := inner.Latest(ctx, "S1")
	require.NoError(t, err)
	got, ok, err := repo.Latest(ctx, "S1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.Timestamp, got.Timestamp)
	assert.Equal(t, int64(200), got.Timestamp)
}

func TestCacheKeyPrefix(t *testing.T) {
	assert.Equal(t, DefaultCacheKeyPrefix, CacheKeyPrefix(true))

	a, b := CacheKeyPrefix(false), CacheKeyPrefix(false)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, DefaultCacheKeyPrefix+":"))
}

func TestCachedRepository_EphemeralPrefixIgnoresEarlierRun(t *testing.T) {
	kv := newFakeKVStore()
	ctx := context.Background()

	previous := NewCachedRepository(NewMemoryRepository(10), kv, CacheKeyPrefix(false), time.Hour, zap.NewNop())
	require.NoError(t, previous.Append(ctx, models.Reading{SensorID: "S1", Timestamp: 100, Percent: 40}))

	restarted := NewCachedRepository(NewMemoryRepository(10), kv, CacheKeyPrefix(false), time.Hour, zap.NewNop())
	_, ok, err := restarted.Latest(ctx, "S1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCachedRepository_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	client, err := NewRedisClient(ctx, mr.Addr(), "", 0)
	require.NoError(t, err)
	defer client.Close()

	repo := NewCachedRepository(NewMemoryRepository(10), NewRedisKVStore(client), DefaultCacheKeyPrefix, time.Hour, zap.NewNop())
	require.NoError(t, repo.Append(ctx, models.Reading{SensorID: "S1", Timestamp: 1700000123, Percent: 42.5}))

	assert.True(t, mr.Exists("plantlab:sensor:S1:latest"))
	latest, ok, err := repo.Latest(ctx, "S1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1700000123), latest.Timestamp)
}
