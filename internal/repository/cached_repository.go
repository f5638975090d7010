package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"plantlab/internal/models"
)

// DefaultCacheKeyPrefix namespaces cache keys of a persistent store.
const DefaultCacheKeyPrefix = "plantlab"

// CacheKeyPrefix returns the key prefix for a cache in front of a store.
// A non-persistent store starts empty on every run, so its keys get a
// per-process suffix and entries from earlier runs are never read.
func CacheKeyPrefix(persistent bool) string {
	if persistent {
		return DefaultCacheKeyPrefix
	}
	return DefaultCacheKeyPrefix + ":" + uuid.NewString()
}

// CachedRepository keeps each sensor's latest reading in a KVStore in front
// of another Repository. Cache failures never fail a request; the wrapped
// repository stays authoritative.
type CachedRepository struct {
	Repository
	kv     KVStore
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedRepository wraps inner with a latest-reading cache whose keys
// start with prefix.
func NewCachedRepository(inner Repository, kv KVStore, prefix string, ttl time.Duration, logger *zap.Logger) *CachedRepository {
	return &CachedRepository{Repository: inner, kv: kv, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *CachedRepository) latestKey(sensorID string) string {
	return fmt.Sprintf("%s:sensor:%s:latest", c.prefix, sensorID)
}

// Append stores r and offers it to the cache, which keeps whichever reading
// has the greater timestamp.
func (c *CachedRepository) Append(ctx context.Context, r models.Reading) error {
	if err := c.Repository.Append(ctx, r); err != nil {
		return err
	}
	c.setCached(ctx, r)
	return nil
}

// Latest serves from the cache, falling back to the wrapped repository.
func (c *CachedRepository) Latest(ctx context.Context, sensorID string) (models.Reading, bool, error) {
	if cached, ok := c.getCached(ctx, sensorID); ok {
		return cached, true, nil
	}
	r, ok, err := c.Repository.Latest(ctx, sensorID)
	if err != nil || !ok {
		return r, ok, err
	}
	c.setCached(ctx, r)
	return r, true, nil
}

func (c *CachedRepository) getCached(ctx context.Context, sensorID string) (models.Reading, bool) {
	raw, err := c.kv.Get(ctx, c.latestKey(sensorID))
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("latest cache read failed", zap.String("sensor_id", sensorID), zap.Error(err))
		}
		return models.Reading{}, false
	}
	var r models.Reading
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		c.logger.Warn("latest cache entry corrupt", zap.String("sensor_id", sensorID), zap.Error(err))
		return models.Reading{}, false
	}
	return r, true
}

func (c *CachedRepository) setCached(ctx context.Context, r models.Reading) {
	data, err := json.Marshal(r)
	if err != nil {
		c.logger.Warn("failed to encode latest reading", zap.Error(err))
		return
	}
	stored, err := c.kv.SetIfNewer(ctx, c.latestKey(r.SensorID), string(data), r.Timestamp, c.ttl)
	if err != nil {
		c.logger.Warn("latest cache write failed", zap.String("sensor_id", r.SensorID), zap.Error(err))
		return
	}
	if !stored {
		c.logger.Debug("latest cache holds a newer reading",
			zap.String("sensor_id", r.SensorID),
			zap.Int64("ts", r.Timestamp))
	}
}
