package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned by KVStore.Get for an absent key.
var ErrCacheMiss = errors.New("cache miss")

// KVStore holds versioned values. SetIfNewer must compare and write as one
// step so concurrent writers cannot replace a newer version with an older one.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetIfNewer(ctx context.Context, key, value string, version int64, ttl time.Duration) (bool, error)
}

// setIfNewer stores the value and version in a hash unless the stored version
// is greater. Equal versions overwrite, matching arrival order.
var setIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'value', ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

// RedisKVStore keeps each entry in a Redis hash with "version" and "value"
// fields.
type RedisKVStore struct {
	client *redis.Client
}

// NewRedisKVStore wraps a connected client.
func NewRedisKVStore(client *redis.Client) *RedisKVStore {
	return &RedisKVStore{client: client}
}

// NewRedisClient dials Redis and pings it once.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Get returns the stored value of key.
func (r *RedisKVStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.HGet(ctx, key, "value").Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis hget %s: %w", key, err)
	}
	return val, nil
}

// SetIfNewer writes value under version unless key already holds a greater
// version. It reports whether the write happened.
func (r *RedisKVStore) SetIfNewer(ctx context.Context, key, value string, version int64, ttl time.Duration) (bool, error) {
	n, err := setIfNewer.Run(ctx, r.client, []string{key},
		strconv.FormatInt(version, 10), value, strconv.FormatInt(ttl.Milliseconds(), 10)).Int()
	if err != nil {
		return false, fmt.Errorf("redis set-if-newer %s: %w", key, err)
	}
	return n == 1, nil
}
