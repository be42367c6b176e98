package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/edmiller1/woofs-welcome-sub000/pkg/logger"
)

// Nil is re-exported so callers can test for cache misses without importing
// go-redis directly.
const Nil = redis.Nil

// Analytics key patterns. Every key is additionally namespaced with the
// environment prefix by the KeyBuilder.
const (
	KeyPlaceViews    = "place:%s:views"             // hash: total, day:<dateKey>, hour:<hourKey>
	KeyViewDedup     = "view:dedup:%s:%s"           // view:dedup:{placeID}:{sessionID}
	KeyViewRateLimit = "view:ratelimit:%s:%s:%s"    // view:ratelimit:{sessionID}:{placeID}:{hourKey}
	KeyViewsBatch    = "views:batch:%s"             // list of serialized view events per hour bucket
	KeyPlaceSessions = "place:%s:sessions:%s"       // set of session ids per place per day
	KeyPlaceSources  = "place:%s:sources:%s"        // hash of counts by traffic source per day
	KeyPlaceCities   = "place:%s:cities:%s"         // sorted set of counts by city per day
)

type Client struct {
	rdb        *redis.Client
	KeyBuilder *KeyBuilder
	log        *logger.Logger
}

// NewClient creates a new Redis client
func NewClient(redisURL, environment string, log *logger.Logger) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Sized for the view-recording hot path
	opts.PoolSize = 50
	opts.MinIdleConns = 5
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{
		rdb:        rdb,
		KeyBuilder: NewKeyBuilder(environment),
		log:        log,
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Health checks the Redis connection
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// logOp records one cache operation at debug level, or info when it failed.
// A cache miss (redis.Nil) is not a failure.
func (c *Client) logOp(op, key string, start time.Time, err error) {
	fields := map[string]interface{}{
		"key_prefix": prefixForLog(key),
		"duration":   time.Since(start),
	}
	if err != nil && err != redis.Nil {
		c.log.WithFields(fields).WithError(err).Info("redis_" + op)
		return
	}
	c.log.WithFields(fields).Debug("redis_" + op)
}

// Get retrieves a value from Redis. Returns redis.Nil when the key is absent.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	val, err := c.rdb.Get(ctx, key).Result()
	c.logOp("get", key, start, err)
	return val, err
}

// Set stores a value in Redis with TTL
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	start := time.Now()
	err := c.rdb.Set(ctx, key, value, ttl).Err()
	c.logOp("set", key, start, err)
	return err
}

// SetNX sets a value only if the key does not exist (dedup markers)
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	start := time.Now()
	ok, err := c.rdb.SetNX(ctx, key, value, ttl).Result()
	c.logOp("setnx", key, start, err)
	return ok, err
}

// Delete removes keys from Redis
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	start := time.Now()
	err := c.rdb.Del(ctx, keys...).Err()
	c.logOp("del", keys[0], start, err)
	return err
}

// Exists checks how many of the given keys exist
func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	start := time.Now()
	n, err := c.rdb.Exists(ctx, keys...).Result()
	c.logOp("exists", keys[0], start, err)
	return n, err
}

// Incr atomically increments a counter
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	start := time.Now()
	v, err := c.rdb.Incr(ctx, key).Result()
	c.logOp("incr", key, start, err)
	return v, err
}

// Expire sets a TTL on a key
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	start := time.Now()
	err := c.rdb.Expire(ctx, key, ttl).Err()
	c.logOp("expire", key, start, err)
	return err
}

// HIncrBy atomically increments a hash field
func (c *Client) HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error) {
	start := time.Now()
	v, err := c.rdb.HIncrBy(ctx, key, field, incr).Result()
	c.logOp("hincrby", key, start, err)
	return v, err
}

// HGet gets a single hash field. Returns redis.Nil when absent.
func (c *Client) HGet(ctx context.Context, key, field string) (string, error) {
	start := time.Now()
	v, err := c.rdb.HGet(ctx, key, field).Result()
	c.logOp("hget", key, start, err)
	return v, err
}

// HGetAll gets all fields from a hash
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	start := time.Now()
	m, err := c.rdb.HGetAll(ctx, key).Result()
	c.logOp("hgetall", key, start, err)
	return m, err
}

// HDel removes fields from a hash
func (c *Client) HDel(ctx context.Context, key string, fields ...string) error {
	start := time.Now()
	err := c.rdb.HDel(ctx, key, fields...).Err()
	c.logOp("hdel", key, start, err)
	return err
}

// SAdd adds members to a set
func (c *Client) SAdd(ctx context.Context, key string, members ...interface{}) error {
	start := time.Now()
	err := c.rdb.SAdd(ctx, key, members...).Err()
	c.logOp("sadd", key, start, err)
	return err
}

// SCard returns the cardinality of a set
func (c *Client) SCard(ctx context.Context, key string) (int64, error) {
	start := time.Now()
	n, err := c.rdb.SCard(ctx, key).Result()
	c.logOp("scard", key, start, err)
	return n, err
}

// ZIncrBy increments the score of a sorted-set member
func (c *Client) ZIncrBy(ctx context.Context, key string, incr float64, member string) error {
	start := time.Now()
	err := c.rdb.ZIncrBy(ctx, key, incr, member).Err()
	c.logOp("zincrby", key, start, err)
	return err
}

// ZRevRangeWithScores returns members ordered by score, highest first
func (c *Client) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]redis.Z, error) {
	began := time.Now()
	zs, err := c.rdb.ZRevRangeWithScores(ctx, key, start, stop).Result()
	c.logOp("zrevrange", key, began, err)
	return zs, err
}

// RPush appends values to a list
func (c *Client) RPush(ctx context.Context, key string, values ...interface{}) error {
	start := time.Now()
	err := c.rdb.RPush(ctx, key, values...).Err()
	c.logOp("rpush", key, start, err)
	return err
}

// LRange reads a list slice without removing anything
func (c *Client) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	began := time.Now()
	items, err := c.rdb.LRange(ctx, key, start, stop).Result()
	c.logOp("lrange", key, began, err)
	return items, err
}

// ScanKeys walks the keyspace and returns every key matching the pattern.
// SCAN is used instead of KEYS so background jobs do not block the server.
func (c *Client) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	start := time.Now()

	var keys []string
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	err := iter.Err()

	c.logOp("scan", pattern, start, err)
	return keys, err
}

// Pipeline creates a new pipeline for batch operations
func (c *Client) Pipeline() redis.Pipeliner {
	return c.rdb.Pipeline()
}

// prefixForLog returns a safe prefix of a key to avoid logging PII
func prefixForLog(key string) string {
	if len(key) <= 24 {
		return key
	}
	return key[:24] + "…"
}
