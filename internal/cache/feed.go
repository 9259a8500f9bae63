package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// FeedCachePrefix is the key prefix for user feed caches
	FeedCachePrefix = "feed:user:"

	// FeedCacheCap is the maximum number of post ids cached per user
	FeedCacheCap = 500

	// FeedCacheTTL bounds how stale a feed can get if an invalidation is lost
	FeedCacheTTL = 10 * time.Minute
)

// FeedCache stores the newest feed post ids of a user, newest first.
type FeedCache interface {
	// Page returns ids [offset, offset+limit) of the cached feed.
	// found is false when the user has no cached feed.
	Page(ctx context.Context, userID int64, offset, limit int) (postIDs []int64, found bool, err error)

	// Store replaces the cached feed of a user. At most FeedCacheCap ids are kept.
	Store(ctx context.Context, userID int64, postIDs []int64) error

	// Invalidate drops the cached feeds of the given users.
	Invalidate(ctx context.Context, userIDs ...int64) error

	// Window is the number of leading feed entries the cache can answer for.
	Window() int
}

// RedisFeedCache implements FeedCache with one Redis list per user.
type RedisFeedCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewFeedCache creates a new FeedCache backed by Redis.
func NewFeedCache(client *redis.Client, logger *zap.Logger) FeedCache {
	return &RedisFeedCache{client: client, logger: logger}
}

// feedKey returns the Redis key for a user's feed cache.
func feedKey(userID int64) string {
	return fmt.Sprintf("%s%d", FeedCachePrefix, userID)
}

func (c *RedisFeedCache) Window() int {
	return FeedCacheCap
}

// Page reads a slice of the cached list.
// Pipeline: EXISTS + LRANGE, so an empty range past the end is not a miss.
func (c *RedisFeedCache) Page(ctx context.Context, userID int64, offset, limit int) ([]int64, bool, error) {
	key := feedKey(userID)

	pipe := c.client.Pipeline()
	existsCmd := pipe.Exists(ctx, key)
	rangeCmd := pipe.LRange(ctx, key, int64(offset), int64(offset+limit-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, false, fmt.Errorf("read feed: %w", err)
	}

	if existsCmd.Val() == 0 {
		return nil, false, nil
	}

	members := rangeCmd.Val()
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			c.logger.Warn("corrupt feed cache entry", zap.Int64("user_id", userID), zap.String("member", m))
			return nil, false, fmt.Errorf("parse post id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, true, nil
}

// Store replaces the list in one pipeline: DEL + RPUSH + EXPIRE.
// An empty feed is not cached.
func (c *RedisFeedCache) Store(ctx context.Context, userID int64, postIDs []int64) error {
	key := feedKey(userID)
	if len(postIDs) > FeedCacheCap {
		postIDs = postIDs[:FeedCacheCap]
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(postIDs) > 0 {
		members := make([]interface{}, len(postIDs))
		for i, id := range postIDs {
			members[i] = strconv.FormatInt(id, 10)
		}
		pipe.RPush(ctx, key, members...)
		pipe.Expire(ctx, key, FeedCacheTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store feed: %w", err)
	}

	c.logger.Debug("feed cached", zap.Int64("user_id", userID), zap.Int("posts", len(postIDs)))
	return nil
}

func (c *RedisFeedCache) Invalidate(ctx context.Context, userIDs ...int64) error {
	if len(userIDs) == 0 {
		return nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = feedKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate feeds: %w", err)
	}
	return nil
}

// NopFeedCache is used when Redis is not configured. Every lookup misses.
type NopFeedCache struct{}

func (NopFeedCache) Page(context.Context, int64, int, int) ([]int64, bool, error) {
	return nil, false, nil
}

func (NopFeedCache) Store(context.Context, int64, []int64) error { return nil }

func (NopFeedCache) Invalidate(context.Context, ...int64) error { return nil }

// Window is zero so callers skip the cache entirely.
func (NopFeedCache) Window() int { return 0 }
