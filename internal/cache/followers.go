package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// FollowerCache keeps one redis LIST per user holding that user's follower IDs
// newest-first. Pages are served with LRANGE and the total with LLEN, so a
// single DEL on follow/unfollow invalidates every page at once.
//
// The cache is a read-path optimization only; the database stays the source of
// truth and every method degrades to a miss on redis errors.
type FollowerCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

// New builds a FollowerCache around an existing redis client.
func New(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *FollowerCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FollowerCache{rdb: rdb, ttl: ttl, log: log}
}

func key(userID uint) string {
	return fmt.Sprintf("followers:index:%d", userID)
}

// Page returns one page of follower IDs plus the total follower count.
// ok is false on a cold key, a redis error, or a nil cache.
func (c *FollowerCache) Page(ctx context.Context, userID uint, page, limit int) (ids []uint, total int64, ok bool) {
	if c == nil || c.rdb == nil {
		return nil, 0, false
	}

	k := key(userID)
	exists, err := c.rdb.Exists(ctx, k).Result()
	if err != nil || exists == 0 {
		return nil, 0, false
	}

	total, err = c.rdb.LLen(ctx, k).Result()
	if err != nil {
		return nil, 0, false
	}

	start := int64(page-1) * int64(limit)
	end := start + int64(limit) - 1
	raw, err := c.rdb.LRange(ctx, k, start, end).Result()
	if err != nil {
		return nil, 0, false
	}

	ids = make([]uint, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			// Corrupt entry; drop the whole key and fall back to the DB.
			c.Invalidate(ctx, userID)
			return nil, 0, false
		}
		ids = append(ids, uint(id))
	}
	return ids, total, true
}

// Fill replaces the cached index with the full follower-ID list, newest first.
func (c *FollowerCache) Fill(ctx context.Context, userID uint, ids []uint) {
	if c == nil || c.rdb == nil {
		return
	}

	k := key(userID)
	vals := make([]interface{}, len(ids))
	for i, id := range ids {
		vals[i] = strconv.FormatUint(uint64(id), 10)
	}

	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, k)
	if len(vals) > 0 {
		pipe.RPush(ctx, k, vals...)
	}
	pipe.Expire(ctx, k, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("follower cache fill failed", zap.Uint("user_id", userID), zap.Error(err))
	}
}

// Invalidate drops the cached index for a user. Called after any follow or
// unfollow touching that user's follower list.
func (c *FollowerCache) Invalidate(ctx context.Context, userID uint) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, key(userID)).Err(); err != nil {
		c.log.Warn("follower cache invalidation failed", zap.Uint("user_id", userID), zap.Error(err))
	}
}
