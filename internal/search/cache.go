package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ImageCache remembers resolved images per result link.
type ImageCache interface {
	Get(ctx context.Context, link string) (string, bool)
	Set(ctx context.Context, link, image string)
}

type RedisImageCache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisImageCache(rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *RedisImageCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisImageCache{rdb: rdb, ttl: ttl, logger: logger}
}

func imageCacheKey(link string) string {
	sum := sha256.Sum256([]byte(link))
	return "img:" + hex.EncodeToString(sum[:])
}

func (c *RedisImageCache) Get(ctx context.Context, link string) (string, bool) {
	v, err := c.rdb.Get(ctx, imageCacheKey(link)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("image cache get failed", zap.Error(err))
		}
		return "", false
	}
	return v, v != ""
}

func (c *RedisImageCache) Set(ctx context.Context, link, image string) {
	if err := c.rdb.Set(ctx, imageCacheKey(link), image, c.ttl).Err(); err != nil {
		c.logger.Debug("image cache set failed", zap.Error(err))
	}
}
