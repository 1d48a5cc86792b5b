// Package cache memoizes download-key lookups in Redis so public download
// pages avoid a database round trip.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dharsanguruparan/AppCenter/internal/model"
)

const keyPrefix = "appcenter:download:"

// RedisCache stores applications as JSON under their download key.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache wraps client. Entries expire after ttl.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger.With("component", "cache")}
}

// NewClient builds a client and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func cacheKey(downloadKey string) string {
	return keyPrefix + downloadKey
}

// Get returns the cached application, if any.
func (c *RedisCache) Get(ctx context.Context, downloadKey string) (*model.Application, bool) {
	raw, err := c.client.Get(ctx, cacheKey(downloadKey)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", "key", downloadKey, "error", err)
		}
		return nil, false
	}
	var app model.Application
	if err := json.Unmarshal(raw, &app); err != nil {
		c.logger.Warn("cache entry corrupt", "key", downloadKey, "error", err)
		c.Invalidate(ctx, downloadKey)
		return nil, false
	}
	return &app, true
}

// Set stores app under its download key.
func (c *RedisCache) Set(ctx context.Context, app *model.Application) {
	if app == nil || app.DownloadKey == "" {
		return
	}
	raw, err := json.Marshal(app)
	if err != nil {
		c.logger.Warn("cache encode failed", "key", app.DownloadKey, "error", err)
		return
	}
	if err := c.client.Set(ctx, cacheKey(app.DownloadKey), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "key", app.DownloadKey, "error", err)
	}
}

// Invalidate drops the entry for downloadKey.
func (c *RedisCache) Invalidate(ctx context.Context, downloadKey string) {
	if downloadKey == "" {
		return
	}
	if err := c.client.Del(ctx, cacheKey(downloadKey)).Err(); err != nil {
		c.logger.Warn("cache invalidate failed", "key", downloadKey, "error", err)
	}
}

// Ping reports whether Redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
