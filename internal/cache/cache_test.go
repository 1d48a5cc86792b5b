package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dharsanguruparan/AppCenter/internal/logging"
	"github.com/dharsanguruparan/AppCenter/internal/model"
)

func unreachable(t *testing.T) *RedisCache {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client, time.Minute, logging.Discard())
}

func TestCacheKey(t *testing.T) {
	if got := cacheKey("abc123"); got != "appcenter:download:abc123" {
		t.Fatalf("cacheKey = %q", got)
	}
}

func TestUnavailableRedisIsAMiss(t *testing.T) {
	c := unreachable(t)
	ctx := context.Background()

	c.Set(ctx, &model.Application{ID: "a1", DownloadKey: "abc123"})
	if app, ok := c.Get(ctx, "abc123"); ok || app != nil {
		t.Fatalf("expected a miss, got %+v", app)
	}
	c.Invalidate(ctx, "abc123")
	if err := c.Ping(ctx); err == nil {
		t.Fatalf("expected ping to fail")
	}
}

func TestSetIgnoresKeylessApps(t *testing.T) {
	c := unreachable(t)
	c.Set(context.Background(), nil)
	c.Set(context.Background(), &model.Application{ID: "a1"})
	c.Invalidate(context.Background(), "")
}
