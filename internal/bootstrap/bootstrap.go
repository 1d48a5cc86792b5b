// Package bootstrap assembles the AppCenter services from configuration. The
// server, the worker and the admin CLI share it so every binary sees the same
// store, mirror and job wiring.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/dharsanguruparan/AppCenter/internal/auth"
	"github.com/dharsanguruparan/AppCenter/internal/cache"
	"github.com/dharsanguruparan/AppCenter/internal/catalog"
	"github.com/dharsanguruparan/AppCenter/internal/config"
	"github.com/dharsanguruparan/AppCenter/internal/database"
	"github.com/dharsanguruparan/AppCenter/internal/distribution"
	"github.com/dharsanguruparan/AppCenter/internal/extractor"
	"github.com/dharsanguruparan/AppCenter/internal/processing"
	"github.com/dharsanguruparan/AppCenter/internal/queue"
	"github.com/dharsanguruparan/AppCenter/internal/repository"
	"github.com/dharsanguruparan/AppCenter/internal/s3storage"
	"github.com/dharsanguruparan/AppCenter/internal/staging"
	"github.com/dharsanguruparan/AppCenter/internal/storage"
	"github.com/dharsanguruparan/AppCenter/internal/upload"
	"github.com/dharsanguruparan/AppCenter/internal/users"
	"github.com/dharsanguruparan/AppCenter/internal/worker"
)

// Runtime holds the constructed services. Optional parts are nil when their
// backing system is not configured.
type Runtime struct {
	Config *config.Config
	Logger *slog.Logger

	Store        repository.Store
	Users        *users.Service
	Catalog      *catalog.Service
	Staging      *staging.Store
	Uploads      *upload.Service
	Distribution *distribution.Service
	Processor    *worker.Processor

	Mirror *s3storage.Storage
	Redis  *redis.Client
	Cache  *cache.RedisCache
	// Local runs background jobs in-process when Redis is not configured.
	// Callers must Start it.
	Local *processing.Processor
	Jobs  queue.Enqueuer

	closers []func()
}

// Open connects the configured backends and builds every service.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: logger}
	if err := rt.open(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) open(ctx context.Context) error {
	cfg := rt.Config
	if err := os.MkdirAll(cfg.TempDir(), 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	switch cfg.Store {
	case config.StorePostgres:
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, pool.Close)
		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		rt.Store = repository.NewPostgresStore(pool)
	default:
		rt.Logger.Warn("using in-memory store; data is lost on restart")
		rt.Store = storage.NewMemoryStore()
	}

	if cfg.MirrorEnabled() {
		mirror, err := s3storage.New(cfg)
		if err != nil {
			return err
		}
		if err := mirror.EnsureBucket(ctx); err != nil {
			return err
		}
		rt.Mirror = mirror
	}

	if cfg.RedisEnabled() {
		client, err := cache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		rt.Redis = client
		rt.Cache = cache.NewRedisCache(client, cfg.CacheTTL, rt.Logger)
	}

	rt.Staging = staging.New(rt.Store, cfg.TempDir(), rt.Logger)
	rt.Catalog = catalog.New(rt.Store, rt.Store, cfg.UploadDir, rt.Logger, catalog.Hooks{
		KeyChanged: func(ctx context.Context, downloadKey string) {
			if rt.Cache != nil {
				rt.Cache.Invalidate(ctx, downloadKey)
			}
		},
		FilesRemoved: func(ctx context.Context, relPaths []string) {
			if rt.Jobs == nil || rt.Mirror == nil {
				return
			}
			if err := rt.Jobs.EnqueueUnmirror(ctx, relPaths); err != nil {
				rt.Logger.Warn("enqueue unmirror failed", "objects", len(relPaths), "error", err)
			}
		},
	})

	var mirror worker.Mirror
	if rt.Mirror != nil {
		mirror = rt.Mirror
	}
	rt.Processor = worker.NewProcessor(rt.Staging, rt.Catalog, mirror, cfg.UploadDir, rt.Logger)

	if rt.Redis != nil {
		client := asynq.NewClient(rt.RedisOpt())
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		rt.Jobs = queue.NewClient(client)
	} else {
		rt.Local = processing.New(rt.Processor, cfg.Workers, rt.Logger)
		rt.Jobs = rt.Local
	}

	rt.Uploads = upload.New(rt.Staging, rt.Catalog, extractor.New(), rt.Logger, upload.Options{
		MaxFileSize: cfg.MaxFileSize,
		TempTTL:     cfg.TempTTL,
		Jobs:        rt.Jobs,
	})

	var downloads distribution.Cache
	if rt.Cache != nil {
		downloads = rt.Cache
	}
	rt.Distribution = distribution.New(rt.Catalog, downloads, rt.Logger)
	rt.Users = users.New(rt.Store, rt.Store, auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL), rt.Logger)
	return nil
}

// RedisOpt returns the asynq connection options for the configured Redis.
func (rt *Runtime) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     rt.Config.RedisAddr,
		Password: rt.Config.RedisPassword,
		DB:       rt.Config.RedisDB,
	}
}

// Checks returns the dependency probes reported by the detailed health route.
func (rt *Runtime) Checks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"database": rt.Store.Ping,
	}
	if rt.Cache != nil {
		checks["redis"] = rt.Cache.Ping
	}
	if rt.Mirror != nil {
		checks["mirror"] = rt.Mirror.Ping
	}
	return checks
}

// Close releases connections in reverse order of acquisition.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
