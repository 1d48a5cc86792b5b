// Package main runs the AppCenter HTTP API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dharsanguruparan/AppCenter/internal/api"
	"github.com/dharsanguruparan/AppCenter/internal/bootstrap"
	"github.com/dharsanguruparan/AppCenter/internal/config"
	"github.com/dharsanguruparan/AppCenter/internal/logging"
	"github.com/dharsanguruparan/AppCenter/internal/sweeper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	// Cancel on SIGINT/SIGTERM so the listener, the job pool and the sweeper
	// all drain together.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("init services", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	if err := rt.Users.EnsureDefaults(ctx, cfg.SuperAdmin, cfg.Admin); err != nil {
		logger.Error("seed default accounts", "error", err)
		os.Exit(1)
	}

	if rt.Local != nil {
		rt.Local.Start(ctx)
		defer rt.Local.Wait()
	}

	sweep, err := sweeper.New(rt.Staging, cfg.TempTTL, cfg.SweepSchedule, logger)
	if err != nil {
		logger.Error("init sweeper", "error", err)
		os.Exit(1)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		sweep.Start(ctx)
	}()

	checks := make(map[string]api.Check)
	for name, check := range rt.Checks() {
		checks[name] = check
	}
	deps := api.Deps{
		Config:       cfg,
		Users:        rt.Users,
		Catalog:      rt.Catalog,
		Uploads:      rt.Uploads,
		Distribution: rt.Distribution,
		Staging:      rt.Staging,
		Checks:       checks,
		Logger:       logger,
	}
	if rt.Mirror != nil {
		deps.Mirror = rt.Mirror
	}

	logger.Info("AppCenter listening", "address", cfg.Address, "store", cfg.Store, "redis", cfg.RedisEnabled(), "mirror", cfg.MirrorEnabled())
	if err := api.New(deps).Run(ctx); err != nil {
		logger.Error("server stopped", "error", err)
		stop()
		<-done
		os.Exit(1)
	}
	<-done
}
