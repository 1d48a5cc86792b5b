package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/AppCenter/internal/bootstrap"
	"github.com/dharsanguruparan/AppCenter/internal/config"
	"github.com/dharsanguruparan/AppCenter/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if !cfg.RedisEnabled() {
		log.Fatalf("worker requires APPCENTER_REDIS_ADDR")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	rt, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("init services: %v", err)
	}
	defer rt.Close()

	server := asynq.NewServer(rt.RedisOpt(), asynq.Config{
		Concurrency: cfg.Workers,
		Logger:      asynqLogger{logger.With("component", "asynq")},
	})
	mux := rt.Processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	logger.Info("worker started", "concurrency", cfg.Workers, "mirror", rt.Mirror != nil)
	if err := server.Run(mux); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
