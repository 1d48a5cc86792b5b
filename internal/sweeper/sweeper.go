// Package sweeper periodically expires staged uploads that outlived their TTL.
// It backs up the per-file expiry tasks, which can be lost across restarts.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Expirer expires staged files older than a given age.
type Expirer interface {
	ExpireOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// Sweeper runs the expiry sweep on a cron schedule.
type Sweeper struct {
	staging  Expirer
	ttl      time.Duration
	schedule string
	logger   *slog.Logger

	mu      sync.Mutex
	lastRun time.Time
	lastN   int
}

// New builds a Sweeper. schedule is a standard cron spec or descriptor such as
// "@every 5m".
func New(staging Expirer, ttl time.Duration, schedule string, logger *slog.Logger) (*Sweeper, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", schedule, err)
	}
	return &Sweeper{staging: staging, ttl: ttl, schedule: schedule, logger: logger.With("component", "sweeper")}, nil
}

// RunOnce performs a single sweep and reports how many files expired.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	n, err := s.staging.ExpireOlderThan(ctx, s.ttl)
	s.mu.Lock()
	s.lastRun = time.Now().UTC()
	s.lastN = n
	s.mu.Unlock()
	if err != nil {
		return n, err
	}
	if n > 0 {
		s.logger.Info("expired stale uploads", "count", n)
	}
	return n, nil
}

// LastRun reports when the last sweep finished and what it expired.
func (s *Sweeper) LastRun() (time.Time, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastN
}

// Start sweeps once immediately, then on schedule until ctx is cancelled. It
// blocks until running sweeps have finished.
func (s *Sweeper) Start(ctx context.Context) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	sweep := func() {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("sweep failed", "error", err)
		}
	}
	if _, err := c.AddFunc(s.schedule, sweep); err != nil {
		s.logger.Error("schedule sweep failed", "schedule", s.schedule, "error", err)
		return
	}
	sweep()
	c.Start()
	s.logger.Info("sweeper running", "schedule", s.schedule, "ttl", s.ttl)

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("sweeper stopped")
}
