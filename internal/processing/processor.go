// Package processing runs background tasks in-process when no Redis is
// configured. A fixed pool of goroutines drains a buffered channel; delayed
// expiry is armed with timers.
package processing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dharsanguruparan/AppCenter/internal/queue"
)

// Runner executes the tasks.
type Runner interface {
	ExpireStagedFile(ctx context.Context, fileID string) error
	MirrorVersion(ctx context.Context, versionID string) error
	RemoveObjects(ctx context.Context, objectKeys []string) error
}

// Job is one unit of queued work.
type Job struct {
	Kind string
	Run  func(ctx context.Context) error
}

// Processor consumes Jobs on a worker pool.
type Processor struct {
	runner  Runner
	queue   chan Job
	workers int
	logger  *slog.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

var _ queue.Enqueuer = (*Processor)(nil)

// New builds a Processor with queue capacity tied to worker count.
func New(runner Runner, workers int, logger *slog.Logger) *Processor {
	if workers <= 0 {
		workers = 1
	}
	return &Processor{
		runner:  runner,
		queue:   make(chan Job, workers*16),
		workers: workers,
		logger:  logger.With("component", "processing"),
		timers:  make(map[string]*time.Timer),
	}
}

// Start launches worker goroutines. They exit when ctx is cancelled, and any
// pending expiry timers are stopped.
func (p *Processor) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	go func() {
		<-ctx.Done()
		p.mu.Lock()
		p.stopped = true
		for id, t := range p.timers {
			t.Stop()
			delete(p.timers, id)
		}
		p.mu.Unlock()
	}()
}

// Wait blocks until every worker has exited.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// Submit queues a job. A full queue drops the job; the periodic sweep covers
// missed expiries and a later mirror pass covers missed uploads.
func (p *Processor) Submit(job Job) bool {
	select {
	case p.queue <- job:
		return true
	default:
		p.logger.Warn("processing queue full, dropping job", "kind", job.Kind)
		return false
	}
}

// ScheduleExpiry arms a timer that queues the expiry of fileID.
func (p *Processor) ScheduleExpiry(_ context.Context, fileID string, after time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil
	}
	if old, ok := p.timers[fileID]; ok {
		old.Stop()
	}
	p.timers[fileID] = time.AfterFunc(after, func() {
		p.mu.Lock()
		delete(p.timers, fileID)
		p.mu.Unlock()
		p.Submit(Job{Kind: queue.ExpireStagedFileTask, Run: func(ctx context.Context) error {
			return p.runner.ExpireStagedFile(ctx, fileID)
		}})
	})
	return nil
}

// EnqueueMirror queues a mirror job for versionID.
func (p *Processor) EnqueueMirror(_ context.Context, versionID string) error {
	p.Submit(Job{Kind: queue.MirrorVersionTask, Run: func(ctx context.Context) error {
		return p.runner.MirrorVersion(ctx, versionID)
	}})
	return nil
}

// EnqueueUnmirror queues removal of mirrored objects.
func (p *Processor) EnqueueUnmirror(_ context.Context, objectKeys []string) error {
	if len(objectKeys) == 0 {
		return nil
	}
	keys := append([]string(nil), objectKeys...)
	p.Submit(Job{Kind: queue.UnmirrorObjectsTask, Run: func(ctx context.Context) error {
		return p.runner.RemoveObjects(ctx, keys)
	}})
	return nil
}

// Pending reports how many expiry timers are armed.
func (p *Processor) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.timers)
}

func (p *Processor) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.queue:
			if err := job.Run(ctx); err != nil {
				p.logger.Error("background job failed", "kind", job.Kind, "error", err)
			}
		}
	}
}
