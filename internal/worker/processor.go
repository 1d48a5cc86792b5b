// Package worker executes the background tasks: expiring staged uploads and
// keeping the object-storage mirror in step with the catalog.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
	"github.com/dharsanguruparan/AppCenter/internal/model"
	"github.com/dharsanguruparan/AppCenter/internal/queue"
	"github.com/dharsanguruparan/AppCenter/internal/s3storage"
)

// Expirer expires a single staged upload.
type Expirer interface {
	Expire(ctx context.Context, id string) (bool, error)
}

// VersionSource resolves versions for mirroring.
type VersionSource interface {
	GetVersion(ctx context.Context, id string) (*model.Version, error)
}

// Mirror is the object store receiving confirmed binaries.
type Mirror interface {
	Upload(ctx context.Context, objectKey, localPath string) error
	Remove(ctx context.Context, objectKeys []string) error
}

// Processor runs tasks for both the asynq worker and the in-process pool.
type Processor struct {
	staging   Expirer
	versions  VersionSource
	mirror    Mirror
	uploadDir string
	logger    *slog.Logger
}

// NewProcessor constructs a worker processor. mirror may be nil, in which case
// mirror tasks succeed without doing anything.
func NewProcessor(staging Expirer, versions VersionSource, mirror Mirror, uploadDir string, logger *slog.Logger) *Processor {
	return &Processor{
		staging:   staging,
		versions:  versions,
		mirror:    mirror,
		uploadDir: uploadDir,
		logger:    logger.With("component", "worker"),
	}
}

// Handler registers the task handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ExpireStagedFileTask, p.handleExpire)
	mux.HandleFunc(queue.MirrorVersionTask, p.handleMirror)
	mux.HandleFunc(queue.UnmirrorObjectsTask, p.handleUnmirror)
	return mux
}

func (p *Processor) handleExpire(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.Decode[queue.ExpirePayload](task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return p.ExpireStagedFile(ctx, payload.FileID)
}

func (p *Processor) handleMirror(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.Decode[queue.MirrorPayload](task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return p.MirrorVersion(ctx, payload.VersionID)
}

func (p *Processor) handleUnmirror(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.Decode[queue.UnmirrorPayload](task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return p.RemoveObjects(ctx, payload.ObjectKeys)
}

// ExpireStagedFile expires fileID if it is still temporary. A file that was
// confirmed or removed in the meantime is not an error.
func (p *Processor) ExpireStagedFile(ctx context.Context, fileID string) error {
	expired, err := p.staging.Expire(ctx, fileID)
	if err != nil {
		return fmt.Errorf("expire %s: %w", fileID, err)
	}
	if expired {
		p.logger.Info("staged file expired", "file_id", fileID)
	}
	return nil
}

// MirrorVersion copies the version's binary to the mirror.
func (p *Processor) MirrorVersion(ctx context.Context, versionID string) error {
	if p.mirror == nil {
		return nil
	}
	v, err := p.versions.GetVersion(ctx, versionID)
	if err != nil {
		if errors.Is(err, apperr.ErrVersionNotFound) {
			p.logger.Info("mirror skipped, version gone", "version_id", versionID)
			return nil
		}
		return err
	}
	key, ok := s3storage.ObjectKey(p.uploadDir, v.FilePath)
	if !ok {
		p.logger.Warn("mirror skipped, file outside upload dir", "version_id", versionID, "path", v.FilePath)
		return nil
	}
	if err := p.mirror.Upload(ctx, key, v.FilePath); err != nil {
		return err
	}
	p.logger.Info("version mirrored", "version_id", versionID, "object_key", key)
	return nil
}

// RemoveObjects deletes mirrored binaries.
func (p *Processor) RemoveObjects(ctx context.Context, objectKeys []string) error {
	if p.mirror == nil || len(objectKeys) == 0 {
		return nil
	}
	if err := p.mirror.Remove(ctx, objectKeys); err != nil {
		return err
	}
	p.logger.Info("mirrored objects removed", "count", len(objectKeys))
	return nil
}
