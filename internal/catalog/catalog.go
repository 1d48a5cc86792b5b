// Package catalog implements the application and version catalogs: CRUD over
// both, key generation, and cascading removal of stored binaries.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
	"github.com/dharsanguruparan/AppCenter/internal/icon"
	"github.com/dharsanguruparan/AppCenter/internal/model"
	"github.com/dharsanguruparan/AppCenter/internal/repository"
)

// Hooks lets side systems follow catalog changes. Either field may be nil.
type Hooks struct {
	// KeyChanged receives a download key whose cached resolution is stale.
	KeyChanged func(ctx context.Context, downloadKey string)
	// FilesRemoved receives the upload-relative paths of deleted binaries.
	FilesRemoved func(ctx context.Context, relPaths []string)
}

// Service is the application + version catalog.
type Service struct {
	apps      repository.Apps
	versions  repository.Versions
	uploadDir string
	logger    *slog.Logger
	hooks     Hooks
}

// New constructs a Service storing confirmed binaries under uploadDir.
func New(apps repository.Apps, versions repository.Versions, uploadDir string, logger *slog.Logger, hooks Hooks) *Service {
	return &Service{
		apps:      apps,
		versions:  versions,
		uploadDir: uploadDir,
		logger:    logger.With("component", "catalog"),
		hooks:     hooks,
	}
}

// UploadDir is the storage root holding one directory per application.
func (s *Service) UploadDir() string { return s.uploadDir }

// AppDir is where an application's confirmed binaries live.
func (s *Service) AppDir(appID string) string { return filepath.Join(s.uploadDir, appID) }

// NewApp holds the caller-supplied fields of a new application.
type NewApp struct {
	Name        string
	AppName     string
	Platform    model.Platform
	BundleID    string
	Icon        string
	Description string
	// DownloadKey is generated when empty.
	DownloadKey string
	OwnerID     string
}

// CreateApp generates the identifier and keys and persists the application.
func (s *Service) CreateApp(ctx context.Context, in NewApp) (*model.Application, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.ErrValidation.WithMessage("application name is required")
	}
	if in.Platform != model.PlatformIOS && in.Platform != model.PlatformAndroid {
		return nil, apperr.ErrValidation.WithMessage("platform must be iOS or Android")
	}
	if in.OwnerID == "" {
		return nil, apperr.ErrValidation.WithMessage("application owner is required")
	}

	appKey, err := s.uniqueKey(ctx, appKeyLength, func(k string) (bool, error) {
		return s.apps.AppKeyExists(ctx, k)
	})
	if err != nil {
		return nil, err
	}
	downloadKey := strings.TrimSpace(in.DownloadKey)
	if downloadKey != "" {
		if !validDownloadKey(downloadKey) {
			return nil, apperr.ErrValidation.WithMessage("download key must be 4-32 letters, digits, '-' or '_'")
		}
		taken, err := s.apps.DownloadKeyExists(ctx, downloadKey, "")
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperr.ErrDuplicateDownloadKey
		}
	} else {
		downloadKey, err = s.uniqueKey(ctx, downloadKeyLength, func(k string) (bool, error) {
			return s.apps.DownloadKeyExists(ctx, k, "")
		})
		if err != nil {
			return nil, err
		}
	}

	app := &model.Application{
		ID:          uuid.NewString(),
		Name:        name,
		AppName:     in.AppName,
		AppKey:      appKey,
		DownloadKey: downloadKey,
		Platform:    in.Platform,
		BundleID:    in.BundleID,
		Icon:        in.Icon,
		Description: in.Description,
		OwnerID:     in.OwnerID,
	}
	if app.AppName == "" {
		app.AppName = name
	}
	if app.Icon == "" {
		app.Icon = icon.Fallback(in.Platform.Key())
	}
	if err := s.apps.CreateApp(ctx, app); err != nil {
		return nil, err
	}
	s.logger.Info("application created", "app_id", app.ID, "download_key", app.DownloadKey, "owner_id", app.OwnerID)
	return app, nil
}

// uniqueKey generates keys until exists reports a free one, giving up after
// maxKeyAttempts. The unique index remains the final arbiter.
func (s *Service) uniqueKey(ctx context.Context, n int, exists func(string) (bool, error)) (string, error) {
	for i := 0; i < maxKeyAttempts; i++ {
		key, err := randomKey(n)
		if err != nil {
			return "", apperr.ErrInternal.Wrap(fmt.Errorf("generate key: %w", err))
		}
		taken, err := exists(key)
		if err != nil {
			return "", err
		}
		if !taken {
			return key, nil
		}
	}
	return "", apperr.ErrInternal.Wrap(fmt.Errorf("no free %d-character key after %d attempts", n, maxKeyAttempts))
}

// UpdateApp applies the set fields of patch. A download key change is checked
// for uniqueness excluding the application itself.
func (s *Service) UpdateApp(ctx context.Context, id string, patch model.ApplicationPatch) (*model.Application, error) {
	current, err := s.apps.GetApp(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, apperr.ErrValidation.WithMessage("application name cannot be empty")
	}
	if patch.Platform != nil && *patch.Platform != model.PlatformIOS && *patch.Platform != model.PlatformAndroid {
		return nil, apperr.ErrValidation.WithMessage("platform must be iOS or Android")
	}
	if patch.DownloadKey != nil {
		key := strings.TrimSpace(*patch.DownloadKey)
		if !validDownloadKey(key) {
			return nil, apperr.ErrValidation.WithMessage("download key must be 4-32 letters, digits, '-' or '_'")
		}
		taken, err := s.apps.DownloadKeyExists(ctx, key, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperr.ErrDuplicateDownloadKey
		}
		patch.DownloadKey = &key
	}
	if patch.IsEmpty() {
		return current, nil
	}
	updated, err := s.apps.UpdateApp(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.keyChanged(ctx, current.DownloadKey)
	if updated.DownloadKey != current.DownloadKey {
		s.keyChanged(ctx, updated.DownloadKey)
	}
	return updated, nil
}

// GetApp returns an application by id.
func (s *Service) GetApp(ctx context.Context, id string) (*model.Application, error) {
	return s.apps.GetApp(ctx, id)
}

// GetAppByAppKey returns the application for an automation key.
func (s *Service) GetAppByAppKey(ctx context.Context, appKey string) (*model.Application, error) {
	if appKey == "" {
		return nil, apperr.ErrNotFound
	}
	return s.apps.GetAppByAppKey(ctx, appKey)
}

// GetAppByDownloadKey returns the application published under downloadKey.
func (s *Service) GetAppByDownloadKey(ctx context.Context, downloadKey string) (*model.Application, error) {
	if downloadKey == "" {
		return nil, apperr.ErrNotFound
	}
	return s.apps.GetAppByDownloadKey(ctx, downloadKey)
}

// ListApps returns every application, newest first.
func (s *Service) ListApps(ctx context.Context) ([]*model.Application, error) {
	return s.apps.ListApps(ctx)
}

// ListAppsByOwner returns the applications owned by ownerID.
func (s *Service) ListAppsByOwner(ctx context.Context, ownerID string) ([]*model.Application, error) {
	return s.apps.ListAppsByOwner(ctx, ownerID)
}

// DeleteApp removes the application row (versions cascade) and then its
// stored binaries and directory. File failures are logged, never returned.
func (s *Service) DeleteApp(ctx context.Context, id string) error {
	app, err := s.apps.GetApp(ctx, id)
	if err != nil {
		return err
	}
	versions, err := s.versions.ListVersions(ctx, id)
	if err != nil {
		return fmt.Errorf("list versions of %s: %w", id, err)
	}
	if err := s.apps.DeleteApp(ctx, id); err != nil {
		return err
	}
	s.removeAppFiles(ctx, app, versions)
	s.logger.Info("application deleted", "app_id", id, "versions", len(versions))
	return nil
}

// ClearAll deletes every application and returns how many rows went away.
func (s *Service) ClearAll(ctx context.Context) (int, error) {
	apps, err := s.apps.ListApps(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, app := range apps {
		if err := s.DeleteApp(ctx, app.ID); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return count, err
		}
		count++
	}
	return count, nil
}

func (s *Service) removeAppFiles(ctx context.Context, app *model.Application, versions []*model.Version) {
	var removed []string
	for _, v := range versions {
		if rel, ok := s.removeVersionFile(v); ok {
			removed = append(removed, rel)
		}
	}
	dir := s.AppDir(app.ID)
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Warn("remove application directory failed", "path", dir, "error", err)
	}
	s.keyChanged(ctx, app.DownloadKey)
	if s.hooks.FilesRemoved != nil && len(removed) > 0 {
		s.hooks.FilesRemoved(ctx, removed)
	}
}

// removeVersionFile deletes a version's binary, reporting its upload-relative
// path when one was recorded.
func (s *Service) removeVersionFile(v *model.Version) (string, bool) {
	if v.FilePath == "" {
		return "", false
	}
	if err := os.Remove(v.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("remove version file failed", "version_id", v.ID, "path", v.FilePath, "error", err)
	}
	rel, err := filepath.Rel(s.uploadDir, v.FilePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (s *Service) keyChanged(ctx context.Context, downloadKey string) {
	if s.hooks.KeyChanged != nil && downloadKey != "" {
		s.hooks.KeyChanged(ctx, downloadKey)
	}
}
