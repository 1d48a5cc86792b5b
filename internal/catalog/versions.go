package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
	"github.com/dharsanguruparan/AppCenter/internal/model"
)

// CreateVersion inserts v with a fresh identifier. Uniqueness of
// (app, version, build) is checked by the confirm flow; the store's unique
// index rejects anything that slips past it.
func (s *Service) CreateVersion(ctx context.Context, v *model.Version) (*model.Version, error) {
	v.ID = uuid.NewString()
	if v.Status == "" {
		v.Status = model.VersionActive
	}
	if err := s.versions.CreateVersion(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// GetVersion returns a version by id.
func (s *Service) GetVersion(ctx context.Context, id string) (*model.Version, error) {
	return s.versions.GetVersion(ctx, id)
}

// GetAppVersion returns a version only if it belongs to appID.
func (s *Service) GetAppVersion(ctx context.Context, appID, id string) (*model.Version, error) {
	v, err := s.versions.GetVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.AppID != appID {
		return nil, apperr.ErrVersionNotFound
	}
	return v, nil
}

// UpdateVersion applies the set fields of patch.
func (s *Service) UpdateVersion(ctx context.Context, id string, patch model.VersionPatch) (*model.Version, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, apperr.ErrValidation.WithMessage("status must be active, draft or archived")
	}
	if patch.Version != nil && strings.TrimSpace(*patch.Version) == "" {
		return nil, apperr.ErrMissingField
	}
	if patch.BuildNumber != nil && strings.TrimSpace(*patch.BuildNumber) == "" {
		return nil, apperr.ErrMissingField
	}
	return s.versions.UpdateVersion(ctx, id, patch)
}

// DeleteVersion removes the row only; see RemoveVersion for the file.
func (s *Service) DeleteVersion(ctx context.Context, id string) error {
	return s.versions.DeleteVersion(ctx, id)
}

// RemoveVersion deletes the row and then, best-effort, the stored binary.
func (s *Service) RemoveVersion(ctx context.Context, id string) error {
	v, err := s.versions.GetVersion(ctx, id)
	if err != nil {
		return err
	}
	if err := s.versions.DeleteVersion(ctx, id); err != nil {
		return err
	}
	if rel, ok := s.removeVersionFile(v); ok && s.hooks.FilesRemoved != nil {
		s.hooks.FilesRemoved(ctx, []string{rel})
	}
	s.logger.Info("version deleted", "version_id", id, "app_id", v.AppID)
	return nil
}

// ListVersions returns an application's versions newest first.
func (s *Service) ListVersions(ctx context.Context, appID string) ([]*model.Version, error) {
	return s.versions.ListVersions(ctx, appID)
}

// VersionExists reports whether the (app, version, build) triple is taken.
func (s *Service) VersionExists(ctx context.Context, appID, version, buildNumber string) (bool, error) {
	return s.versions.VersionExists(ctx, appID, version, buildNumber)
}
