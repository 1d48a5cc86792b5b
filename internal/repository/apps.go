package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
	"github.com/dharsanguruparan/AppCenter/internal/model"
)

const appColumns = `id, name, app_name, app_key, download_key, system, bundle_id, version, build_number,
	upload_date, download_url, icon, description, owner_id, created_at, updated_at`

func scanApp(row rowScanner) (*model.Application, error) {
	var a model.Application
	err := row.Scan(&a.ID, &a.Name, &a.AppName, &a.AppKey, &a.DownloadKey, &a.Platform, &a.BundleID,
		&a.Version, &a.BuildNumber, &a.UploadDate, &a.DownloadURL, &a.Icon, &a.Description,
		&a.OwnerID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func appError(err error) error {
	if isNoRows(err) {
		return apperr.ErrNotFound
	}
	if constraint, ok := isUniqueViolation(err); ok && strings.Contains(constraint, "download_key") {
		return apperr.ErrDuplicateDownloadKey.Wrap(err)
	}
	return err
}

// CreateApp inserts an application.
func (s *PostgresStore) CreateApp(ctx context.Context, a *model.Application) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO apps (`+appColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, a.ID, a.Name, a.AppName, a.AppKey, a.DownloadKey, a.Platform, a.BundleID, a.Version,
		a.BuildNumber, a.UploadDate, a.DownloadURL, a.Icon, a.Description, a.OwnerID, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert app: %w", appError(err))
	}
	return nil
}

func (s *PostgresStore) getAppBy(ctx context.Context, column, value string) (*model.Application, error) {
	a, err := scanApp(s.pool.QueryRow(ctx, `SELECT `+appColumns+` FROM apps WHERE `+column+`=$1`, value))
	if err != nil {
		return nil, fmt.Errorf("select app: %w", appError(err))
	}
	return a, nil
}

// GetApp returns an application by id.
func (s *PostgresStore) GetApp(ctx context.Context, id string) (*model.Application, error) {
	return s.getAppBy(ctx, "id", id)
}

// GetAppByAppKey returns the application owning an automation key.
func (s *PostgresStore) GetAppByAppKey(ctx context.Context, appKey string) (*model.Application, error) {
	return s.getAppBy(ctx, "app_key", appKey)
}

// GetAppByDownloadKey returns the application published under downloadKey.
func (s *PostgresStore) GetAppByDownloadKey(ctx context.Context, downloadKey string) (*model.Application, error) {
	return s.getAppBy(ctx, "download_key", downloadKey)
}

func (s *PostgresStore) DownloadKeyExists(ctx context.Context, downloadKey, excludeID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM apps WHERE download_key=$1 AND id<>$2)`, downloadKey, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check download key: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) AppKeyExists(ctx context.Context, appKey string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM apps WHERE app_key=$1)`, appKey).Scan(&exists); err != nil {
		return false, fmt.Errorf("check app key: %w", err)
	}
	return exists, nil
}

// UpdateApp writes the set fields of patch. An empty patch performs no write.
func (s *PostgresStore) UpdateApp(ctx context.Context, id string, p model.ApplicationPatch) (*model.Application, error) {
	if p.IsEmpty() {
		return s.GetApp(ctx, id)
	}
	set := newSetBuilder()
	set.add("name", p.Name)
	set.add("app_name", p.AppName)
	set.add("download_key", p.DownloadKey)
	if p.Platform != nil {
		set.addValue("system", string(*p.Platform))
	}
	set.add("bundle_id", p.BundleID)
	set.add("version", p.Version)
	set.add("build_number", p.BuildNumber)
	if p.UploadDate != nil {
		set.addValue("upload_date", *p.UploadDate)
	}
	set.add("download_url", p.DownloadURL)
	set.add("icon", p.Icon)
	set.add("description", p.Description)
	set.addValue("updated_at", time.Now().UTC())

	query, args := set.build("apps", id, appColumns)
	a, err := scanApp(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("update app: %w", appError(err))
	}
	return a, nil
}

// DeleteApp removes the application; versions go with it by cascade.
func (s *PostgresStore) DeleteApp(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM apps WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete app: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListApps(ctx context.Context) ([]*model.Application, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+appColumns+` FROM apps ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	return collect(rows, scanApp)
}

func (s *PostgresStore) ListAppsByOwner(ctx context.Context, ownerID string) ([]*model.Application, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+appColumns+` FROM apps WHERE owner_id=$1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list apps by owner: %w", err)
	}
	return collect(rows, scanApp)
}

func (s *PostgresStore) CountAppsByOwner(ctx context.Context, ownerID string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM apps WHERE owner_id=$1`, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count apps: %w", err)
	}
	return n, nil
}
