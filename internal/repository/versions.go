package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
	"github.com/dharsanguruparan/AppCenter/internal/model"
)

const versionColumns = `id, app_id, version, build_number, update_content, upload_date, size, status,
	file_name, file_path, download_url, platform, created_at, updated_at`

func scanVersion(row rowScanner) (*model.Version, error) {
	var v model.Version
	err := row.Scan(&v.ID, &v.AppID, &v.Version, &v.BuildNumber, &v.ReleaseNotes, &v.UploadDate, &v.Size,
		&v.Status, &v.FileName, &v.FilePath, &v.DownloadURL, &v.Platform, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func versionError(err error) error {
	if isNoRows(err) {
		return apperr.ErrVersionNotFound
	}
	if _, ok := isUniqueViolation(err); ok {
		return apperr.ErrDuplicateVersion.Wrap(err)
	}
	return err
}

// CreateVersion inserts a version row.
func (s *PostgresStore) CreateVersion(ctx context.Context, v *model.Version) error {
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO versions (`+versionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, v.ID, v.AppID, v.Version, v.BuildNumber, v.ReleaseNotes, v.UploadDate, v.Size, v.Status,
		v.FileName, v.FilePath, v.DownloadURL, v.Platform, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert version: %w", versionError(err))
	}
	return nil
}

// GetVersion returns a version by id.
func (s *PostgresStore) GetVersion(ctx context.Context, id string) (*model.Version, error) {
	v, err := scanVersion(s.pool.QueryRow(ctx, `SELECT `+versionColumns+` FROM versions WHERE id=$1`, id))
	if err != nil {
		return nil, fmt.Errorf("select version: %w", versionError(err))
	}
	return v, nil
}

// UpdateVersion writes the set fields of patch.
func (s *PostgresStore) UpdateVersion(ctx context.Context, id string, p model.VersionPatch) (*model.Version, error) {
	if p.IsEmpty() {
		return s.GetVersion(ctx, id)
	}
	set := newSetBuilder()
	set.add("version", p.Version)
	set.add("build_number", p.BuildNumber)
	set.add("update_content", p.ReleaseNotes)
	if p.Status != nil {
		set.addValue("status", string(*p.Status))
	}
	set.add("download_url", p.DownloadURL)
	set.addValue("updated_at", time.Now().UTC())

	query, args := set.build("versions", id, versionColumns)
	v, err := scanVersion(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("update version: %w", versionError(err))
	}
	return v, nil
}

func (s *PostgresStore) DeleteVersion(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM versions WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrVersionNotFound
	}
	return nil
}

func (s *PostgresStore) ListVersions(ctx context.Context, appID string) ([]*model.Version, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+versionColumns+` FROM versions WHERE app_id=$1 ORDER BY created_at DESC, id`, appID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return collect(rows, scanVersion)
}

func (s *PostgresStore) VersionExists(ctx context.Context, appID, version, buildNumber string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM versions WHERE app_id=$1 AND version=$2 AND build_number=$3)
	`, appID, version, buildNumber).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check version: %w", err)
	}
	return exists, nil
}
