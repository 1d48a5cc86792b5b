package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
	"github.com/dharsanguruparan/AppCenter/internal/model"
)

const fileColumns = `id, original_name, temp_path, final_path, size, mime_type, upload_date, status,
	parsed_info, uploaded_by, created_at, updated_at`

func scanFile(row rowScanner) (*model.StagedFile, error) {
	var (
		f      model.StagedFile
		parsed []byte
	)
	err := row.Scan(&f.ID, &f.OriginalName, &f.TempPath, &f.FinalPath, &f.Size, &f.MimeType, &f.UploadDate,
		&f.Status, &parsed, &f.UploadedBy, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(parsed) > 0 {
		var info model.ParsedInfo
		if err := json.Unmarshal(parsed, &info); err != nil {
			return nil, fmt.Errorf("decode parsed info: %w", err)
		}
		f.ParsedInfo = &info
	}
	return &f, nil
}

func fileError(err error) error {
	if isNoRows(err) {
		return apperr.ErrFileNotFound
	}
	return err
}

// CreateFile inserts a staged file record.
func (s *PostgresStore) CreateFile(ctx context.Context, f *model.StagedFile) error {
	var parsed []byte
	if f.ParsedInfo != nil {
		b, err := json.Marshal(f.ParsedInfo)
		if err != nil {
			return fmt.Errorf("encode parsed info: %w", err)
		}
		parsed = b
	}
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO files (`+fileColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, f.ID, f.OriginalName, f.TempPath, f.FinalPath, f.Size, f.MimeType, f.UploadDate, f.Status,
		parsed, f.UploadedBy, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

// GetFile returns a staged file by id.
func (s *PostgresStore) GetFile(ctx context.Context, id string) (*model.StagedFile, error) {
	f, err := scanFile(s.pool.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id=$1`, id))
	if err != nil {
		return nil, fmt.Errorf("select file: %w", fileError(err))
	}
	return f, nil
}

// ConfirmFile holds a row lock across the move so two confirmations of the same
// file serialize and the loser sees the confirmed status.
func (s *PostgresStore) ConfirmFile(ctx context.Context, id, finalPath string, move func(*model.StagedFile) error) (*model.StagedFile, error) {
	var confirmed *model.StagedFile
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		f, err := scanFile(tx.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id=$1 FOR UPDATE`, id))
		if err != nil {
			if isNoRows(err) {
				return apperr.ErrFileNotStaged
			}
			return fmt.Errorf("lock file: %w", err)
		}
		if f.Status != model.FileTemporary {
			return apperr.ErrFileNotStaged
		}
		f.FinalPath = finalPath
		if err := move(f); err != nil {
			return err
		}
		f.Status = model.FileConfirmed
		f.UpdatedAt = time.Now().UTC()
		if _, err := tx.Exec(ctx, `UPDATE files SET status=$1, final_path=$2, updated_at=$3 WHERE id=$4`,
			f.Status, f.FinalPath, f.UpdatedAt, f.ID); err != nil {
			return fmt.Errorf("confirm file: %w", err)
		}
		confirmed = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

func (s *PostgresStore) ListTemporaryBefore(ctx context.Context, cutoff time.Time) ([]*model.StagedFile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+fileColumns+` FROM files WHERE status=$1 AND upload_date < $2 ORDER BY upload_date
	`, model.FileTemporary, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list temporary files: %w", err)
	}
	return collect(rows, scanFile)
}

// ExpireFile is a conditional status write; a concurrent confirmation that
// already committed makes it a no-op.
func (s *PostgresStore) ExpireFile(ctx context.Context, id string) (*model.StagedFile, bool, error) {
	f, err := scanFile(s.pool.QueryRow(ctx, `
		UPDATE files SET status=$1, updated_at=$2 WHERE id=$3 AND status=$4 RETURNING `+fileColumns,
		model.FileExpired, time.Now().UTC(), id, model.FileTemporary))
	if err != nil {
		if isNoRows(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("expire file: %w", err)
	}
	return f, true, nil
}

func (s *PostgresStore) DeleteFile(ctx context.Context, id string) (*model.StagedFile, error) {
	f, err := scanFile(s.pool.QueryRow(ctx, `DELETE FROM files WHERE id=$1 RETURNING `+fileColumns, id))
	if err != nil {
		return nil, fmt.Errorf("delete file: %w", fileError(err))
	}
	return f, nil
}
