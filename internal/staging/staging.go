// Package staging manages uploaded binaries between upload and confirmation:
// temporary -> confirmed (moved under the application's directory) or
// temporary -> expired (bytes reclaimed by the sweep).
package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
	"github.com/dharsanguruparan/AppCenter/internal/logging"
	"github.com/dharsanguruparan/AppCenter/internal/model"
	"github.com/dharsanguruparan/AppCenter/internal/repository"
)

// Store is the Staged File Store.
type Store struct {
	files   repository.Files
	tempDir string
	log     *logging.UploadLog
	now     func() time.Time
}

// New constructs a Store keeping staged bytes in tempDir.
func New(files repository.Files, tempDir string, logger *slog.Logger) *Store {
	return &Store{
		files:   files,
		tempDir: tempDir,
		log:     logging.NewUploadLog(logger),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Received describes bytes written to the temp directory by Receive.
type Received struct {
	Path         string
	OriginalName string
	Size         int64
	MimeType     string
}

// Receive streams r into a uniquely named file in the temp directory. It fails
// with apperr.ErrFileTooLarge once more than limit bytes arrive and with
// apperr.ErrMissingFile when r is empty; the partial file is removed either way.
func (s *Store) Receive(originalName string, r io.Reader, limit int64) (*Received, error) {
	if err := os.MkdirAll(s.tempDir, 0o755); err != nil {
		return nil, apperr.ErrFileSystem.Wrap(fmt.Errorf("create temp dir: %w", err))
	}
	ext := strings.ToLower(filepath.Ext(originalName))
	tmp, err := os.CreateTemp(s.tempDir, "upload-*"+ext)
	if err != nil {
		return nil, apperr.ErrFileSystem.Wrap(fmt.Errorf("create temp file: %w", err))
	}
	discard := func(err error) (*Received, error) {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}

	var sniff []byte
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			written += int64(n)
			if limit > 0 && written > limit {
				return discard(apperr.ErrFileTooLarge)
			}
			if len(sniff) < 512 {
				chunk := n
				if remain := 512 - len(sniff); chunk > remain {
					chunk = remain
				}
				sniff = append(sniff, buf[:chunk]...)
			}
			if _, err := tmp.Write(buf[:n]); err != nil {
				return discard(apperr.ErrFileSystem.Wrap(fmt.Errorf("write temp file: %w", err)))
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			var maxErr *http.MaxBytesError
			if errors.As(readErr, &maxErr) {
				return discard(apperr.ErrFileTooLarge)
			}
			return discard(fmt.Errorf("read upload: %w", readErr))
		}
	}
	if written == 0 {
		return discard(apperr.ErrMissingFile)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, apperr.ErrFileSystem.Wrap(fmt.Errorf("close temp file: %w", err))
	}
	s.log.FileReceived(originalName, written, tmp.Name())
	return &Received{
		Path:         tmp.Name(),
		OriginalName: originalName,
		Size:         written,
		MimeType:     http.DetectContentType(sniff),
	}, nil
}

// Stage records bytes already present at tempPath as a temporary file owned by
// uploadedBy.
func (s *Store) Stage(ctx context.Context, uploadedBy, originalName, tempPath string, size int64, mimeType string, parsed *model.ParsedInfo) (*model.StagedFile, error) {
	f := &model.StagedFile{
		ID:           uuid.NewString(),
		OriginalName: originalName,
		TempPath:     tempPath,
		Size:         size,
		MimeType:     mimeType,
		UploadDate:   s.now(),
		Status:       model.FileTemporary,
		ParsedInfo:   parsed,
		UploadedBy:   uploadedBy,
	}
	if err := s.files.CreateFile(ctx, f); err != nil {
		return nil, fmt.Errorf("stage file: %w", err)
	}
	return f, nil
}

// Get returns a staged file record.
func (s *Store) Get(ctx context.Context, id string) (*model.StagedFile, error) {
	return s.files.GetFile(ctx, id)
}

// Confirm moves a temporary file to finalPath and marks it confirmed. It fails
// with apperr.ErrFileNotStaged unless the record exists and is temporary. A
// failed move leaves the record temporary with its bytes in place.
func (s *Store) Confirm(ctx context.Context, id, finalPath string) (*model.StagedFile, error) {
	moved := false
	var src string
	f, err := s.files.ConfirmFile(ctx, id, finalPath, func(f *model.StagedFile) error {
		src = f.TempPath
		if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
			return apperr.ErrFileSystem.Wrap(fmt.Errorf("create %s: %w", filepath.Dir(finalPath), err))
		}
		if err := moveFile(src, finalPath); err != nil {
			return apperr.ErrFileSystem.Wrap(err)
		}
		moved = true
		return nil
	})
	if err != nil {
		if moved {
			// The status write failed after the bytes moved; put them back so
			// the record and the filesystem agree again.
			if rerr := moveFile(finalPath, src); rerr != nil {
				s.log.CleanupError(finalPath, rerr)
			}
		}
		return nil, err
	}
	s.log.Processing(id, "file moved to "+finalPath)
	return f, nil
}

// ExpireOlderThan expires every temporary file uploaded more than age ago and
// removes its bytes. File removal failures are logged and do not stop the
// batch; the count covers records transitioned to expired.
func (s *Store) ExpireOlderThan(ctx context.Context, age time.Duration) (int, error) {
	stale, err := s.files.ListTemporaryBefore(ctx, s.now().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("list stale files: %w", err)
	}
	count := 0
	for _, f := range stale {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		ok, err := s.expire(ctx, f.ID)
		if err != nil {
			s.log.CleanupError(f.TempPath, err)
			continue
		}
		if ok {
			count++
		}
	}
	return count, nil
}

// Expire expires a single file if it is still temporary. Used by the delayed
// per-upload job.
func (s *Store) Expire(ctx context.Context, id string) (bool, error) {
	return s.expire(ctx, id)
}

func (s *Store) expire(ctx context.Context, id string) (bool, error) {
	f, ok, err := s.files.ExpireFile(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	s.removeBytes(f.TempPath, "expired")
	return true, nil
}

// Delete removes the record and then, best-effort, its bytes.
func (s *Store) Delete(ctx context.Context, id string) error {
	f, err := s.files.DeleteFile(ctx, id)
	if err != nil {
		return err
	}
	s.removeBytes(f.Path(), "deleted")
	return nil
}

// Discard removes bytes that never became a staged record, such as an upload
// that failed validation.
func (s *Store) Discard(path, reason string) {
	s.removeBytes(path, reason)
}

func (s *Store) removeBytes(path, reason string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.CleanupError(path, err)
		}
		return
	}
	s.log.Cleanup(path, reason)
}

// moveFile renames src to dst, copying when they sit on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	} else if _, statErr := os.Stat(src); statErr != nil {
		return fmt.Errorf("move %s: %w", src, err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return os.Remove(src)
}
