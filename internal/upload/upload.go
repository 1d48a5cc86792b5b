// Package upload orchestrates the two-phase upload: receive and parse a binary
// into a staged file, then confirm it into a permanent version.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
	"github.com/dharsanguruparan/AppCenter/internal/catalog"
	"github.com/dharsanguruparan/AppCenter/internal/extractor"
	"github.com/dharsanguruparan/AppCenter/internal/icon"
	"github.com/dharsanguruparan/AppCenter/internal/logging"
	"github.com/dharsanguruparan/AppCenter/internal/model"
	"github.com/dharsanguruparan/AppCenter/internal/queue"
	"github.com/dharsanguruparan/AppCenter/internal/staging"
)

// Service runs the upload workflow.
type Service struct {
	staging   *staging.Store
	catalog   *catalog.Service
	extractor extractor.Extractor
	jobs      queue.Enqueuer
	maxSize   int64
	tempTTL   time.Duration
	log       *logging.UploadLog
	logger    *slog.Logger
	now       func() time.Time
}

// Options carries the tunables of a Service.
type Options struct {
	MaxFileSize int64
	TempTTL     time.Duration
	// Jobs may be nil, in which case expiry relies on the periodic sweep
	// and nothing is mirrored.
	Jobs queue.Enqueuer
}

// New constructs a Service.
func New(st *staging.Store, cat *catalog.Service, ex extractor.Extractor, logger *slog.Logger, opts Options) *Service {
	return &Service{
		staging:   st,
		catalog:   cat,
		extractor: ex,
		jobs:      opts.Jobs,
		maxSize:   opts.MaxFileSize,
		tempTTL:   opts.TempTTL,
		log:       logging.NewUploadLog(logger),
		logger:    logger.With("component", "upload"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Staged is the result of the first phase.
type Staged struct {
	FileID     string            `json:"fileId"`
	ParsedInfo *model.ParsedInfo `json:"parsedInfo"`
	File       *model.StagedFile `json:"file"`
}

// AllowedExtension reports whether name is an .ipa or .apk file.
func AllowedExtension(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ipa", ".apk":
		return true
	}
	return false
}

// StageUpload validates, stores and parses an uploaded binary on behalf of
// uploadedBy. Icon problems never fail the parse; the platform placeholder is
// used instead.
func (s *Service) StageUpload(ctx context.Context, uploadedBy, originalName string, r io.Reader) (*Staged, error) {
	if !AllowedExtension(originalName) {
		return nil, apperr.ErrUnsupportedFileType
	}
	rec, err := s.staging.Receive(filepath.Base(originalName), r, s.maxSize)
	if err != nil {
		return nil, err
	}

	s.log.ParseStart(rec.Path)
	meta, err := s.extractor.Parse(ctx, rec.Path)
	if err != nil {
		s.log.ParseError(rec.Path, err)
		s.staging.Discard(rec.Path, "parse failed")
		if apperr.KindOf(err) == apperr.KindInternal {
			err = apperr.ErrParse.Wrap(err)
		}
		return nil, err
	}
	s.log.ParseSuccess(rec.Path, meta.BundleID, meta.VersionName)

	platform := model.PlatformFromFilename(rec.OriginalName)
	parsed := &model.ParsedInfo{
		Name:        meta.DisplayName,
		BundleID:    meta.BundleID,
		VersionName: meta.VersionName,
		VersionCode: meta.VersionCode,
		Platform:    platform.Key(),
	}
	s.applyIcon(parsed, meta.Icon)

	f, err := s.staging.Stage(ctx, uploadedBy, rec.OriginalName, rec.Path, rec.Size, rec.MimeType, parsed)
	if err != nil {
		s.staging.Discard(rec.Path, "stage failed")
		return nil, err
	}
	if s.jobs != nil {
		if err := s.jobs.ScheduleExpiry(ctx, f.ID, s.tempTTL); err != nil {
			s.logger.Warn("schedule expiry failed; the periodic sweep will reclaim the file", "file_id", f.ID, "error", err)
		}
	}
	return &Staged{FileID: f.ID, ParsedInfo: parsed, File: f}, nil
}

func (s *Service) applyIcon(parsed *model.ParsedInfo, raw any) {
	if raw == nil {
		parsed.Icon = icon.Fallback(parsed.Platform)
		parsed.IconError = "no icon in binary"
		return
	}
	dataURL, err := icon.ToDataURL(raw)
	if err != nil {
		s.logger.Warn("icon conversion failed; using placeholder", "bundle_id", parsed.BundleID, "error", err)
		parsed.Icon = icon.Fallback(parsed.Platform)
		parsed.IconError = err.Error()
		return
	}
	parsed.Icon = dataURL
}

// ConfirmRequest is the second phase input.
type ConfirmRequest struct {
	AppID        string
	FileID       string
	Version      string
	BuildNumber  string
	ReleaseNotes string
	// Preview returns the parsed metadata without creating anything.
	Preview bool
	// BaseURL is scheme://host of the request, used for the download URL.
	BaseURL string
	// Actor, when set, must be the file's uploader or a super admin.
	Actor *model.User
}

// ConfirmResult carries either the preview or the created version.
type ConfirmResult struct {
	ParsedInfo  *model.ParsedInfo  `json:"appInfo,omitempty"`
	Version     *model.Version     `json:"version,omitempty"`
	Application *model.Application `json:"app,omitempty"`
}

// ConfirmVersion turns a staged file into a version of req.AppID.
func (s *Service) ConfirmVersion(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error) {
	if req.FileID == "" {
		return nil, apperr.ErrMissingFile
	}
	app, err := s.catalog.GetApp(ctx, req.AppID)
	if err != nil {
		return nil, err
	}
	file, err := s.stagedFile(ctx, req.FileID)
	if err != nil {
		return nil, err
	}
	if req.Actor != nil && !file.AccessibleBy(req.Actor) {
		return nil, apperr.ErrPermission.WithMessage("staged file belongs to another user")
	}
	if req.Preview {
		return &ConfirmResult{ParsedInfo: file.ParsedInfo}, nil
	}

	version := strings.TrimSpace(req.Version)
	build := strings.TrimSpace(req.BuildNumber)
	if version == "" || build == "" {
		return nil, apperr.ErrMissingField
	}
	s.log.VersionCreationStart(req.FileID, version, build)

	exists, err := s.catalog.VersionExists(ctx, app.ID, version, build)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.ErrDuplicateVersion
	}

	now := s.now()
	ext := strings.ToLower(filepath.Ext(file.OriginalName))
	finalName := fmt.Sprintf("%d_%s%s", now.UnixMilli(), uuid.NewString(), ext)
	finalPath := filepath.Join(s.catalog.AppDir(app.ID), finalName)

	confirmed, err := s.staging.Confirm(ctx, file.ID, finalPath)
	if err != nil {
		s.log.VersionCreationError(req.FileID, err)
		return nil, err
	}

	platform := model.PlatformFromFilename(file.OriginalName)
	downloadURL := strings.TrimRight(req.BaseURL, "/") + "/uploads/" + app.ID + "/" + finalName
	v, err := s.catalog.CreateVersion(ctx, &model.Version{
		AppID:        app.ID,
		Version:      version,
		BuildNumber:  build,
		ReleaseNotes: req.ReleaseNotes,
		UploadDate:   now,
		Size:         humanize.Bytes(uint64(confirmed.Size)),
		Status:       model.VersionActive,
		FileName:     file.OriginalName,
		FilePath:     finalPath,
		DownloadURL:  downloadURL,
		Platform:     platform,
	})
	if err != nil {
		s.log.VersionCreationError(req.FileID, err)
		if derr := s.staging.Delete(ctx, file.ID); derr != nil {
			s.log.CleanupError(finalPath, derr)
		}
		return nil, err
	}

	patch := model.ApplicationPatch{
		Platform:    &platform,
		Version:     &version,
		BuildNumber: &build,
		UploadDate:  &now,
		DownloadURL: &downloadURL,
	}
	if info := file.ParsedInfo; info != nil {
		if info.Name != "" {
			patch.AppName = &info.Name
		}
		if info.BundleID != "" {
			patch.BundleID = &info.BundleID
		}
		if info.Icon != "" {
			patch.Icon = &info.Icon
		}
	}
	updated, err := s.catalog.UpdateApp(ctx, app.ID, patch)
	if err != nil {
		s.log.VersionCreationError(req.FileID, err)
		// Roll back so the version triple is free for a retry.
		if rerr := s.catalog.RemoveVersion(ctx, v.ID); rerr != nil {
			s.logger.Error("roll back version failed", "version_id", v.ID, "error", rerr)
		}
		if derr := s.staging.Delete(ctx, file.ID); derr != nil {
			s.log.CleanupError(finalPath, derr)
		}
		return nil, err
	}
	s.log.VersionCreationSuccess(finalPath, v.ID)

	if s.jobs != nil {
		if err := s.jobs.EnqueueMirror(ctx, v.ID); err != nil {
			s.logger.Warn("enqueue mirror failed", "version_id", v.ID, "error", err)
		}
	}
	return &ConfirmResult{Version: v, Application: updated}, nil
}

// GetStaged returns a staged file the actor may see.
func (s *Service) GetStaged(ctx context.Context, actor *model.User, id string) (*model.StagedFile, error) {
	f, err := s.staging.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !f.AccessibleBy(actor) {
		return nil, apperr.ErrPermission.WithMessage("staged file belongs to another user")
	}
	return f, nil
}

// DeleteStaged removes a staged file the actor may manage.
func (s *Service) DeleteStaged(ctx context.Context, actor *model.User, id string) error {
	if _, err := s.GetStaged(ctx, actor, id); err != nil {
		return err
	}
	return s.staging.Delete(ctx, id)
}

// stagedFile loads a file that is still awaiting confirmation.
func (s *Service) stagedFile(ctx context.Context, id string) (*model.StagedFile, error) {
	f, err := s.staging.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrFileNotFound) {
			return nil, apperr.ErrFileNotStaged
		}
		return nil, err
	}
	if f.Status != model.FileTemporary {
		return nil, apperr.ErrFileNotStaged
	}
	return f, nil
}

// AutomationUpload stages and confirms in one call for CI pipelines, using the
// version and build parsed from the binary.
func (s *Service) AutomationUpload(ctx context.Context, appKey, originalName string, r io.Reader, releaseNotes, baseURL string) (*ConfirmResult, error) {
	app, err := s.catalog.GetAppByAppKey(ctx, appKey)
	if err != nil {
		return nil, err
	}
	if model.PlatformFromFilename(originalName) != app.Platform && AllowedExtension(originalName) {
		return nil, apperr.ErrValidation.WithMessage("%s binaries cannot be uploaded to a %s application",
			model.PlatformFromFilename(originalName), app.Platform)
	}
	staged, err := s.StageUpload(ctx, app.OwnerID, originalName, r)
	if err != nil {
		return nil, err
	}
	res, err := s.ConfirmVersion(ctx, ConfirmRequest{
		AppID:        app.ID,
		FileID:       staged.FileID,
		Version:      staged.ParsedInfo.VersionName,
		BuildNumber:  staged.ParsedInfo.VersionCode,
		ReleaseNotes: releaseNotes,
		BaseURL:      baseURL,
	})
	if err != nil {
		// Nothing else will confirm this file; reclaim it now.
		if derr := s.staging.Delete(ctx, staged.FileID); derr != nil && !errors.Is(derr, apperr.ErrFileNotFound) {
			s.logger.Warn("discard automation upload failed", "file_id", staged.FileID, "error", derr)
		}
		return nil, err
	}
	return res, nil
}
