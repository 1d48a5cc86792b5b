package logging

import (
	"log/slog"
)

// UploadLog records the lifecycle of uploaded binaries with stable event names
// so operators can grep one upload end to end.
type UploadLog struct {
	log *slog.Logger
}

// NewUploadLog scopes logger to the upload component.
func NewUploadLog(logger *slog.Logger) *UploadLog {
	if logger == nil {
		logger = Discard()
	}
	return &UploadLog{log: logger.With("component", "upload")}
}

func (u *UploadLog) FileReceived(name string, size int64, target string) {
	u.log.Info("file received", "event", "file_received", "file", name, "size", size, "target", target)
}

func (u *UploadLog) ParseStart(path string) {
	u.log.Debug("parse start", "event", "parse_start", "path", path)
}

func (u *UploadLog) ParseSuccess(path, bundleID, version string) {
	u.log.Info("parse success", "event", "parse_success", "path", path, "bundle_id", bundleID, "version", version)
}

func (u *UploadLog) ParseError(path string, err error) {
	u.log.Warn("parse error", "event", "parse_error", "path", path, "error", err)
}

func (u *UploadLog) Processing(subject, msg string) {
	u.log.Info(msg, "event", "file_processing", "subject", subject)
}

func (u *UploadLog) Cleanup(path, reason string) {
	u.log.Info("file cleanup", "event", "file_cleanup", "path", path, "reason", reason)
}

// CleanupError is a warning: cleanup is best effort.
func (u *UploadLog) CleanupError(path string, err error) {
	u.log.Warn("file cleanup failed", "event", "file_cleanup_error", "path", path, "error", err)
}

func (u *UploadLog) VersionCreationStart(fileID, version, build string) {
	u.log.Info("version creation start", "event", "version_start", "file_id", fileID, "version", version, "build", build)
}

func (u *UploadLog) VersionCreationSuccess(path, versionID string) {
	u.log.Info("version created", "event", "version_success", "path", path, "version_id", versionID)
}

func (u *UploadLog) VersionCreationError(fileID string, err error) {
	u.log.Error("version creation failed", "event", "version_error", "file_id", fileID, "error", err)
}
