// Package repository holds the persistence contracts shared by the services and
// their PostgreSQL implementation. internal/storage provides an in-memory
// implementation of the same interfaces.
package repository

import (
	"context"
	"time"

	"github.com/dharsanguruparan/AppCenter/internal/model"
)

// Apps persists applications. Unique violations on the download key surface as
// apperr.ErrDuplicateDownloadKey; missing rows as apperr.ErrNotFound.
type Apps interface {
	CreateApp(ctx context.Context, app *model.Application) error
	GetApp(ctx context.Context, id string) (*model.Application, error)
	GetAppByAppKey(ctx context.Context, appKey string) (*model.Application, error)
	GetAppByDownloadKey(ctx context.Context, downloadKey string) (*model.Application, error)
	// DownloadKeyExists ignores the application identified by excludeID.
	DownloadKeyExists(ctx context.Context, downloadKey, excludeID string) (bool, error)
	AppKeyExists(ctx context.Context, appKey string) (bool, error)
	UpdateApp(ctx context.Context, id string, patch model.ApplicationPatch) (*model.Application, error)
	// DeleteApp removes the row and, by cascade, its versions.
	DeleteApp(ctx context.Context, id string) error
	ListApps(ctx context.Context) ([]*model.Application, error)
	ListAppsByOwner(ctx context.Context, ownerID string) ([]*model.Application, error)
	CountAppsByOwner(ctx context.Context, ownerID string) (int, error)
}

// Versions persists version records. Missing rows surface as
// apperr.ErrVersionNotFound; a repeated (app, version, build) triple as
// apperr.ErrDuplicateVersion.
type Versions interface {
	CreateVersion(ctx context.Context, v *model.Version) error
	GetVersion(ctx context.Context, id string) (*model.Version, error)
	UpdateVersion(ctx context.Context, id string, patch model.VersionPatch) (*model.Version, error)
	DeleteVersion(ctx context.Context, id string) error
	// ListVersions orders newest-created first.
	ListVersions(ctx context.Context, appID string) ([]*model.Version, error)
	VersionExists(ctx context.Context, appID, version, buildNumber string) (bool, error)
}

// Files persists staged uploads. Missing rows surface as apperr.ErrFileNotFound.
type Files interface {
	CreateFile(ctx context.Context, f *model.StagedFile) error
	GetFile(ctx context.Context, id string) (*model.StagedFile, error)
	// ConfirmFile locks the record, requires status temporary, runs move and
	// only then records the confirmed status and finalPath. When move fails
	// the record is left untouched. Returns apperr.ErrFileNotStaged when the
	// record is missing or no longer temporary.
	ConfirmFile(ctx context.Context, id, finalPath string, move func(*model.StagedFile) error) (*model.StagedFile, error)
	ListTemporaryBefore(ctx context.Context, cutoff time.Time) ([]*model.StagedFile, error)
	// ExpireFile moves a temporary record to expired. ok is false when the
	// record was already confirmed, expired or deleted.
	ExpireFile(ctx context.Context, id string) (f *model.StagedFile, ok bool, err error)
	// DeleteFile removes the row and returns what it held.
	DeleteFile(ctx context.Context, id string) (*model.StagedFile, error)
}

// Users persists accounts. Missing rows surface as apperr.ErrUserNotFound and
// username/email collisions as apperr.ErrUserExists.
type Users interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	// GetUserByLogin matches either the username or the email.
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	UsernameTaken(ctx context.Context, username, excludeID string) (bool, error)
	EmailTaken(ctx context.Context, email, excludeID string) (bool, error)
	UpdateUser(ctx context.Context, id string, patch model.UserPatch) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]*model.User, error)
	ListUsersByCreator(ctx context.Context, creatorID string) ([]*model.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	UserStats(ctx context.Context) (model.UserStats, error)
}

// Store bundles every repository behind one handle.
type Store interface {
	Apps
	Versions
	Files
	Users
	Ping(ctx context.Context) error
}
