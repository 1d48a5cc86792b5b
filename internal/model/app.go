// Package model contains the struct definitions shared across packages: the
// catalog entities, staged uploads and user accounts.
package model

import (
	"strings"
	"time"
)

// Platform tags an application or version with its target OS.
type Platform string

const (
	PlatformIOS     Platform = "iOS"
	PlatformAndroid Platform = "Android"
)

// PlatformFromFilename infers the platform from an upload's extension.
func PlatformFromFilename(name string) Platform {
	if strings.HasSuffix(strings.ToLower(name), ".ipa") {
		return PlatformIOS
	}
	return PlatformAndroid
}

// Key returns the lower-case key used by icon fallbacks and parsed metadata.
func (p Platform) Key() string {
	if p == PlatformIOS {
		return "ios"
	}
	return "android"
}

// Application is a distributable app. The Version/BuildNumber/UploadDate/
// DownloadURL fields mirror its latest confirmed version.
type Application struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// AppName is the display name parsed from the binary.
	AppName     string     `json:"appName,omitempty"`
	AppKey      string     `json:"appKey"`
	DownloadKey string     `json:"downloadKey"`
	Platform    Platform   `json:"system"`
	BundleID    string     `json:"bundleId"`
	Version     string     `json:"version"`
	BuildNumber string     `json:"buildNumber"`
	UploadDate  *time.Time `json:"uploadDate,omitempty"`
	DownloadURL string     `json:"downloadUrl,omitempty"`
	Icon        string     `json:"icon"`
	Description string     `json:"description,omitempty"`
	OwnerID     string     `json:"ownerId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// DisplayName prefers the parsed name over the user-editable one.
func (a *Application) DisplayName() string {
	if a.AppName != "" {
		return a.AppName
	}
	return a.Name
}

// PublicApplication is the view served on unauthenticated download pages. The
// automation key and owner are left out.
type PublicApplication struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	AppName     string     `json:"appName,omitempty"`
	DownloadKey string     `json:"downloadKey"`
	Platform    Platform   `json:"system"`
	BundleID    string     `json:"bundleId"`
	Version     string     `json:"version"`
	BuildNumber string     `json:"buildNumber"`
	UploadDate  *time.Time `json:"uploadDate,omitempty"`
	DownloadURL string     `json:"downloadUrl,omitempty"`
	Icon        string     `json:"icon"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Public projects a onto its public view.
func (a *Application) Public() *PublicApplication {
	return &PublicApplication{
		ID:          a.ID,
		Name:        a.Name,
		AppName:     a.AppName,
		DownloadKey: a.DownloadKey,
		Platform:    a.Platform,
		BundleID:    a.BundleID,
		Version:     a.Version,
		BuildNumber: a.BuildNumber,
		UploadDate:  a.UploadDate,
		DownloadURL: a.DownloadURL,
		Icon:        a.Icon,
		Description: a.Description,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// ApplicationPatch lists the updatable application fields. Nil fields are left
// untouched.
type ApplicationPatch struct {
	Name        *string
	AppName     *string
	DownloadKey *string
	Platform    *Platform
	BundleID    *string
	Version     *string
	BuildNumber *string
	UploadDate  *time.Time
	DownloadURL *string
	Icon        *string
	Description *string
}

// IsEmpty reports whether the patch carries no fields.
func (p ApplicationPatch) IsEmpty() bool {
	return p.Name == nil && p.AppName == nil && p.DownloadKey == nil && p.Platform == nil &&
		p.BundleID == nil && p.Version == nil && p.BuildNumber == nil && p.UploadDate == nil &&
		p.DownloadURL == nil && p.Icon == nil && p.Description == nil
}

// Apply copies the set fields onto app.
func (p ApplicationPatch) Apply(app *Application) {
	if p.Name != nil {
		app.Name = *p.Name
	}
	if p.AppName != nil {
		app.AppName = *p.AppName
	}
	if p.DownloadKey != nil {
		app.DownloadKey = *p.DownloadKey
	}
	if p.Platform != nil {
		app.Platform = *p.Platform
	}
	if p.BundleID != nil {
		app.BundleID = *p.BundleID
	}
	if p.Version != nil {
		app.Version = *p.Version
	}
	if p.BuildNumber != nil {
		app.BuildNumber = *p.BuildNumber
	}
	if p.UploadDate != nil {
		t := *p.UploadDate
		app.UploadDate = &t
	}
	if p.DownloadURL != nil {
		app.DownloadURL = *p.DownloadURL
	}
	if p.Icon != nil {
		app.Icon = *p.Icon
	}
	if p.Description != nil {
		app.Description = *p.Description
	}
}
