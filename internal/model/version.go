package model

import "time"

// VersionStatus is informational; transitions are not enforced.
type VersionStatus string

const (
	VersionActive   VersionStatus = "active"
	VersionDraft    VersionStatus = "draft"
	VersionArchived VersionStatus = "archived"
)

// Valid reports whether s is one of the known statuses.
func (s VersionStatus) Valid() bool {
	switch s {
	case VersionActive, VersionDraft, VersionArchived:
		return true
	}
	return false
}

// Version is one confirmed binary of an application.
type Version struct {
	ID           string        `json:"id"`
	AppID        string        `json:"appId"`
	Version      string        `json:"version"`
	BuildNumber  string        `json:"buildNumber"`
	ReleaseNotes string        `json:"updateContent"`
	UploadDate   time.Time     `json:"uploadDate"`
	Size         string        `json:"size"`
	Status       VersionStatus `json:"status"`
	FileName     string        `json:"fileName"`
	// FilePath is the permanent location on disk and never leaves the server.
	FilePath    string    `json:"-"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
	Platform    Platform  `json:"platform,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// VersionPatch lists the updatable version fields.
type VersionPatch struct {
	Version      *string
	BuildNumber  *string
	ReleaseNotes *string
	Status       *VersionStatus
	DownloadURL  *string
}

// IsEmpty reports whether the patch carries no fields.
func (p VersionPatch) IsEmpty() bool {
	return p.Version == nil && p.BuildNumber == nil && p.ReleaseNotes == nil &&
		p.Status == nil && p.DownloadURL == nil
}

// Apply copies the set fields onto v.
func (p VersionPatch) Apply(v *Version) {
	if p.Version != nil {
		v.Version = *p.Version
	}
	if p.BuildNumber != nil {
		v.BuildNumber = *p.BuildNumber
	}
	if p.ReleaseNotes != nil {
		v.ReleaseNotes = *p.ReleaseNotes
	}
	if p.Status != nil {
		v.Status = *p.Status
	}
	if p.DownloadURL != nil {
		v.DownloadURL = *p.DownloadURL
	}
}
