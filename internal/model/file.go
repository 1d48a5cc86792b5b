package model

import "time"

// FileStatus describes the staged upload lifecycle:
// temporary -> confirmed, or temporary -> expired.
type FileStatus string

const (
	FileTemporary FileStatus = "temporary"
	FileConfirmed FileStatus = "confirmed"
	FileExpired   FileStatus = "expired"
)

// ParsedInfo is the metadata extracted from an uploaded binary.
type ParsedInfo struct {
	Name        string `json:"name"`
	BundleID    string `json:"bundleId"`
	VersionName string `json:"versionName"`
	VersionCode string `json:"versionCode"`
	Platform    string `json:"platform"`
	Icon        string `json:"icon"`
	IconError   string `json:"iconError,omitempty"`
}

// StagedFile holds metadata about an uploaded binary awaiting confirmation.
type StagedFile struct {
	ID           string `json:"id"`
	OriginalName string `json:"originalName"`
	// Paths are omitted from JSON output.
	TempPath   string      `json:"-"`
	FinalPath  string      `json:"-"`
	Size       int64       `json:"size"`
	MimeType   string      `json:"mimeType,omitempty"`
	UploadDate time.Time   `json:"uploadDate"`
	Status     FileStatus  `json:"status"`
	ParsedInfo *ParsedInfo `json:"parsedInfo,omitempty"`
	// UploadedBy is the account that staged the file. Only it, or a super
	// admin, may read, delete or confirm the file.
	UploadedBy string    `json:"uploadedBy,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// AccessibleBy reports whether u may act on the staged file.
func (f *StagedFile) AccessibleBy(u *User) bool {
	return u != nil && (u.Role == RoleSuperAdmin || (f.UploadedBy != "" && f.UploadedBy == u.ID))
}

// Path returns wherever the bytes currently live.
func (f *StagedFile) Path() string {
	if f.FinalPath != "" {
		return f.FinalPath
	}
	return f.TempPath
}
