// Package extractor reads the metadata embedded in mobile binaries: bundle
// identifier, display name, version string, build number and the app icon.
package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
)

// Metadata is what a binary says about itself. Icon holds raw bytes, a base64
// string or a data URL; nil when the binary carries no icon.
type Metadata struct {
	DisplayName string
	BundleID    string
	VersionName string
	VersionCode string
	Icon        any
}

// Extractor parses a binary on disk.
type Extractor interface {
	Parse(ctx context.Context, path string) (*Metadata, error)
}

// Binary dispatches on the file extension to the IPA or APK parser.
type Binary struct{}

// New returns the default extractor.
func New() *Binary { return &Binary{} }

// Parse implements Extractor. Failures wrap apperr.ErrParse.
func (b *Binary) Parse(ctx context.Context, path string) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		meta *Metadata
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ipa":
		meta, err = parseIPA(path)
	case ".apk":
		meta, err = parseAPK(path)
	default:
		return nil, apperr.ErrUnsupportedFileType
	}
	if err != nil {
		return nil, apperr.ErrParse.Wrap(fmt.Errorf("parse %s: %w", filepath.Base(path), err))
	}
	return meta, nil
}
