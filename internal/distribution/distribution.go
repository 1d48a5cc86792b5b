// Package distribution serves the public, unauthenticated surface: resolving a
// download key, listing its version history, and rendering the iOS OTA
// install manifest.
package distribution

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"strings"

	"howett.net/plist"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
	"github.com/dharsanguruparan/AppCenter/internal/model"
)

// Catalog is the read side the responder needs.
type Catalog interface {
	GetAppByDownloadKey(ctx context.Context, downloadKey string) (*model.Application, error)
	GetVersion(ctx context.Context, id string) (*model.Version, error)
	ListVersions(ctx context.Context, appID string) ([]*model.Version, error)
}

// Cache memoizes download-key resolution. Implementations swallow their own
// errors; a miss simply falls through to the catalog.
type Cache interface {
	Get(ctx context.Context, downloadKey string) (*model.Application, bool)
	Set(ctx context.Context, app *model.Application)
	Invalidate(ctx context.Context, downloadKey string)
}

// Service is the Download/Manifest Responder.
type Service struct {
	catalog Catalog
	cache   Cache
	logger  *slog.Logger
}

// New constructs a Service. cache may be nil.
func New(catalog Catalog, cache Cache, logger *slog.Logger) *Service {
	return &Service{catalog: catalog, cache: cache, logger: logger.With("component", "distribution")}
}

// Resolve returns the application published under downloadKey.
func (s *Service) Resolve(ctx context.Context, downloadKey string) (*model.Application, error) {
	if s.cache != nil {
		if app, ok := s.cache.Get(ctx, downloadKey); ok {
			return app, nil
		}
	}
	app, err := s.catalog.GetAppByDownloadKey(ctx, downloadKey)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, app)
	}
	return app, nil
}

// Lookup resolves downloadKey to the view safe to show without authentication.
func (s *Service) Lookup(ctx context.Context, downloadKey string) (*model.PublicApplication, error) {
	app, err := s.Resolve(ctx, downloadKey)
	if err != nil {
		return nil, err
	}
	return app.Public(), nil
}

// ListVersionHistory lists the versions of the application behind downloadKey.
func (s *Service) ListVersionHistory(ctx context.Context, downloadKey string) ([]*model.Version, error) {
	app, err := s.Resolve(ctx, downloadKey)
	if err != nil {
		return nil, err
	}
	return s.catalog.ListVersions(ctx, app.ID)
}

// Manifest is a rendered install manifest.
type Manifest struct {
	Body     []byte
	Filename string
}

// InstallManifest resolves downloadKey and renders its manifest. A versionID
// that does not belong to the application is ignored.
func (s *Service) InstallManifest(ctx context.Context, downloadKey, versionID, requestHost string) (*Manifest, error) {
	app, err := s.Resolve(ctx, downloadKey)
	if err != nil {
		return nil, err
	}
	var override *model.Version
	if versionID != "" {
		v, err := s.catalog.GetVersion(ctx, versionID)
		switch {
		case err == nil && v.AppID == app.ID:
			override = v
		case err != nil && !errors.Is(err, apperr.ErrVersionNotFound):
			return nil, err
		}
	}
	body, err := BuildPlist(app, override, requestHost)
	if err != nil {
		return nil, err
	}
	return &Manifest{Body: body, Filename: app.DisplayName() + ".plist"}, nil
}

type manifest struct {
	Items []manifestItem `plist:"items"`
}

type manifestItem struct {
	Assets   []manifestAsset  `plist:"assets"`
	Metadata manifestMetadata `plist:"metadata"`
}

type manifestAsset struct {
	Kind string `plist:"kind"`
	URL  string `plist:"url"`
}

type manifestMetadata struct {
	BundleIdentifier string `plist:"bundle-identifier"`
	BundleVersion    string `plist:"bundle-version"`
	Kind             string `plist:"kind"`
	Title            string `plist:"title"`
}

// BuildPlist renders the OTA manifest for an iOS application. When v is set
// its version and download URL replace the application's current ones; the
// title always comes from the application.
func BuildPlist(app *model.Application, v *model.Version, requestHost string) ([]byte, error) {
	if app.Platform != model.PlatformIOS {
		return nil, apperr.ErrUnsupportedPlatform
	}
	version, downloadURL := app.Version, app.DownloadURL
	if v != nil {
		version, downloadURL = v.Version, v.DownloadURL
	}
	doc := manifest{Items: []manifestItem{{
		Assets: []manifestAsset{{Kind: "software-package", URL: InstallURL(downloadURL, requestHost)}},
		Metadata: manifestMetadata{
			BundleIdentifier: app.BundleID,
			BundleVersion:    version,
			Kind:             "software",
			Title:            app.DisplayName(),
		},
	}}}
	out, err := plist.MarshalIndent(doc, plist.XMLFormat, "  ")
	if err != nil {
		return nil, apperr.ErrInternal.Wrap(err)
	}
	return out, nil
}

// InstallURL makes a package URL usable by the iOS installer: a loopback host
// is replaced by the host the device reached us on, and the scheme is forced
// to https.
func InstallURL(raw, requestHost string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	if isLoopback(u.Hostname()) && requestHost != "" {
		host := requestHost
		if h, _, err := net.SplitHostPort(requestHost); err == nil {
			host = h
		}
		if port := u.Port(); port != "" {
			host = net.JoinHostPort(host, port)
		}
		u.Host = host
	}
	u.Scheme = "https"
	return u.String()
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
