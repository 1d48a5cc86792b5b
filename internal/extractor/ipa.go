package extractor

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"howett.net/plist"
)

// infoPlist holds the Info.plist keys we care about.
type infoPlist struct {
	BundleIdentifier   string   `plist:"CFBundleIdentifier"`
	BundleDisplayName  string   `plist:"CFBundleDisplayName"`
	BundleName         string   `plist:"CFBundleName"`
	ShortVersionString string   `plist:"CFBundleShortVersionString"`
	BundleVersion      string   `plist:"CFBundleVersion"`
	IconFiles          []string `plist:"CFBundleIconFiles"`
	Icons              struct {
		Primary struct {
			Files []string `plist:"CFBundleIconFiles"`
		} `plist:"CFBundlePrimaryIcon"`
	} `plist:"CFBundleIcons"`
}

const maxIconBytes = 4 << 20

func parseIPA(filename string) (*Metadata, error) {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("open ipa: %w", err)
	}
	defer zr.Close()

	appDir, infoFile := findInfoPlist(zr.File)
	if infoFile == nil {
		return nil, errors.New("Payload/*.app/Info.plist not found")
	}
	data, err := readZipFile(infoFile, maxIconBytes)
	if err != nil {
		return nil, fmt.Errorf("read Info.plist: %w", err)
	}
	var info infoPlist
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode Info.plist: %w", err)
	}
	if info.BundleIdentifier == "" {
		return nil, errors.New("Info.plist has no CFBundleIdentifier")
	}

	meta := &Metadata{
		DisplayName: info.BundleDisplayName,
		BundleID:    info.BundleIdentifier,
		VersionName: info.ShortVersionString,
		VersionCode: info.BundleVersion,
	}
	if meta.DisplayName == "" {
		meta.DisplayName = info.BundleName
	}
	names := append(append([]string{}, info.Icons.Primary.Files...), info.IconFiles...)
	if f := findIcon(zr.File, appDir, names); f != nil {
		if b, err := readZipFile(f, maxIconBytes); err == nil {
			meta.Icon = b
		}
	}
	return meta, nil
}

// findInfoPlist locates Payload/<name>.app/Info.plist.
func findInfoPlist(files []*zip.File) (string, *zip.File) {
	for _, f := range files {
		parts := strings.Split(f.Name, "/")
		if len(parts) == 3 && parts[0] == "Payload" && strings.HasSuffix(parts[1], ".app") && parts[2] == "Info.plist" {
			return path.Join(parts[0], parts[1]), f
		}
	}
	return "", nil
}

// findIcon picks the largest PNG in appDir whose name starts with one of the
// declared icon names (AppIcon60x60 matches AppIcon60x60@2x.png).
func findIcon(files []*zip.File, appDir string, names []string) *zip.File {
	if len(names) == 0 {
		names = []string{"AppIcon", "Icon"}
	}
	var candidates []*zip.File
	for _, f := range files {
		if path.Dir(f.Name) != appDir || !strings.HasSuffix(strings.ToLower(f.Name), ".png") {
			continue
		}
		base := path.Base(f.Name)
		for _, n := range names {
			if strings.HasPrefix(base, strings.TrimSuffix(n, ".png")) {
				candidates = append(candidates, f)
				break
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].UncompressedSize64 > candidates[j].UncompressedSize64
	})
	return candidates[0]
}

func readZipFile(f *zip.File, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("%s exceeds %d bytes", f.Name, limit)
	}
	return b, nil
}
