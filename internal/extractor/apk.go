package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"strconv"

	"github.com/shogo82148/androidbinary/apk"
)

func parseAPK(filename string) (*Metadata, error) {
	pkg, err := apk.OpenFile(filename)
	if err != nil {
		return nil, fmt.Errorf("open apk: %w", err)
	}
	defer pkg.Close()

	packageName := pkg.PackageName()
	if packageName == "" {
		return nil, errors.New("manifest has no package name")
	}
	manifest := pkg.Manifest()
	meta := &Metadata{BundleID: packageName}
	if name, err := manifest.VersionName.String(); err == nil {
		meta.VersionName = name
	}
	if code, err := manifest.VersionCode.Int32(); err == nil {
		meta.VersionCode = strconv.FormatInt(int64(code), 10)
	}
	if label, err := pkg.Label(nil); err == nil {
		meta.DisplayName = label
	}
	// Adaptive icons decode to nothing; the caller falls back to a placeholder.
	if img, err := pkg.Icon(nil); err == nil && img != nil {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err == nil {
			meta.Icon = buf.Bytes()
		}
	}
	return meta, nil
}
