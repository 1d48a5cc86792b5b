package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
)

const infoPlistXML = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>CFBundleIdentifier</key><string>com.example.field</string>
	<key>CFBundleName</key><string>Field</string>
	<key>CFBundleDisplayName</key><string>Field Service</string>
	<key>CFBundleShortVersionString</key><string>2.3.1</string>
	<key>CFBundleVersion</key><string>417</string>
	<key>CFBundleIcons</key>
	<dict>
		<key>CFBundlePrimaryIcon</key>
		<dict>
			<key>CFBundleIconFiles</key>
			<array><string>AppIcon60x60</string></array>
		</dict>
	</dict>
</dict>
</plist>`

func writeIPA(t *testing.T, entries map[string][]byte) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	path := filepath.Join(t.TempDir(), "Field.ipa")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write ipa: %v", err)
	}
	return path
}

func TestParseIPA(t *testing.T) {
	small := []byte("\x89PNG small")
	large := []byte("\x89PNG large icon bytes")
	path := writeIPA(t, map[string][]byte{
		"Payload/Field.app/Info.plist":          []byte(infoPlistXML),
		"Payload/Field.app/AppIcon60x60@2x.png": small,
		"Payload/Field.app/AppIcon60x60@3x.png": large,
		"Payload/Field.app/Other.png":           []byte("\x89PNG unrelated but the biggest file here"),
		"Payload/Field.app/Frameworks/x.plist":  []byte("ignored"),
	})

	meta, err := New().Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if meta.BundleID != "com.example.field" {
		t.Errorf("BundleID = %q", meta.BundleID)
	}
	if meta.DisplayName != "Field Service" {
		t.Errorf("DisplayName = %q", meta.DisplayName)
	}
	if meta.VersionName != "2.3.1" || meta.VersionCode != "417" {
		t.Errorf("version = %q (%q)", meta.VersionName, meta.VersionCode)
	}
	icon, ok := meta.Icon.([]byte)
	if !ok || !bytes.Equal(icon, large) {
		t.Errorf("Icon = %q, want the largest declared icon", meta.Icon)
	}
}

func TestParseIPAWithoutInfoPlist(t *testing.T) {
	path := writeIPA(t, map[string][]byte{"Payload/readme.txt": []byte("x")})
	_, err := New().Parse(context.Background(), path)
	if !errors.Is(err, apperr.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestParseCorruptArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.apk")
	if err := os.WriteFile(path, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := New().Parse(context.Background(), path)
	if !errors.Is(err, apperr.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestParseRejectsUnknownExtension(t *testing.T) {
	_, err := New().Parse(context.Background(), "/tmp/app.zip")
	if !errors.Is(err, apperr.ErrUnsupportedFileType) {
		t.Fatalf("expected ErrUnsupportedFileType, got %v", err)
	}
}

func TestParseHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Parse(ctx, "/tmp/app.ipa"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
