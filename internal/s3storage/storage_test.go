package s3storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dharsanguruparan/AppCenter/internal/config"
)

func TestObjectKey(t *testing.T) {
	root := filepath.Join(t.TempDir(), "uploads")
	cases := []struct {
		path string
		want string
		ok   bool
	}{
		{filepath.Join(root, "app-1", "1700000000000_x.ipa"), "app-1/1700000000000_x.ipa", true},
		{root, "", false},
		{filepath.Join(filepath.Dir(root), "elsewhere.apk"), "", false},
	}
	for _, tc := range cases {
		got, ok := ObjectKey(root, tc.path)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ObjectKey(%q) = %q, %v; want %q, %v", tc.path, got, ok, tc.want, tc.ok)
		}
	}
}

func TestContentType(t *testing.T) {
	if got := contentType("a/b.APK"); got != "application/vnd.android.package-archive" {
		t.Errorf("apk content type = %q", got)
	}
	if got := contentType("a/b.ipa"); got != "application/octet-stream" {
		t.Errorf("ipa content type = %q", got)
	}
}

func TestPresignURLIsLocal(t *testing.T) {
	s, err := New(&config.Config{
		S3Endpoint:  "localhost:9000",
		S3AccessKey: "minio",
		S3SecretKey: "minio123",
		S3Region:    "us-east-1",
		S3Bucket:    "appcenter-binaries",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Presigning is computed client-side when the region is configured.
	u, err := s.PresignURL(context.Background(), "app-1/build.apk", "Field 1.0.apk", time.Hour)
	if err != nil {
		t.Fatalf("PresignURL: %v", err)
	}
	if !strings.HasPrefix(u, "http://localhost:9000/appcenter-binaries/app-1/build.apk?") {
		t.Fatalf("unexpected url %q", u)
	}
	if !strings.Contains(u, "X-Amz-Signature=") || !strings.Contains(u, "response-content-disposition=") {
		t.Fatalf("url missing signature or disposition: %q", u)
	}
}

func TestRemoveNothing(t *testing.T) {
	s, err := New(&config.Config{S3Endpoint: "localhost:9000", S3Bucket: "b", S3Region: "us-east-1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Remove(context.Background(), nil); err != nil {
		t.Fatalf("Remove(nil): %v", err)
	}
}
