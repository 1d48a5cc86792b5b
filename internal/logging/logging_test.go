package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestUploadLogEvents(t *testing.T) {
	var buf bytes.Buffer
	ul := NewUploadLog(NewWithWriter(&buf, "debug", "text"))

	ul.ParseStart("/tmp/app.ipa")
	ul.CleanupError("/tmp/app.ipa", errors.New("permission denied"))

	out := buf.String()
	for _, want := range []string{"event=parse_start", "event=file_cleanup_error", "component=upload", "permission denied"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	ul := NewUploadLog(NewWithWriter(&buf, "warn", "json"))
	ul.ParseStart("/tmp/app.apk")
	if buf.Len() != 0 {
		t.Fatalf("debug event logged at warn level: %s", buf.String())
	}
	ul.ParseError("/tmp/app.apk", errors.New("bad zip"))
	if !strings.Contains(buf.String(), `"event":"parse_error"`) {
		t.Fatalf("expected json parse_error event, got %s", buf.String())
	}
}
