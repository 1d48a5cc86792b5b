package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
	"github.com/dharsanguruparan/AppCenter/internal/logging"
	"github.com/dharsanguruparan/AppCenter/internal/model"
	"github.com/dharsanguruparan/AppCenter/internal/queue"
)

type fakeExpirer struct {
	ids []string
	ok  bool
	err error
}

func (f *fakeExpirer) Expire(_ context.Context, id string) (bool, error) {
	f.ids = append(f.ids, id)
	return f.ok, f.err
}

type fakeVersions map[string]*model.Version

func (f fakeVersions) GetVersion(_ context.Context, id string) (*model.Version, error) {
	if v, ok := f[id]; ok {
		return v, nil
	}
	return nil, apperr.ErrVersionNotFound
}

type fakeMirror struct {
	uploads map[string]string
	removed []string
	err     error
}

func (f *fakeMirror) Upload(_ context.Context, key, path string) error {
	if f.err != nil {
		return f.err
	}
	if f.uploads == nil {
		f.uploads = map[string]string{}
	}
	f.uploads[key] = path
	return nil
}

func (f *fakeMirror) Remove(_ context.Context, keys []string) error {
	f.removed = append(f.removed, keys...)
	return f.err
}

func TestHandleExpire(t *testing.T) {
	exp := &fakeExpirer{ok: true}
	p := NewProcessor(exp, fakeVersions{}, nil, "/data", logging.Discard())
	task, err := queue.NewExpireTask("f1")
	if err != nil {
		t.Fatalf("NewExpireTask: %v", err)
	}
	if err := p.Handler().ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if len(exp.ids) != 1 || exp.ids[0] != "f1" {
		t.Fatalf("expired %v", exp.ids)
	}

	exp.err = errors.New("db down")
	if err := p.ExpireStagedFile(context.Background(), "f2"); err == nil {
		t.Fatalf("expected store error to surface for retry")
	}
}

func TestMalformedPayloadSkipsRetry(t *testing.T) {
	p := NewProcessor(&fakeExpirer{}, fakeVersions{}, nil, "/data", logging.Discard())
	err := p.Handler().ProcessTask(context.Background(), asynq.NewTask(queue.MirrorVersionTask, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("err = %v, want SkipRetry", err)
	}
}

func TestMirrorVersion(t *testing.T) {
	root := filepath.Join(t.TempDir(), "uploads")
	mirror := &fakeMirror{}
	versions := fakeVersions{
		"v1": {ID: "v1", FilePath: filepath.Join(root, "app-1", "1_a.apk")},
		"v2": {ID: "v2", FilePath: "/elsewhere/b.apk"},
	}
	p := NewProcessor(&fakeExpirer{}, versions, mirror, root, logging.Discard())
	ctx := context.Background()

	if err := p.MirrorVersion(ctx, "v1"); err != nil {
		t.Fatalf("MirrorVersion: %v", err)
	}
	if mirror.uploads["app-1/1_a.apk"] != versions["v1"].FilePath {
		t.Fatalf("uploads = %v", mirror.uploads)
	}
	if err := p.MirrorVersion(ctx, "v2"); err != nil || len(mirror.uploads) != 1 {
		t.Fatalf("outside path: %v %v", err, mirror.uploads)
	}
	if err := p.MirrorVersion(ctx, "gone"); err != nil {
		t.Fatalf("deleted version should be skipped: %v", err)
	}

	mirror.err = errors.New("s3 down")
	if err := p.MirrorVersion(ctx, "v1"); err == nil {
		t.Fatalf("expected upload error")
	}
}

func TestRemoveObjects(t *testing.T) {
	mirror := &fakeMirror{}
	p := NewProcessor(&fakeExpirer{}, fakeVersions{}, mirror, "/data", logging.Discard())
	task, _ := queue.NewUnmirrorTask([]string{"a/1.ipa", "a/2.ipa"})
	if err := p.Handler().ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if len(mirror.removed) != 2 {
		t.Fatalf("removed = %v", mirror.removed)
	}

	noMirror := NewProcessor(&fakeExpirer{}, fakeVersions{}, nil, "/data", logging.Discard())
	if err := noMirror.RemoveObjects(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("without mirror: %v", err)
	}
}
