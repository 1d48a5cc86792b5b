package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
	"github.com/dharsanguruparan/AppCenter/internal/model"
)

func seedApp(t *testing.T, m *MemoryStore, id, downloadKey string) *model.Application {
	t.Helper()
	app := &model.Application{ID: id, Name: id, AppKey: "key-" + id, DownloadKey: downloadKey, Platform: model.PlatformIOS, OwnerID: "owner"}
	if err := m.CreateApp(context.Background(), app); err != nil {
		t.Fatalf("CreateApp %s: %v", id, err)
	}
	return app
}

func TestCreateAppRejectsDuplicateDownloadKey(t *testing.T) {
	m := NewMemoryStore()
	seedApp(t, m, "a1", "ABC123")
	err := m.CreateApp(context.Background(), &model.Application{ID: "a2", AppKey: "other", DownloadKey: "ABC123"})
	if !errors.Is(err, apperr.ErrDuplicateDownloadKey) {
		t.Fatalf("expected duplicate download key, got %v", err)
	}
	got, err := m.GetAppByDownloadKey(context.Background(), "ABC123")
	if err != nil || got.ID != "a1" {
		t.Fatalf("first application affected: %+v, %v", got, err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	m := NewMemoryStore()
	seedApp(t, m, "a1", "K1")
	got, _ := m.GetApp(context.Background(), "a1")
	got.Name = "mutated"
	again, _ := m.GetApp(context.Background(), "a1")
	if again.Name != "a1" {
		t.Fatalf("internal state mutated through returned copy")
	}
}

func TestUpdateAppDownloadKeyUniqueness(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	seedApp(t, m, "a1", "K1")
	seedApp(t, m, "a2", "K2")

	taken := "K2"
	if _, err := m.UpdateApp(ctx, "a1", model.ApplicationPatch{DownloadKey: &taken}); !errors.Is(err, apperr.ErrDuplicateDownloadKey) {
		t.Fatalf("expected conflict, got %v", err)
	}
	own := "K1"
	if _, err := m.UpdateApp(ctx, "a1", model.ApplicationPatch{DownloadKey: &own}); err != nil {
		t.Fatalf("re-setting own key: %v", err)
	}
	if _, err := m.UpdateApp(ctx, "missing", model.ApplicationPatch{DownloadKey: &own}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteAppCascadesVersions(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	seedApp(t, m, "a1", "K1")
	seedApp(t, m, "a2", "K2")
	for i, id := range []string{"v1", "v2", "v3"} {
		v := &model.Version{ID: id, AppID: "a1", Version: "1.0", BuildNumber: string(rune('1' + i))}
		if err := m.CreateVersion(ctx, v); err != nil {
			t.Fatalf("CreateVersion: %v", err)
		}
	}
	if err := m.CreateVersion(ctx, &model.Version{ID: "other", AppID: "a2", Version: "1.0", BuildNumber: "1"}); err != nil {
		t.Fatalf("CreateVersion: %v", err)
	}
	if err := m.DeleteApp(ctx, "a1"); err != nil {
		t.Fatalf("DeleteApp: %v", err)
	}
	if vs, _ := m.ListVersions(ctx, "a1"); len(vs) != 0 {
		t.Fatalf("versions survived cascade: %d", len(vs))
	}
	if vs, _ := m.ListVersions(ctx, "a2"); len(vs) != 1 {
		t.Fatalf("unrelated versions removed")
	}
}

func TestVersionsNewestFirstAndUnique(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	seedApp(t, m, "a1", "K1")
	for _, b := range []string{"1", "2", "3"} {
		if err := m.CreateVersion(ctx, &model.Version{ID: "v" + b, AppID: "a1", Version: "1.0", BuildNumber: b}); err != nil {
			t.Fatal(err)
		}
	}
	vs, _ := m.ListVersions(ctx, "a1")
	if len(vs) != 3 || vs[0].ID != "v3" || vs[2].ID != "v1" {
		t.Fatalf("unexpected order: %v, %v, %v", vs[0].ID, vs[1].ID, vs[2].ID)
	}
	err := m.CreateVersion(ctx, &model.Version{ID: "dup", AppID: "a1", Version: "1.0", BuildNumber: "2"})
	if !errors.Is(err, apperr.ErrDuplicateVersion) {
		t.Fatalf("expected duplicate version, got %v", err)
	}
}

func TestConfirmFileRunsMoveOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	if err := m.CreateFile(ctx, &model.StagedFile{ID: "f1", Status: model.FileTemporary, UploadDate: time.Now()}); err != nil {
		t.Fatal(err)
	}
	var moves int32
	var wg sync.WaitGroup
	var successes int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.ConfirmFile(ctx, "f1", "/final/app.ipa", func(*model.StagedFile) error {
				atomic.AddInt32(&moves, 1)
				return nil
			})
			if err == nil {
				atomic.AddInt32(&successes, 1)
			} else if !errors.Is(err, apperr.ErrFileNotStaged) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if moves != 1 || successes != 1 {
		t.Fatalf("moves=%d successes=%d, want 1/1", moves, successes)
	}
	f, _ := m.GetFile(ctx, "f1")
	if f.Status != model.FileConfirmed || f.FinalPath != "/final/app.ipa" {
		t.Fatalf("unexpected record %+v", f)
	}
}

func TestConfirmFileMoveDoesNotBlockStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	seedApp(t, m, "a1", "K1")
	_ = m.CreateFile(ctx, &model.StagedFile{ID: "f1", Status: model.FileTemporary})
	_ = m.CreateFile(ctx, &model.StagedFile{ID: "f2", Status: model.FileTemporary})

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := m.ConfirmFile(ctx, "f1", "/final/a.ipa", func(*model.StagedFile) error {
			close(started)
			<-release
			return nil
		})
		done <- err
	}()
	<-started

	reads := make(chan error, 1)
	go func() {
		if _, err := m.GetApp(ctx, "a1"); err != nil {
			reads <- err
			return
		}
		if _, err := m.GetFile(ctx, "f2"); err != nil {
			reads <- err
			return
		}
		_, err := m.ConfirmFile(ctx, "f2", "/final/b.ipa", func(*model.StagedFile) error { return nil })
		reads <- err
	}()
	select {
	case err := <-reads:
		if err != nil {
			t.Fatalf("store access during move: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("store blocked while another file was being moved")
	}

	if _, err := m.ConfirmFile(ctx, "f1", "/final/a.ipa", func(*model.StagedFile) error { return nil }); !errors.Is(err, apperr.ErrFileNotStaged) {
		t.Fatalf("second confirm during move: %v", err)
	}
	if _, ok, _ := m.ExpireFile(ctx, "f1"); ok {
		t.Fatalf("file expired while being confirmed")
	}
	if _, err := m.DeleteFile(ctx, "f1"); !errors.Is(err, apperr.ErrFileNotStaged) {
		t.Fatalf("delete during move: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("ConfirmFile: %v", err)
	}
	f, _ := m.GetFile(ctx, "f1")
	if f.Status != model.FileConfirmed {
		t.Fatalf("status = %s, want confirmed", f.Status)
	}
}

func TestConfirmFileMoveFailureKeepsTemporary(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	_ = m.CreateFile(ctx, &model.StagedFile{ID: "f1", Status: model.FileTemporary})
	boom := errors.New("disk full")
	if _, err := m.ConfirmFile(ctx, "f1", "/final", func(*model.StagedFile) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected move error, got %v", err)
	}
	f, _ := m.GetFile(ctx, "f1")
	if f.Status != model.FileTemporary || f.FinalPath != "" {
		t.Fatalf("record changed after failed move: %+v", f)
	}
	if _, err := m.ConfirmFile(ctx, "f1", "/final", func(*model.StagedFile) error { return nil }); err != nil {
		t.Fatalf("retry after failed move: %v", err)
	}
}

func TestExpireFileOnlyFromTemporary(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	_ = m.CreateFile(ctx, &model.StagedFile{ID: "f1", Status: model.FileTemporary})
	_ = m.CreateFile(ctx, &model.StagedFile{ID: "f2", Status: model.FileConfirmed})
	if _, ok, _ := m.ExpireFile(ctx, "f1"); !ok {
		t.Fatalf("temporary file not expired")
	}
	if _, ok, _ := m.ExpireFile(ctx, "f1"); ok {
		t.Fatalf("expired twice")
	}
	if _, ok, _ := m.ExpireFile(ctx, "f2"); ok {
		t.Fatalf("confirmed file expired")
	}
}

func TestDeleteUserRefusedWhileOwningApps(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	_ = m.CreateUser(ctx, &model.User{ID: "owner", Username: "o", Email: "o@x", Role: model.RoleAdmin, IsActive: true})
	seedApp(t, m, "a1", "K1")
	if err := m.DeleteUser(ctx, "owner"); !errors.Is(err, apperr.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
	_ = m.DeleteApp(ctx, "a1")
	if err := m.DeleteUser(ctx, "owner"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
}

func TestUserUniquenessAndStats(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	_ = m.CreateUser(ctx, &model.User{ID: "u1", Username: "alice", Email: "a@x", Role: model.RoleSuperAdmin, IsActive: true})
	_ = m.CreateUser(ctx, &model.User{ID: "u2", Username: "bob", Email: "b@x", Role: model.RoleUser})
	if err := m.CreateUser(ctx, &model.User{ID: "u3", Username: "alice", Email: "c@x"}); !errors.Is(err, apperr.ErrUserExists) {
		t.Fatalf("expected duplicate username, got %v", err)
	}
	email := "a@x"
	if _, err := m.UpdateUser(ctx, "u2", model.UserPatch{Email: &email}); !errors.Is(err, apperr.ErrUserExists) {
		t.Fatalf("expected duplicate email, got %v", err)
	}
	u, err := m.GetUserByLogin(ctx, "b@x")
	if err != nil || u.ID != "u2" {
		t.Fatalf("login by email: %+v %v", u, err)
	}
	st, _ := m.UserStats(ctx)
	want := model.UserStats{Total: 2, SuperAdmins: 1, Users: 1, Active: 1, Inactive: 1}
	if st != want {
		t.Fatalf("stats = %+v, want %+v", st, want)
	}
}
