package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
	"github.com/dharsanguruparan/AppCenter/internal/auth"
	"github.com/dharsanguruparan/AppCenter/internal/config"
	"github.com/dharsanguruparan/AppCenter/internal/logging"
	"github.com/dharsanguruparan/AppCenter/internal/model"
	"github.com/dharsanguruparan/AppCenter/internal/storage"
)

type fixture struct {
	svc   *Service
	store *storage.MemoryStore
	root  *model.User
	admin *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	svc := New(store, store, auth.NewTokens([]byte("0123456789abcdef0123456789abcdef"), time.Hour), logging.Discard())
	ctx := context.Background()
	err := svc.EnsureDefaults(ctx,
		config.Account{Username: "root", Email: "root@example.com", Password: "secret1"},
		config.Account{Username: "manager", Email: "manager@example.com", Password: "secret2"},
	)
	if err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}
	root, err := store.GetUserByLogin(ctx, "root")
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	admin, err := store.GetUserByLogin(ctx, "manager")
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return &fixture{svc: svc, store: store, root: root, admin: admin}
}

func TestEnsureDefaultsIsIdempotent(t *testing.T) {
	f := newFixture(t)
	if f.root.Role != model.RoleSuperAdmin || f.admin.Role != model.RoleAdmin {
		t.Fatalf("roles = %s/%s", f.root.Role, f.admin.Role)
	}
	if f.admin.CreatedBy != f.root.ID {
		t.Fatalf("admin created_by = %q, want %q", f.admin.CreatedBy, f.root.ID)
	}
	err := f.svc.EnsureDefaults(context.Background(),
		config.Account{Username: "root", Email: "root@example.com", Password: "changed"},
		config.Account{Username: "manager", Email: "manager@example.com", Password: "changed"},
	)
	if err != nil {
		t.Fatalf("second EnsureDefaults: %v", err)
	}
	all, _ := f.store.ListUsers(context.Background())
	if len(all) != 2 {
		t.Fatalf("accounts = %d, want 2", len(all))
	}
	if _, err := f.svc.Authenticate(context.Background(), "root", "secret1"); err != nil {
		t.Fatalf("original password should still work: %v", err)
	}
}

func TestCreateRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, f.admin, Credentials{Username: "x1x", Email: "x@example.com", Password: "secret", Role: model.RoleAdmin}); !errors.Is(err, apperr.ErrPermission) {
		t.Errorf("admin create: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.root, Credentials{Username: "x1x", Email: "x@example.com", Password: "secret", Role: model.RoleUser}); !errors.Is(err, apperr.ErrInvalidRole) {
		t.Errorf("create user role: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.root, Credentials{Username: "x1x", Email: "x@example.com", Password: "12345", Role: model.RoleAdmin}); !errors.Is(err, apperr.ErrPasswordTooShort) {
		t.Errorf("short password: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.root, Credentials{Username: "manager", Email: "new@example.com", Password: "secret", Role: model.RoleAdmin}); !errors.Is(err, apperr.ErrUserExists) {
		t.Errorf("duplicate username: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.root, Credentials{Username: "x1x", Email: "not-an-email", Password: "secret", Role: model.RoleAdmin}); !errors.Is(err, apperr.ErrUserInvalid) {
		t.Errorf("bad email: %v", err)
	}

	u, err := f.svc.Create(ctx, f.root, Credentials{Username: "  ops  ", Email: "ops@example.com", Password: "secret", Role: model.RoleAdmin})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.Username != "ops" || u.CreatedBy != f.root.ID || !u.IsActive {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, Credentials{Username: "tester", Email: "tester@example.com", Password: "hunter2", Role: model.RoleSuperAdmin})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Role != model.RoleUser {
		t.Fatalf("registered role = %s, want user", u.Role)
	}
	if _, err := f.svc.Register(ctx, Credentials{Username: "other", Email: "tester@example.com", Password: "hunter2"}); !errors.Is(err, apperr.ErrUserExists) {
		t.Fatalf("duplicate email: %v", err)
	}

	for _, login := range []string{"tester", "tester@example.com"} {
		sess, err := f.svc.Authenticate(ctx, login, "hunter2")
		if err != nil {
			t.Fatalf("Authenticate(%q): %v", login, err)
		}
		if sess.Token == "" || sess.User.ID != u.ID || sess.User.LastLogin == nil {
			t.Fatalf("unexpected session %+v", sess)
		}
		who, err := f.svc.Verify(ctx, sess.Token)
		if err != nil || who.ID != u.ID {
			t.Fatalf("Verify: %v %v", who, err)
		}
	}

	if _, err := f.svc.Authenticate(ctx, "tester", "wrong"); !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Errorf("wrong password: %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, "nobody", "hunter2"); !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Errorf("unknown user: %v", err)
	}
}

func TestInactiveAccountsCannotLogIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.svc.Authenticate(ctx, "manager", "secret2")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	toggled, err := f.svc.ToggleStatus(ctx, f.root, f.admin.ID)
	if err != nil || toggled.IsActive {
		t.Fatalf("ToggleStatus: %+v %v", toggled, err)
	}
	if _, err := f.svc.Authenticate(ctx, "manager", "secret2"); !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Errorf("inactive login: %v", err)
	}
	if _, err := f.svc.Verify(ctx, sess.Token); !errors.Is(err, apperr.ErrTokenInvalid) {
		t.Errorf("inactive token: %v", err)
	}
}

func TestVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other, err := f.svc.Create(ctx, f.root, Credentials{Username: "other", Email: "other@example.com", Password: "secret", Role: model.RoleAdmin})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	plain, err := f.svc.Register(ctx, Credentials{Username: "plain", Email: "plain@example.com", Password: "secret"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := f.svc.Get(ctx, f.admin, other.ID); !errors.Is(err, apperr.ErrPermission) {
		t.Errorf("admin reading a peer: %v", err)
	}
	if _, err := f.svc.Get(ctx, plain, f.admin.ID); !errors.Is(err, apperr.ErrPermission) {
		t.Errorf("user reading admin: %v", err)
	}
	if got, err := f.svc.Get(ctx, f.root, other.ID); err != nil || got.ID != other.ID {
		t.Errorf("root reading admin: %v %v", got, err)
	}
	if _, err := f.svc.List(ctx, f.admin); !errors.Is(err, apperr.ErrPermission) {
		t.Errorf("admin listing all: %v", err)
	}
	mine, err := f.svc.ListCreatedBy(ctx, f.root)
	if err != nil || len(mine) != 2 {
		t.Fatalf("root created %d accounts, err %v", len(mine), err)
	}
	stats, err := f.svc.Stats(ctx, f.root)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 4 || stats.Admins != 2 || stats.Users != 1 || stats.SuperAdmins != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestUpdateRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	role := model.RoleUser

	if _, err := f.svc.Update(ctx, f.admin, f.admin.ID, Changes{}); !errors.Is(err, apperr.ErrPermission) {
		t.Errorf("admin editing self (not creator): %v", err)
	}
	if _, err := f.svc.Update(ctx, f.root, f.admin.ID, Changes{}); !errors.Is(err, apperr.ErrUserInvalid) {
		t.Errorf("empty update: %v", err)
	}
	taken := "root"
	if _, err := f.svc.Update(ctx, f.root, f.admin.ID, Changes{Username: &taken}); !errors.Is(err, apperr.ErrUserExists) {
		t.Errorf("taken username: %v", err)
	}
	same := "manager"
	if _, err := f.svc.Update(ctx, f.root, f.admin.ID, Changes{Username: &same}); err != nil {
		t.Errorf("keeping own username: %v", err)
	}
	bad := model.Role("owner")
	if _, err := f.svc.Update(ctx, f.root, f.admin.ID, Changes{Role: &bad}); !errors.Is(err, apperr.ErrInvalidRole) {
		t.Errorf("invalid role: %v", err)
	}

	pw := "newpass"
	updated, err := f.svc.Update(ctx, f.root, f.admin.ID, Changes{Role: &role, Password: &pw})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Role != model.RoleUser {
		t.Fatalf("role = %s", updated.Role)
	}
	if _, err := f.svc.Authenticate(ctx, "manager", "newpass"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}

	created, err := f.svc.Create(ctx, f.root, Credentials{Username: "ops", Email: "ops@example.com", Password: "secret", Role: model.RoleAdmin})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	promote := model.RoleSuperAdmin
	if _, err := f.svc.Update(ctx, created, created.ID, Changes{Role: &promote}); !errors.Is(err, apperr.ErrPermission) {
		t.Errorf("admin changing a role: %v", err)
	}
}

func TestSuperAdminRoleIsFixed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	peer := &model.User{ID: "sa2", Username: "root2", Email: "root2@example.com", Role: model.RoleSuperAdmin, IsActive: true}
	if err := f.store.CreateUser(ctx, peer); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	demote := model.RoleAdmin
	if _, err := f.svc.Update(ctx, f.root, peer.ID, Changes{Role: &demote}); !errors.Is(err, apperr.ErrPermission) {
		t.Fatalf("demoting a super admin: %v", err)
	}
	if _, err := f.svc.ToggleStatus(ctx, f.root, peer.ID); !errors.Is(err, apperr.ErrPermission) {
		t.Errorf("deactivating a super admin: %v", err)
	}
	if err := f.svc.Delete(ctx, f.root, peer.ID); !errors.Is(err, apperr.ErrPermission) {
		t.Errorf("deleting a super admin: %v", err)
	}
	got, err := f.store.GetUser(ctx, peer.ID)
	if err != nil || got.Role != model.RoleSuperAdmin || !got.IsActive {
		t.Fatalf("super admin changed: %+v %v", got, err)
	}

	keep := model.RoleSuperAdmin
	email := "root2@corp.example.com"
	if _, err := f.svc.Update(ctx, f.root, peer.ID, Changes{Role: &keep, Email: &email}); err != nil {
		t.Fatalf("update keeping the role: %v", err)
	}
}

func TestDeleteRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.Delete(ctx, f.root, f.root.ID); !errors.Is(err, apperr.ErrPermission) {
		t.Errorf("self delete: %v", err)
	}
	second, err := f.svc.Create(ctx, f.root, Credentials{Username: "peer", Email: "peer@example.com", Password: "secret", Role: model.RoleAdmin})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.svc.Delete(ctx, second, f.root.ID); !errors.Is(err, apperr.ErrPermission) {
		t.Errorf("deleting super admin: %v", err)
	}
	if err := f.svc.Delete(ctx, f.admin, second.ID); !errors.Is(err, apperr.ErrPermission) {
		t.Errorf("deleting a peer: %v", err)
	}

	app := &model.Application{ID: "a1", Name: "Owned", AppKey: "k1", DownloadKey: "d1", Platform: model.PlatformIOS, OwnerID: second.ID}
	if err := f.store.CreateApp(ctx, app); err != nil {
		t.Fatalf("CreateApp: %v", err)
	}
	if err := f.svc.Delete(ctx, f.root, second.ID); !errors.Is(err, apperr.ErrPermission) {
		t.Errorf("deleting an owner: %v", err)
	}
	if err := f.store.DeleteApp(ctx, app.ID); err != nil {
		t.Fatalf("DeleteApp: %v", err)
	}
	if err := f.svc.Delete(ctx, f.root, second.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.store.GetUser(ctx, second.ID); !errors.Is(err, apperr.ErrUserNotFound) {
		t.Fatalf("user still present: %v", err)
	}
}

func TestToggleStatusRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.ToggleStatus(ctx, f.root, f.root.ID); !errors.Is(err, apperr.ErrPermission) {
		t.Errorf("self toggle: %v", err)
	}
	if _, err := f.svc.ToggleStatus(ctx, f.admin, f.root.ID); !errors.Is(err, apperr.ErrPermission) {
		t.Errorf("toggling super admin: %v", err)
	}
	u, err := f.svc.ToggleStatus(ctx, f.root, f.admin.ID)
	if err != nil || u.IsActive {
		t.Fatalf("first toggle: %+v %v", u, err)
	}
	u, err = f.svc.ToggleStatus(ctx, f.root, f.admin.ID)
	if err != nil || !u.IsActive {
		t.Fatalf("second toggle: %+v %v", u, err)
	}
}
