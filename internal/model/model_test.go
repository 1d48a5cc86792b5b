package model

import "testing"

func TestPlatformFromFilename(t *testing.T) {
	cases := map[string]Platform{
		"app.ipa":       PlatformIOS,
		"App.IPA":       PlatformIOS,
		"app.apk":       PlatformAndroid,
		"weird.ipa.apk": PlatformAndroid,
	}
	for name, want := range cases {
		if got := PlatformFromFilename(name); got != want {
			t.Errorf("PlatformFromFilename(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestRoleOrdering(t *testing.T) {
	if !RoleSuperAdmin.AtLeast(RoleAdmin) || !RoleAdmin.AtLeast(RoleUser) {
		t.Fatalf("roles are not strictly ordered")
	}
	if RoleUser.AtLeast(RoleAdmin) {
		t.Fatalf("user must not outrank admin")
	}
	if Role("root").Valid() {
		t.Fatalf("unknown role reported valid")
	}
}

func TestApplicationPatchOnlyTouchesSetFields(t *testing.T) {
	app := Application{Name: "Old", Description: "keep", Version: "1.0.0"}
	name := "New"
	patch := ApplicationPatch{Name: &name}
	if patch.IsEmpty() {
		t.Fatalf("patch with a field reported empty")
	}
	patch.Apply(&app)
	if app.Name != "New" || app.Description != "keep" || app.Version != "1.0.0" {
		t.Fatalf("unexpected app after patch: %+v", app)
	}
	if !(ApplicationPatch{}).IsEmpty() {
		t.Fatalf("zero patch must be empty")
	}
}

func TestStagedFilePath(t *testing.T) {
	f := StagedFile{TempPath: "/tmp/a"}
	if f.Path() != "/tmp/a" {
		t.Fatalf("Path = %q", f.Path())
	}
	f.FinalPath = "/data/a"
	if f.Path() != "/data/a" {
		t.Fatalf("Path = %q", f.Path())
	}
}

func TestStagedFileAccess(t *testing.T) {
	f := &StagedFile{UploadedBy: "a1"}
	cases := []struct {
		name string
		user *User
		want bool
	}{
		{"uploader", &User{ID: "a1", Role: RoleAdmin}, true},
		{"other admin", &User{ID: "a2", Role: RoleAdmin}, false},
		{"super admin", &User{ID: "s1", Role: RoleSuperAdmin}, true},
		{"nobody", nil, false},
	}
	for _, tc := range cases {
		if got := f.AccessibleBy(tc.user); got != tc.want {
			t.Errorf("%s: AccessibleBy = %v, want %v", tc.name, got, tc.want)
		}
	}
	if (&StagedFile{}).AccessibleBy(&User{ID: "", Role: RoleAdmin}) {
		t.Errorf("an unowned file must not match an empty id")
	}
}
