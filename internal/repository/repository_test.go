package repository

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
)

func TestSetBuilder(t *testing.T) {
	name := "Field"
	set := newSetBuilder()
	set.add("name", &name)
	set.add("icon", nil)
	set.addValue("is_active", true)

	query, args := set.build("apps", "a1", "id")
	want := "UPDATE apps SET name=$1, is_active=$2 WHERE id=$3 RETURNING id"
	if query != want {
		t.Fatalf("query = %q, want %q", query, want)
	}
	if !reflect.DeepEqual(args, []any{"Field", true, "a1"}) {
		t.Fatalf("args = %#v", args)
	}
}

func TestErrorTranslation(t *testing.T) {
	dupKey := fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505", ConstraintName: "apps_download_key_key"})
	if !errors.Is(appError(dupKey), apperr.ErrDuplicateDownloadKey) {
		t.Errorf("download key violation not translated")
	}
	if !errors.Is(appError(pgx.ErrNoRows), apperr.ErrNotFound) {
		t.Errorf("missing app not translated")
	}
	dupVersion := &pgconn.PgError{Code: "23505", ConstraintName: "versions_app_version_build_key"}
	if !errors.Is(versionError(dupVersion), apperr.ErrDuplicateVersion) {
		t.Errorf("version violation not translated")
	}
	if !errors.Is(userError(&pgconn.PgError{Code: "23505"}), apperr.ErrUserExists) {
		t.Errorf("user violation not translated")
	}
	if !errors.Is(fileError(pgx.ErrNoRows), apperr.ErrFileNotFound) {
		t.Errorf("missing file not translated")
	}
	other := errors.New("connection reset")
	if appError(other) != other {
		t.Errorf("unrelated errors must pass through")
	}
}
