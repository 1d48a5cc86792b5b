package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
	"github.com/dharsanguruparan/AppCenter/internal/model"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

func TestIssueAndVerify(t *testing.T) {
	tokens := NewTokens(secret, time.Hour)
	u := &model.User{ID: "u1", Username: "alice", Email: "a@example.com", Role: model.RoleAdmin}
	token, expires, err := tokens.Issue(u)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(expires) < 59*time.Minute {
		t.Fatalf("expiry too early: %s", expires)
	}
	claims, err := tokens.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "u1" || claims.Role != model.RoleAdmin || claims.Username != "alice" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyRejects(t *testing.T) {
	tokens := NewTokens(secret, time.Hour)
	u := &model.User{ID: "u1", Role: model.RoleUser}

	other := NewTokens([]byte("another-secret-another-secret-xx"), time.Hour)
	forged, _, _ := other.Issue(u)

	expired := NewTokens(secret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, _ := expired.Issue(u)

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, token := range map[string]string{"empty": "", "garbage": "abc.def", "forged": forged, "expired": old, "none": none} {
		if _, err := tokens.Verify(token); !errors.Is(err, apperr.ErrTokenInvalid) {
			t.Errorf("%s: expected ErrTokenInvalid, got %v", name, err)
		}
	}
}

func TestPasswords(t *testing.T) {
	if _, err := HashPassword("12345"); !errors.Is(err, apperr.ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	hash, err := HashPassword("Psw#123456")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "Psw#123456") {
		t.Fatalf("password did not match its hash")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatalf("wrong password matched")
	}
}
