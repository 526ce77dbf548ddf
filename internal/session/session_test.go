package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any-key"))
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestFromTokenReadsClaims(t *testing.T) {
	tok := signToken(t, jwt.MapClaims{"role": "admin", "email": "admin@school.test"})
	s := FromToken(tok)

	if cred, ok := s.Credential(); !ok || cred != tok {
		t.Errorf("Credential() = %q,%v, want token,true", cred, ok)
	}
	if s.Role() != RoleAdmin {
		t.Errorf("Role() = %v, want admin", s.Role())
	}
	if s.Email() != "admin@school.test" {
		t.Errorf("Email() = %q", s.Email())
	}
}

func TestFromTokenSubjectFallback(t *testing.T) {
	tok := signToken(t, jwt.MapClaims{"role": "student", "sub": "joan@school.test"})
	s := FromToken(tok)
	if s.Role() != RoleStudent {
		t.Errorf("Role() = %v, want student", s.Role())
	}
	if s.Email() != "joan@school.test" {
		t.Errorf("Email() = %q, want subject fallback", s.Email())
	}
}

func TestFromTokenUnknownRole(t *testing.T) {
	tok := signToken(t, jwt.MapClaims{"role": "superuser"})
	if got := FromToken(tok).Role(); got != RoleNone {
		t.Errorf("Role() = %v, want none", got)
	}
}

func TestFromTokenGarbageKeepsCredential(t *testing.T) {
	s := FromToken("not-a-jwt")
	if cred, ok := s.Credential(); !ok || cred != "not-a-jwt" {
		t.Errorf("Credential() = %q,%v; the store decides rejection, not us", cred, ok)
	}
	if s.Role() != RoleNone {
		t.Errorf("Role() = %v, want none", s.Role())
	}
}

func TestFromTokenEmpty(t *testing.T) {
	s := FromToken("  ")
	if _, ok := s.Credential(); ok {
		t.Error("blank token must be unauthenticated")
	}
	if s.Role() != RoleNone {
		t.Errorf("Role() = %v, want none", s.Role())
	}
}

func TestLoadMissingFileIsAnonymous(t *testing.T) {
	s := Load(filepath.Join(t.TempDir(), "nope"))
	if _, ok := s.Credential(); ok {
		t.Error("missing token file must yield the anonymous session, not an error")
	}
}

func TestLoadReadsPersistedToken(t *testing.T) {
	tok := signToken(t, jwt.MapClaims{"role": "admin"})
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte(tok+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	s := Load(path)
	if s.Role() != RoleAdmin {
		t.Errorf("Role() = %v, want admin", s.Role())
	}
}
