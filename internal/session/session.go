// Package session holds the current bearer credential and role claim for
// the active user. It is populated once at start from a previously
// persisted token and has no refresh or retry logic: an absent token means
// "unauthenticated", never an error. The credential is not re-validated
// here; the record store rejects it if it is stale.
package session

import (
	"context"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// Role is the portal role claimed by the active credential.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
	RoleNone    Role = "none"
)

// Provider supplies the bearer credential for privileged record store calls.
type Provider interface {
	Credential() (string, bool)
}

// Session is an immutable snapshot of the active user's credential and the
// claims read from it.
type Session struct {
	token string
	role  Role
	email string
}

// Anonymous is the unauthenticated session.
func Anonymous() Session { return Session{role: RoleNone} }

// FromToken builds a session from a raw bearer token. Claims are read
// without signature verification: the remote record store is the verifier,
// this process only branches rendering and header inclusion on them. An
// unparsable token still carries its credential so the store can reject it.
func FromToken(token string) Session {
	token = strings.TrimSpace(token)
	if token == "" {
		return Anonymous()
	}
	s := Session{token: token, role: RoleNone}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return s
	}
	switch role, _ := claims["role"].(string); role {
	case "admin":
		s.role = RoleAdmin
	case "student":
		s.role = RoleStudent
	}
	if email, ok := claims["email"].(string); ok && email != "" {
		s.email = email
	} else if sub, ok := claims["sub"].(string); ok {
		s.email = sub
	}
	return s
}

// Load reads a previously persisted token from disk. A missing or empty
// file yields the anonymous session.
func Load(path string) Session {
	data, err := os.ReadFile(path)
	if err != nil {
		return Anonymous()
	}
	return FromToken(string(data))
}

// LoadRedis reads a previously persisted token from redis for server
// deployments that keep the service credential there.
func LoadRedis(ctx context.Context, client *redis.Client, key string) Session {
	token, err := client.Get(ctx, key).Result()
	if err != nil {
		return Anonymous()
	}
	return FromToken(token)
}

// Credential returns the bearer token and whether one is present.
func (s Session) Credential() (string, bool) {
	return s.token, s.token != ""
}

// Role returns the role claim, RoleNone when absent or unreadable.
func (s Session) Role() Role { return s.role }

// Email returns the email (or subject) claim used to find the student's
// own record.
func (s Session) Email() string { return s.email }
