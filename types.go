package account

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	// GetAccessTokenExpiration returns the access token TTL in minutes
	GetAccessTokenExpiration() int
	// GetRefreshTokenExpiration returns the refresh token TTL in minutes
	GetRefreshTokenExpiration() int
}

// Authenticator exchanges credentials for tokens and tokens for users
type Authenticator interface {
	Login(ctx context.Context, credentials Credentials) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Resolve(ctx context.Context, token string) (*User, error)
	Grant(ctx context.Context, request TokenRequest) (*TokenPair, error)
}

// IdentityResolver turns a bearer token into the user it was issued for
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (*User, error)
}

// IdentityProvider ensure we have a store to retrieve auth identity
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identity, password string) (*User, error)
	FindIdentity(ctx context.Context, identity string) (*User, error)
}

// UserStore is the persistence contract for user records. Identity is the
// user's email address.
type UserStore interface {
	GetByIdentity(ctx context.Context, identity string) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)
	UpdateByIdentity(ctx context.Context, identity string, user *User) (*User, error)
	DeleteByIdentity(ctx context.Context, identity string) (int64, error)
}

// Hasher hashes and verifies passwords
type Hasher interface {
	HashPassword(password string) (string, error)
	VerifyPassword(password, hash string) bool
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNT "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNT "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNT "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNT "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
