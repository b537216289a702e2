package account

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClass tells access tokens from refresh tokens
type TokenClass string

const (
	// TokenClassAccess proves identity for resource operations
	TokenClassAccess TokenClass = "access"
	// TokenClassRefresh can only be exchanged for a new TokenPair
	TokenClassRefresh TokenClass = "refresh"
)

// Known reports whether c is access, refresh or unset.
func (c TokenClass) Known() bool {
	switch c {
	case "", TokenClassAccess, TokenClassRefresh:
		return true
	default:
		return false
	}
}

// TokenPayload is the decoded content of a token
type TokenPayload struct {
	Subject   string
	UserID    string
	Class     TokenClass
	ExpiresAt time.Time
}

// JWTClaims is the signed representation of a TokenPayload
type JWTClaims struct {
	jwt.RegisteredClaims
	UID       string     `json:"uid,omitempty"`
	TokenType TokenClass `json:"token_type,omitempty"`
}

func newJWTClaims(payload TokenPayload, issuedAt, expiresAt time.Time, jti string) *JWTClaims {
	return &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   payload.Subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:       payload.UserID,
		TokenType: payload.Class,
	}
}

// Payload returns the TokenPayload carried by the claims
func (c *JWTClaims) Payload() TokenPayload {
	payload := TokenPayload{
		Subject: c.RegisteredClaims.Subject,
		UserID:  c.UID,
		Class:   c.TokenType,
	}
	if c.RegisteredClaims.ExpiresAt != nil {
		payload.ExpiresAt = c.RegisteredClaims.ExpiresAt.Time
	}
	return payload
}
