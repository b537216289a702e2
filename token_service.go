package account

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// DefaultSigningMethod is used when no algorithm is configured
const DefaultSigningMethod = "HS256"

// TokenService encodes and decodes signed, time bound tokens
type TokenService struct {
	signingKey []byte
	method     jwt.SigningMethod
	now        func() time.Time
	logger     Logger
}

// TokenServiceOption configures a TokenService
type TokenServiceOption func(*TokenService)

// WithClock sets the time source used to issue and validate tokens
func WithClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenService) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenLogger sets the TokenService logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		ts.logger = normalizeLogger(logger)
	}
}

// NewTokenService creates a TokenService. The signing method must be one of
// HS256, HS384 or HS512; an empty value selects HS256.
func NewTokenService(signingKey []byte, signingMethod string, opts ...TokenServiceOption) (*TokenService, error) {
	if len(signingKey) == 0 {
		return nil, oops.In("account").Code(CodeInternal).Errorf("signing key must not be empty")
	}

	method, err := resolveSigningMethod(signingMethod)
	if err != nil {
		return nil, err
	}

	ts := &TokenService{
		signingKey: signingKey,
		method:     method,
		now:        time.Now,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts, nil
}

func resolveSigningMethod(name string) (jwt.SigningMethod, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		name = DefaultSigningMethod
	}

	method, ok := jwt.GetSigningMethod(name).(*jwt.SigningMethodHMAC)
	if !ok || method == nil {
		return nil, oops.In("account").
			Code(CodeInternal).
			With("alg", name).
			Wrap(ErrUnsupportedSigningMethod)
	}

	return method, nil
}

// Algorithm returns the configured signing algorithm
func (ts *TokenService) Algorithm() string {
	return ts.method.Alg()
}

// Encode signs payload with an expiration of now + ttl. The payload's own
// ExpiresAt is ignored.
func (ts *TokenService) Encode(payload TokenPayload, ttl time.Duration) (string, error) {
	if strings.TrimSpace(payload.Subject) == "" {
		return "", oops.In("account").Code(CodeInternal).Errorf("token subject must not be empty")
	}

	if !payload.Class.Known() {
		return "", oops.In("account").Code(CodeInternal).Errorf("unknown token class %q", payload.Class)
	}

	issuedAt := ts.now()
	claims := newJWTClaims(payload, issuedAt, issuedAt.Add(ttl), uuid.NewString())

	signed, err := jwt.NewWithClaims(ts.method, claims).SignedString(ts.signingKey)
	if err != nil {
		return "", oops.In("account").Code(CodeInternal).Wrapf(err, "failed to sign token")
	}

	return signed, nil
}

// Decode verifies the signature and expiration of token and returns its
// payload. Failures wrap ErrTokenSignature, ErrTokenExpired or
// ErrTokenMalformed.
func (ts *TokenService) Decode(token string) (TokenPayload, error) {
	claims := &JWTClaims{}

	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return ts.signingKey, nil
	},
		jwt.WithValidMethods([]string{ts.method.Alg()}),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return TokenPayload{}, fmt.Errorf("%w: %v", ErrTokenSignature, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return TokenPayload{}, ErrTokenExpired
		default:
			return TokenPayload{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		}
	}

	if strings.TrimSpace(claims.RegisteredClaims.Subject) == "" {
		ts.logger.Debug("token without subject rejected")
		return TokenPayload{}, fmt.Errorf("%w: missing subject", ErrTokenMalformed)
	}

	if !claims.TokenType.Known() {
		ts.logger.Debug("token with unknown class %q rejected", claims.TokenType)
		return TokenPayload{}, fmt.Errorf("%w: unknown token class", ErrTokenMalformed)
	}

	return claims.Payload(), nil
}
