package account_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-account"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func TestTokenService_RoundTrip(t *testing.T) {
	clock := newFakeClock()
	ts, err := account.NewTokenService([]byte("secret"), "HS256", account.WithClock(clock.Now))
	require.NoError(t, err)

	token, err := ts.Encode(account.TokenPayload{
		Subject: "a@x.com",
		UserID:  "u-1",
		Class:   account.TokenClassAccess,
	}, 30*time.Minute)
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	payload, err := ts.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", payload.Subject)
	assert.Equal(t, "u-1", payload.UserID)
	assert.Equal(t, account.TokenClassAccess, payload.Class)
	assert.True(t, payload.ExpiresAt.Equal(clock.now.Add(30*time.Minute)))
}

func TestTokenService_Expiry(t *testing.T) {
	clock := newFakeClock()
	ts, err := account.NewTokenService([]byte("secret"), "HS256", account.WithClock(clock.Now))
	require.NoError(t, err)

	token, err := ts.Encode(account.TokenPayload{Subject: "a@x.com", Class: account.TokenClassAccess}, time.Minute)
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	_, err = ts.Decode(token)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = ts.Decode(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, account.ErrTokenExpired)
}

func TestTokenService_WrongSecret(t *testing.T) {
	issuer, err := account.NewTokenService([]byte("secret-a"), "HS256")
	require.NoError(t, err)
	verifier, err := account.NewTokenService([]byte("secret-b"), "HS256")
	require.NoError(t, err)

	token, err := issuer.Encode(account.TokenPayload{Subject: "a@x.com", Class: account.TokenClassAccess}, time.Hour)
	require.NoError(t, err)

	_, err = verifier.Decode(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, account.ErrTokenSignature)
}

func TestTokenService_AlgorithmMismatch(t *testing.T) {
	issuer, err := account.NewTokenService([]byte("secret"), "HS512")
	require.NoError(t, err)
	verifier, err := account.NewTokenService([]byte("secret"), "HS256")
	require.NoError(t, err)

	token, err := issuer.Encode(account.TokenPayload{Subject: "a@x.com", Class: account.TokenClassAccess}, time.Hour)
	require.NoError(t, err)

	_, err = verifier.Decode(token)
	require.Error(t, err)
}

func TestTokenService_RejectsNoneAlgorithm(t *testing.T) {
	ts, err := account.NewTokenService([]byte("secret"), "HS256")
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "a@x.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ts.Decode(unsigned)
	require.Error(t, err)
}

func TestTokenService_Malformed(t *testing.T) {
	ts, err := account.NewTokenService([]byte("secret"), "HS256")
	require.NoError(t, err)

	for _, token := range []string{"", "abc", "a.b.c", "garbage.garbage.garbage"} {
		_, err := ts.Decode(token)
		require.Error(t, err, token)
		assert.ErrorIs(t, err, account.ErrTokenMalformed, token)
	}
}

func TestTokenService_RequiresExpiration(t *testing.T) {
	ts, err := account.NewTokenService([]byte("secret"), "HS256")
	require.NoError(t, err)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "a@x.com"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ts.Decode(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, account.ErrTokenMalformed)
}

func TestTokenService_RejectsMissingSubjectAndUnknownClass(t *testing.T) {
	ts, err := account.NewTokenService([]byte("secret"), "HS256")
	require.NoError(t, err)

	exp := time.Now().Add(time.Hour).Unix()

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ts.Decode(noSubject)
	assert.ErrorIs(t, err, account.ErrTokenMalformed)

	unknownClass, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        "a@x.com",
		"exp":        exp,
		"token_type": "admin",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ts.Decode(unknownClass)
	assert.ErrorIs(t, err, account.ErrTokenMalformed)
}

func TestTokenService_EncodeValidatesPayload(t *testing.T) {
	ts, err := account.NewTokenService([]byte("secret"), "")
	require.NoError(t, err)
	assert.Equal(t, "HS256", ts.Algorithm())

	_, err = ts.Encode(account.TokenPayload{Class: account.TokenClassAccess}, time.Hour)
	assert.Error(t, err)

	_, err = ts.Encode(account.TokenPayload{Subject: "a@x.com", Class: "admin"}, time.Hour)
	assert.Error(t, err)
}

func TestNewTokenService_Configuration(t *testing.T) {
	_, err := account.NewTokenService(nil, "HS256")
	assert.Error(t, err)

	for _, alg := range []string{"RS256", "ES256", "none", "HS999"} {
		_, err := account.NewTokenService([]byte("secret"), alg)
		require.Error(t, err, alg)
		assert.ErrorIs(t, err, account.ErrUnsupportedSigningMethod, alg)
	}

	for _, alg := range []string{"HS256", "hs384", "HS512"} {
		ts, err := account.NewTokenService([]byte("secret"), alg)
		require.NoError(t, err, alg)
		assert.Equal(t, strings.ToUpper(alg), ts.Algorithm())
	}
}

func TestTokenService_UniqueTokens(t *testing.T) {
	clock := newFakeClock()
	ts, err := account.NewTokenService([]byte("secret"), "HS256", account.WithClock(clock.Now))
	require.NoError(t, err)

	payload := account.TokenPayload{Subject: "a@x.com", Class: account.TokenClassAccess}
	first, err := ts.Encode(payload, time.Hour)
	require.NoError(t, err)
	second, err := ts.Encode(payload, time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
