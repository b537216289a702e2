package account

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Error codes attached to every error the services return.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInvalidGrant = "INVALID_GRANT"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL"
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = errors.New("password cannot be empty")

// ErrInvalidCredentials is shared by unknown identities and wrong passwords.
var ErrInvalidCredentials = errors.New("incorrect email or password")

// ErrInvalidToken is the public error for any token that fails Resolve.
var ErrInvalidToken = errors.New("invalid token")

// ErrTokenExpired token exp claim is in the past
var ErrTokenExpired = errors.New("token is expired")

// ErrTokenMalformed token could not be parsed or is missing claims
var ErrTokenMalformed = errors.New("token is malformed")

// ErrTokenSignature token was signed with another key or algorithm
var ErrTokenSignature = errors.New("token signature is invalid")

// ErrInvalidGrant is returned for unknown grants, missing grant payloads
// and refresh tokens that cannot be exchanged.
var ErrInvalidGrant = errors.New("invalid grant type or token")

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found")

// ErrIdentityExists is returned when registering an email twice
var ErrIdentityExists = errors.New("identity already registered")

// ErrRemoveFailed delete did not affect any record
var ErrRemoveFailed = errors.New("remove user failed")

// ErrUnsupportedSigningMethod only HMAC algorithms are accepted
var ErrUnsupportedSigningMethod = errors.New("unsupported signing method")

var knownCodes = map[string]bool{
	CodeValidation:   true,
	CodeUnauthorized: true,
	CodeInvalidGrant: true,
	CodeNotFound:     true,
	CodeConflict:     true,
	CodeInternal:     true,
}

// ErrorCode returns the code attached to err. Errors without a known code
// are reported as CodeInternal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	if oopsErr, ok := oops.AsOops(err); ok {
		code := fmt.Sprint(oopsErr.Code())
		if knownCodes[code] {
			return code
		}
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidToken):
		return CodeUnauthorized
	case errors.Is(err, ErrInvalidGrant):
		return CodeInvalidGrant
	case errors.Is(err, ErrEmptyPassword):
		return CodeValidation
	case errors.Is(err, ErrIdentityExists):
		return CodeConflict
	case errors.Is(err, ErrRemoveFailed),
		errors.Is(err, ErrIdentityNotFound):
		return CodeNotFound
	}

	return CodeInternal
}

// IsUnauthorized reports whether err carries CodeUnauthorized
func IsUnauthorized(err error) bool {
	return ErrorCode(err) == CodeUnauthorized
}

// IsInvalidGrant reports whether err carries CodeInvalidGrant
func IsInvalidGrant(err error) bool {
	return ErrorCode(err) == CodeInvalidGrant
}

// IsValidationError reports whether err carries CodeValidation
func IsValidationError(err error) bool {
	return ErrorCode(err) == CodeValidation
}

// IsNotFound reports whether err carries CodeNotFound
func IsNotFound(err error) bool {
	return ErrorCode(err) == CodeNotFound
}

func unauthorized(reason error) error {
	builder := oops.In("account").Code(CodeUnauthorized)
	if reason != nil {
		builder = builder.With("reason", reason.Error())
	}
	return builder.Wrap(ErrInvalidToken)
}

func invalidGrant(reason error) error {
	builder := oops.In("account").Code(CodeInvalidGrant)
	if reason != nil {
		builder = builder.With("reason", reason.Error())
	}
	return builder.Wrap(ErrInvalidGrant)
}

func invalidCredentials() error {
	return oops.In("account").Code(CodeUnauthorized).Wrap(ErrInvalidCredentials)
}

func internal(err error, msg string) error {
	if ErrorCode(err) != CodeInternal {
		return err
	}
	return oops.In("account").Code(CodeInternal).Wrapf(err, "%s", msg)
}

// IsUniqueViolation reports whether err is a unique constraint failure
// from sqlite or postgres.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
