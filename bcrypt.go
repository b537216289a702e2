package account

import (
	"errors"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher implements Hasher using bcrypt
type BcryptHasher struct {
	Cost int
}

var _ Hasher = (*BcryptHasher)(nil)

var defaultHasher = NewBcryptHasher(passwordHashCost())

// NewBcryptHasher returns a hasher with the given cost. Costs outside the
// range bcrypt accepts fall back to bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{Cost: cost}
}

// HashPassword will generate a password hash
func (h *BcryptHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", oops.In("account").Code(CodeValidation).Wrap(ErrEmptyPassword)
	}

	out, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", oops.In("account").Code(CodeValidation).Wrap(err)
		}
		return "", oops.In("account").Code(CodeInternal).Wrapf(err, "failed to hash password")
	}

	return string(out), nil
}

// VerifyPassword is true only when password matches hash. Malformed hashes
// are reported as a mismatch.
func (h *BcryptHasher) VerifyPassword(password, hash string) bool {
	return ComparePasswordAndHash(password, hash) == nil
}

// HashPassword will generate a password hash with the default hasher
func HashPassword(password string) (string, error) {
	return defaultHasher.HashPassword(password)
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return invalidCredentials()
		}
		return oops.In("account").Code(CodeUnauthorized).With("reason", err.Error()).Wrap(ErrInvalidCredentials)
	}
	return nil
}

func normalizeHasher(h Hasher) Hasher {
	if h == nil {
		return defaultHasher
	}
	return h
}
