package account

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// UserProvider verifies credentials against a UserStore
type UserProvider struct {
	store  UserStore
	hasher Hasher
	logger Logger

	decoyOnce sync.Once
	decoyHash string
}

var _ IdentityProvider = (*UserProvider)(nil)

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserStore) *UserProvider {
	return &UserProvider{
		store:  store,
		hasher: defaultHasher,
		logger: defLogger{},
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	u.logger = normalizeLogger(l)
	return u
}

// WithHasher sets the hasher used to verify passwords
func (u *UserProvider) WithHasher(h Hasher) *UserProvider {
	u.hasher = normalizeHasher(h)
	return u
}

// VerifyIdentity will find the user, compare to the password, and return
// the user. Unknown identities and wrong passwords return the same error.
func (u *UserProvider) VerifyIdentity(ctx context.Context, identity, password string) (*User, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" || password == "" {
		return nil, invalidCredentials()
	}

	user, err := u.store.GetByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			// keep the response time close to the one of a wrong password
			u.hasher.VerifyPassword(password, u.decoy())
			return nil, invalidCredentials()
		}
		return nil, internal(err, "failed to retrieve user during verification")
	}

	if !u.hasher.VerifyPassword(password, user.PasswordHash) {
		return nil, invalidCredentials()
	}

	return user, nil
}

// FindIdentity returns the user registered under identity
func (u *UserProvider) FindIdentity(ctx context.Context, identity string) (*User, error) {
	user, err := u.store.GetByIdentity(ctx, strings.TrimSpace(identity))
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return nil, err
		}
		return nil, internal(err, "failed to retrieve user")
	}
	return user, nil
}

func (u *UserProvider) decoy() string {
	u.decoyOnce.Do(func() {
		hash, err := u.hasher.HashPassword("decoy-password")
		if err != nil {
			u.logger.Error("failed to build decoy hash: %v", err)
			return
		}
		u.decoyHash = hash
	})
	return u.decoyHash
}
