package account

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/uptrace/bun"
)

// Users is the bun backed user repository. Identity lookups go through
// the email column.
type Users interface {
	repository.Repository[*User]
	UserStore

	GetByIdentityTx(ctx context.Context, tx bun.IDB, identity string) (*User, error)
	UpdateByIdentityTx(ctx context.Context, tx bun.IDB, identity string, user *User) (*User, error)
	DeleteByIdentityTx(ctx context.Context, tx bun.IDB, identity string) (int64, error)
}

type users struct {
	repository.Repository[*User]
	db  *bun.DB
	txm TransactionManager
	now func() time.Time
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// UsersOption configures the users repository
type UsersOption func(*users)

// WithUsersTransactionManager runs the non Tx methods through txm
func WithUsersTransactionManager(txm TransactionManager) UsersOption {
	return func(u *users) {
		if txm != nil {
			u.txm = txm
		}
	}
}

// WithUsersClock sets the time source for created_at and updated_at
func WithUsersClock(now func() time.Time) UsersOption {
	return func(u *users) {
		if now != nil {
			u.now = now
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	u := &users{
		Repository: repo,
		db:         db,
		txm:        db,
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}

	return u
}

func (a *users) GetByIdentity(ctx context.Context, identity string) (*User, error) {
	return a.GetByIdentityTx(ctx, a.db, identity)
}

func (a *users) GetByIdentityTx(ctx context.Context, tx bun.IDB, identity string) (*User, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, notFound(identity)
	}

	record, err := a.Repository.GetByIdentifierTx(ctx, tx, identity)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, notFound(identity)
		}
		return nil, oops.In("users").Code(CodeInternal).With("identity", identity).Wrapf(err, "failed to retrieve user")
	}

	return record, nil
}

// Create inserts user, failing with CodeConflict if the identity exists
func (a *users) Create(ctx context.Context, user *User) (*User, error) {
	var created *User
	err := a.txm.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		created, err = a.CreateTx(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	if user == nil {
		return nil, oops.In("users").Code(CodeInternal).Errorf("user must not be nil")
	}

	if _, err := a.GetByIdentityTx(ctx, tx, user.Email); err == nil {
		return nil, conflict(user.Email)
	} else if !IsNotFound(err) {
		return nil, err
	}

	prepareUserDefaults(user, a.now())

	created, err := a.Repository.CreateTx(ctx, tx, user)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, conflict(user.Email)
		}
		return nil, oops.In("users").Code(CodeInternal).Wrapf(err, "could not create user")
	}

	return created, nil
}

// UpdateByIdentity writes username and password hash of user onto the
// record registered under identity and returns the stored record.
func (a *users) UpdateByIdentity(ctx context.Context, identity string, user *User) (*User, error) {
	var updated *User
	err := a.txm.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		updated, err = a.UpdateByIdentityTx(ctx, tx, identity, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (a *users) UpdateByIdentityTx(ctx context.Context, tx bun.IDB, identity string, user *User) (*User, error) {
	if user == nil {
		return nil, oops.In("users").Code(CodeInternal).Errorf("user must not be nil")
	}

	current, err := a.GetByIdentityTx(ctx, tx, identity)
	if err != nil {
		return nil, err
	}

	// zero fields are left out of the SET clause
	record := &User{
		ID:           current.ID,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		UpdatedAt:    a.now(),
	}

	updated, err := a.Repository.UpdateTx(ctx, tx, record)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, notFound(identity)
		}
		return nil, oops.In("users").Code(CodeInternal).Wrapf(err, "could not update user")
	}

	return updated, nil
}

// DeleteByIdentity removes the record registered under identity and
// reports how many records were removed.
func (a *users) DeleteByIdentity(ctx context.Context, identity string) (int64, error) {
	var affected int64
	err := a.txm.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		affected, err = a.DeleteByIdentityTx(ctx, tx, identity)
		return err
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func (a *users) DeleteByIdentityTx(ctx context.Context, tx bun.IDB, identity string) (int64, error) {
	current, err := a.GetByIdentityTx(ctx, tx, identity)
	if err != nil {
		if IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}

	if err := a.Repository.DeleteTx(ctx, tx, current); err != nil {
		return 0, oops.In("users").Code(CodeInternal).Wrapf(err, "could not delete user")
	}

	return 1, nil
}

func notFound(identity string) error {
	return oops.In("users").Code(CodeNotFound).With("identity", identity).Wrap(ErrIdentityNotFound)
}

func conflict(identity string) error {
	return oops.In("users").Code(CodeConflict).With("identity", identity).Wrap(ErrIdentityExists)
}
