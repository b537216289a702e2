package account

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// Validator checks a component was wired with everything it needs
type Validator interface {
	Validate() error
	MustValidate()
}

// TransactionManager runs f inside a database transaction
type TransactionManager interface {
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
}

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validator
	TransactionManager
	Users() Users
}

type mngr struct {
	db    *bun.DB
	users Users
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	m := &mngr{db: db}
	if db != nil {
		m.users = NewUsersRepository(db, WithUsersTransactionManager(m))
	}
	return m
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository manager requires a database handle")
	}

	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}
