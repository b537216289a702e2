// Package persistence opens the bun handle shared by the repositories
// through go-persistence-bun and runs the SQL migrations it is given.
package persistence

import (
	"context"
	"database/sql"
	"io/fs"
	"time"

	gopersistence "github.com/goliatone/go-persistence-bun"
	"github.com/samber/oops"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// DefaultTimeout bounds the connection check when Config has none
const DefaultTimeout = time.Second

// Config describes the store connection
type Config struct {
	DSN     string
	Timeout time.Duration
	Debug   bool
	// Logf receives migration progress messages
	Logf func(format string, args ...any)
}

var _ gopersistence.Config = Config{}

func (c Config) GetDebug() bool            { return c.Debug }
func (c Config) GetDriver() string         { return sqliteshim.ShimName }
func (c Config) GetServer() string         { return c.DSN }
func (c Config) GetDatabase() string       { return c.DSN }
func (c Config) GetOtelIdentifier() string { return "" }

func (c Config) GetPingTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// Store owns the bun handle and the migrations registered against it
type Store struct {
	client *gopersistence.Client
	db     *bun.DB
}

// Open connects to cfg.DSN, registers models and verifies the connection
// within the configured timeout. The caller must Close the returned store.
func Open(ctx context.Context, cfg Config, models ...any) (*Store, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		return nil, oops.In("persistence").Code("INTERNAL").With("dsn", cfg.DSN).Wrapf(err, "open store")
	}

	// sqlite serializes writers, one connection avoids SQLITE_BUSY and
	// keeps shared in-memory databases alive
	sqldb.SetMaxOpenConns(1)

	if len(models) > 0 {
		gopersistence.RegisterModel(models...)
	}

	client, err := gopersistence.New(cfg, sqldb, sqlitedialect.New())
	if err != nil {
		_ = sqldb.Close()
		return nil, oops.In("persistence").
			Code("INTERNAL").
			With("timeout", cfg.GetPingTimeout().String()).
			Wrapf(err, "store did not answer")
	}

	db, ok := client.DB().(*bun.DB)
	if !ok {
		_ = sqldb.Close()
		return nil, oops.In("persistence").Code("INTERNAL").Errorf("unexpected database handle %T", client.DB())
	}

	if cfg.Logf != nil {
		client.SetLogger(cfg.Logf)
	}

	store := &Store{client: client, db: db}

	if err := store.Ping(ctx, cfg.GetPingTimeout()); err != nil {
		_ = store.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = store.Close()
		return nil, oops.In("persistence").Code("INTERNAL").Wrapf(err, "enable foreign keys")
	}

	return store, nil
}

// DB returns the bun handle
func (s *Store) DB() *bun.DB {
	return s.db
}

// Ping checks the store is reachable within timeout. A zero timeout only
// honors ctx.
func (s *Store) Ping(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := s.db.PingContext(ctx); err != nil {
		return oops.In("persistence").
			Code("INTERNAL").
			With("timeout", timeout.String()).
			Wrapf(err, "store did not answer")
	}
	return nil
}

// RegisterMigrations adds SQL migration directories. Files are named
// <version>_<name>.up.sql and <version>_<name>.down.sql.
func (s *Store) RegisterMigrations(migrations ...fs.FS) *Store {
	s.client.RegisterSQLMigrations(migrations...)
	return s
}

// Migrate applies the registered migrations that have not run yet.
// Calling it again is a no-op.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.client.Migrate(ctx); err != nil {
		return oops.In("persistence").Code("INTERNAL").Wrapf(err, "migrate")
	}
	return nil
}

// Rollback reverts the last applied migration group
func (s *Store) Rollback(ctx context.Context) error {
	if err := s.client.Rollback(ctx); err != nil {
		return oops.In("persistence").Code("INTERNAL").Wrapf(err, "rollback")
	}
	return nil
}

// Applied returns the names of the migrations in the last group run by
// Migrate or Rollback.
func (s *Store) Applied() []string {
	report := s.client.Report()
	if report == nil {
		return nil
	}
	names := make([]string, 0, len(report.Migrations))
	for _, m := range report.Migrations {
		names = append(names, m.Name)
	}
	return names
}

// Close closes the bun handle and the underlying connection pool
func (s *Store) Close() error {
	return s.db.Close()
}
