package persistence_test

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.uber.org/goleak"

	"github.com/goliatone/go-account/persistence"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type note struct {
	bun.BaseModel `bun:"table:notes"`
	ID            int64  `bun:"id,pk,autoincrement"`
	Body          string `bun:"body,notnull"`
}

var noteMigrations = fstest.MapFS{
	"20240101000000_create_notes.up.sql": &fstest.MapFile{
		Data: []byte(`CREATE TABLE "notes" ("id" INTEGER PRIMARY KEY AUTOINCREMENT, "body" VARCHAR NOT NULL);`),
	},
	"20240101000000_create_notes.down.sql": &fstest.MapFile{
		Data: []byte(`DROP TABLE IF EXISTS "notes";`),
	},
}

func memoryConfig() persistence.Config {
	return persistence.Config{
		DSN:     "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		Timeout: time.Second,
	}
}

func TestOpenAndMigrate(t *testing.T) {
	ctx := context.Background()

	store, err := persistence.Open(ctx, memoryConfig(), (*note)(nil))
	require.NoError(t, err)
	defer store.Close()

	store.RegisterMigrations(noteMigrations)

	require.NoError(t, store.Migrate(ctx))
	assert.Equal(t, []string{"20240101000000"}, store.Applied())

	// second run is a no-op
	require.NoError(t, store.Migrate(ctx))
	assert.Empty(t, store.Applied())

	db := store.DB()
	_, err = db.NewInsert().Model(&note{Body: "hello"}).Exec(ctx)
	require.NoError(t, err)

	var got note
	require.NoError(t, db.NewSelect().Model(&got).Where("body = ?", "hello").Scan(ctx))
	assert.Equal(t, "hello", got.Body)
}

func TestRollbackDropsTables(t *testing.T) {
	ctx := context.Background()

	store, err := persistence.Open(ctx, memoryConfig())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.RegisterMigrations(noteMigrations).Migrate(ctx))
	require.NoError(t, store.Rollback(ctx))
	assert.Equal(t, []string{"20240101000000"}, store.Applied())

	_, err = store.DB().NewInsert().Model(&note{Body: "gone"}).Exec(ctx)
	assert.Error(t, err)
}

func TestMigrateWithoutMigrations(t *testing.T) {
	store, err := persistence.Open(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer store.Close()

	assert.NoError(t, store.Migrate(context.Background()))
}

func TestPingHonorsCancelledContext(t *testing.T) {
	store, err := persistence.Open(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = store.Ping(ctx, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store did not answer")
}

func TestConfigDefaults(t *testing.T) {
	cfg := persistence.Config{DSN: "file::memory:"}
	assert.Equal(t, persistence.DefaultTimeout, cfg.GetPingTimeout())
	assert.Equal(t, "file::memory:", cfg.GetDatabase())
	assert.Empty(t, cfg.GetOtelIdentifier())
	assert.False(t, cfg.GetDebug())
}

func TestOpenFailsForUnreachableStore(t *testing.T) {
	_, err := persistence.Open(context.Background(), persistence.Config{
		DSN:     "file:/nonexistent-dir/sub/account.db?mode=ro",
		Timeout: 100 * time.Millisecond,
	})
	require.Error(t, err)
}
