package account

import (
	"embed"
	"io/fs"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// Migrations returns the SQL migrations rooted at the migrations directory
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "data/sql/migrations")
	if err != nil {
		panic(err)
	}
	return sub
}
