package postgres

import (
	"context"
	"database/sql"
	"embed"

	"docflow/internal/platform/migrate"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate creates or upgrades the document schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	return migrate.Apply(ctx, db, migrate.Postgres, migrations, "migrations")
}
