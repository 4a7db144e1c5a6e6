// Package migrate applies embedded SQL migrations at most once per file.
// Files are applied in name order; only the "-- +migrate Up" section runs.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

const migrationTable = "schema_migrations"

// Dialect selects placeholder and upsert syntax.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Apply executes every pending migration under root in its own transaction.
func Apply(ctx context.Context, db *sql.DB, dialect Dialect, migrations fs.FS, root string) error {
	if db == nil {
		return errors.New("sql db is required")
	}
	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}

	entries, err := fs.ReadDir(migrations, root)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	createSQL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	name TEXT PRIMARY KEY,
	applied_at BIGINT NOT NULL
)`, migrationTable)
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		applied, err := isApplied(ctx, db, dialect, file)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if applied {
			continue
		}

		content, err := fs.ReadFile(migrations, path.Join(root, file))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		upSQL := ExtractUp(string(content))
		if strings.TrimSpace(upSQL) == "" {
			continue
		}
		if err := applyOne(ctx, db, dialect, file, upSQL); err != nil {
			return err
		}
	}
	return nil
}

func applyOne(ctx context.Context, db *sql.DB, dialect Dialect, file, upSQL string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", file, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, upSQL); err != nil {
		return fmt.Errorf("exec migration %s: %w", file, err)
	}
	if _, err := tx.ExecContext(ctx, recordSQL(dialect), file, time.Now().UTC().UnixMilli()); err != nil {
		return fmt.Errorf("record migration %s: %w", file, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", file, err)
	}
	return nil
}

// ExtractUp returns the SQL in the "-- +migrate Up" section, or the whole
// file when it has no markers.
func ExtractUp(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	upIdx := strings.Index(content, up)
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, down)
	if downIdx == -1 || downIdx < upIdx {
		return content[upIdx+len(up):]
	}
	return content[upIdx+len(up) : downIdx]
}

func recordSQL(dialect Dialect) string {
	if dialect == Postgres {
		return "INSERT INTO " + migrationTable + " (name, applied_at) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING"
	}
	return "INSERT OR IGNORE INTO " + migrationTable + " (name, applied_at) VALUES (?, ?)"
}

func isApplied(ctx context.Context, db *sql.DB, dialect Dialect, name string) (bool, error) {
	query := "SELECT 1 FROM " + migrationTable + " WHERE name = ?"
	if dialect == Postgres {
		query = "SELECT 1 FROM " + migrationTable + " WHERE name = $1"
	}
	var found int
	err := db.QueryRowContext(ctx, query, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
