package migrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func countRows(t *testing.T, db *sql.DB, query string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query).Scan(&n))
	return n
}

func TestApply(t *testing.T) {
	ctx := context.Background()

	t.Run("records applied files once", func(t *testing.T) {
		db := openSQLite(t)
		migrations := fstest.MapFS{
			"sqlite/001_items.sql": &fstest.MapFile{Data: []byte("-- +migrate Up\nCREATE TABLE items(id TEXT PRIMARY KEY);\n-- +migrate Down\nDROP TABLE items;")},
			"sqlite/002_more.sql":  &fstest.MapFile{Data: []byte("-- +migrate Up\nCREATE TABLE more(id TEXT PRIMARY KEY);")},
		}

		require.NoError(t, Apply(ctx, db, SQLite, migrations, "sqlite"))
		require.NoError(t, Apply(ctx, db, SQLite, migrations, "sqlite"))

		assert.Equal(t, 2, countRows(t, db, "SELECT COUNT(*) FROM schema_migrations"))
		assert.Equal(t, 0, countRows(t, db, "SELECT COUNT(*) FROM items"))
	})

	t.Run("failed migration stays unrecorded", func(t *testing.T) {
		db := openSQLite(t)
		bad := fstest.MapFS{
			"001_bad.sql": &fstest.MapFile{Data: []byte("-- +migrate Up\nCREAT TABLE nope(id INT);")},
		}

		require.Error(t, Apply(ctx, db, SQLite, bad, ""))
		assert.Equal(t, 0, countRows(t, db, "SELECT COUNT(*) FROM schema_migrations"))
	})

	t.Run("nil db", func(t *testing.T) {
		assert.Error(t, Apply(ctx, nil, SQLite, fstest.MapFS{}, ""))
	})
}

func TestExtractUp(t *testing.T) {
	assert.Equal(t, "\nCREATE x;\n", ExtractUp("-- +migrate Up\nCREATE x;\n-- +migrate Down\nDROP x;"))
	assert.Equal(t, "CREATE y;", ExtractUp("CREATE y;"))
	assert.Equal(t, "\nCREATE z;", ExtractUp("-- +migrate Up\nCREATE z;"))
}
