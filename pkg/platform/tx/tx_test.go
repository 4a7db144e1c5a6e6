package tx

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestWithTxIgnoresNil(t *testing.T) {
	ctx := WithTx(context.Background(), nil)
	_, ok := From(ctx)
	assert.False(t, ok)
}

func TestOrFallsBackToDB(t *testing.T) {
	db := &sql.DB{}
	assert.Same(t, db, Or(context.Background(), db))

	tx := &sql.Tx{}
	assert.Same(t, tx, Or(WithTx(context.Background(), tx), db))
}

func TestRun(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "tx.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE items (name TEXT PRIMARY KEY)`)
	require.NoError(t, err)

	count := func() int {
		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&n))
		return n
	}
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		err := Run(ctx, db, nil, func(ctx context.Context) error {
			_, err := Or(ctx, db).ExecContext(ctx, `INSERT INTO items (name) VALUES ('a')`)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := Run(ctx, db, nil, func(ctx context.Context) error {
			if _, err := Or(ctx, db).ExecContext(ctx, `INSERT INTO items (name) VALUES ('b')`); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, count())
	})

	t.Run("nested run joins the outer transaction", func(t *testing.T) {
		err := Run(ctx, db, nil, func(outer context.Context) error {
			outerTx, _ := From(outer)
			return Run(outer, db, nil, func(inner context.Context) error {
				innerTx, _ := From(inner)
				assert.Same(t, outerTx, innerTx)
				return nil
			})
		})
		require.NoError(t, err)
	})
}
