package postgres

import (
	"context"
	"database/sql"

	"docflow/internal/document/ports"
	txcontext "docflow/pkg/platform/tx"
)

var _ ports.TxRunner = (*Store)(nil)

// RunInTx runs fn in a read-committed transaction. Row locks taken by
// FindByIDForUpdate serialize writers per document.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, stores ports.Stores) error) error {
	if _, ok := ctx.Deadline(); !ok && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	stores := ports.Stores{
		Documents: s.Documents(),
		Versions:  s.Versions(),
	}
	var fnErr error
	err := txcontext.Run(ctx, s.db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(ctx context.Context) error {
		fnErr = fn(ctx, stores)
		return fnErr
	})
	if err == nil || err == fnErr {
		return err
	}
	return classify("document transaction", err)
}
