package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"docflow/internal/document/models"
	"docflow/internal/document/ports"
)

// SequenceAllocator keeps one counter row per (doc_type, year). The upsert
// takes the row lock, so concurrent callers get distinct numbers.
type SequenceAllocator struct {
	db      *sql.DB
	timeout time.Duration
}

var _ ports.SequenceAllocator = (*SequenceAllocator)(nil)

func NewSequenceAllocator(db *sql.DB) *SequenceAllocator {
	return &SequenceAllocator{db: db, timeout: DefaultTxTimeout}
}

// Next runs on the pool, never inside the caller's transaction, so a rolled
// back create leaves a gap instead of holding the counter lock.
func (a *SequenceAllocator) Next(ctx context.Context, docType models.DocType, year int) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var n int64
	err := a.db.QueryRowContext(ctx, `
		INSERT INTO document_sequences (doc_type, year, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type, year)
		DO UPDATE SET last_number = document_sequences.last_number + 1
		RETURNING last_number`,
		string(docType), year,
	).Scan(&n)
	if err != nil {
		return 0, classify(fmt.Sprintf("allocate %s/%d", docType, year), err)
	}
	return n, nil
}

// Peek returns the last issued number, 0 when none has been issued.
func (a *SequenceAllocator) Peek(ctx context.Context, docType models.DocType, year int) (int64, error) {
	var n int64
	err := a.db.QueryRowContext(ctx,
		`SELECT last_number FROM document_sequences WHERE doc_type = $1 AND year = $2`,
		string(docType), year,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, classify(fmt.Sprintf("peek %s/%d", docType, year), err)
	}
	return n, nil
}
