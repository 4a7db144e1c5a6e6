package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"docflow/internal/document/models"
	"docflow/internal/document/ports"
)

// SequenceAllocator keeps one counter row per (doc_type, year) in the same
// file as the documents.
type SequenceAllocator struct {
	db *sql.DB
}

var _ ports.SequenceAllocator = (*SequenceAllocator)(nil)

func NewSequenceAllocator(db *sql.DB) *SequenceAllocator {
	return &SequenceAllocator{db: db}
}

func (a *SequenceAllocator) Next(ctx context.Context, docType models.DocType, year int) (int64, error) {
	var n int64
	err := a.db.QueryRowContext(ctx, `
		INSERT INTO document_sequences (doc_type, year, last_number) VALUES (?, ?, 1)
		ON CONFLICT (doc_type, year) DO UPDATE SET last_number = last_number + 1
		RETURNING last_number`,
		string(docType), year,
	).Scan(&n)
	if err != nil {
		return 0, classify(fmt.Sprintf("allocate %s/%d", docType, year), err)
	}
	return n, nil
}

func (a *SequenceAllocator) Peek(ctx context.Context, docType models.DocType, year int) (int64, error) {
	var n int64
	err := a.db.QueryRowContext(ctx,
		`SELECT last_number FROM document_sequences WHERE doc_type = ? AND year = ?`,
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
