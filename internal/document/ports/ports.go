//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

// Package ports defines the interfaces the document service consumes.
// Store packages implement them; the service never imports a backend.
package ports

import (
	"context"
	"io"
	"time"

	"docflow/internal/document/models"
	id "docflow/pkg/domain"
)

// DocumentStore persists the mutable document head.
// Implementations return sentinel.ErrNotFound for missing rows and
// sentinel.ErrConflict when a write loses a race.
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error)

	// FindByIDForUpdate reads the head and holds its row lock until the
	// surrounding transaction ends. Outside a transaction it behaves like FindByID.
	FindByIDForUpdate(ctx context.Context, docID id.DocumentID) (*models.Document, error)

	Update(ctx context.Context, doc *models.Document) error

	// Delete removes the head and, by cascade, every version row.
	Delete(ctx context.Context, docID id.DocumentID) error
}

// VersionStore is the append-only history ledger.
type VersionStore interface {
	// Append assigns the next version number for the document (max+1, or 1)
	// and writes the row. The assigned number is also set on v.
	Append(ctx context.Context, v *models.DocumentVersion) (int, error)

	// ListByDocument returns one page of history, newest first, and the total count.
	ListByDocument(ctx context.Context, docID id.DocumentID, limit, offset int) ([]*models.DocumentVersion, int, error)

	// FindByID returns sentinel.ErrNotFound when the version does not belong to docID.
	FindByID(ctx context.Context, docID id.DocumentID, versionID id.VersionID) (*models.DocumentVersion, error)
}

// SequenceAllocator issues document numbers. Next is atomic per (docType, year)
// and returns sentinel.ErrUnavailable when its backend cannot be reached.
type SequenceAllocator interface {
	Next(ctx context.Context, docType models.DocType, year int) (int64, error)
	Peek(ctx context.Context, docType models.DocType, year int) (int64, error)
}

// Stores is the set of stores bound to one transaction.
type Stores struct {
	Documents DocumentStore
	Versions  VersionStore
}

// TxRunner provides the atomic boundary for snapshot-then-apply. The callback
// must use the ctx and stores it is given; all of its writes commit together
// or not at all.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}

// BlobStore holds attachment bytes. The service persists only the returned path.
type BlobStore interface {
	Put(ctx context.Context, name, mimeType string, size int64, r io.Reader) (string, error)
	Delete(ctx context.Context, path string) error
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// EventPublisher delivers lifecycle events after commit.
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}
