// Package postgres is the PostgreSQL document backend. Heads live in
// documents, history in document_versions and number counters in
// document_sequences. Works with either the pgx stdlib driver or lib/pq.
package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"docflow/internal/document/models"
	id "docflow/pkg/domain"
)

// DefaultTxTimeout bounds transactions whose context carries no deadline.
const DefaultTxTimeout = 5 * time.Second

// Store binds the document and version stores to one database handle.
type Store struct {
	db      *sql.DB
	timeout time.Duration
}

type Option func(*Store)

// WithTxTimeout overrides DefaultTxTimeout.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, timeout: DefaultTxTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Documents() *DocumentStore {
	return &DocumentStore{db: s.db}
}

func (s *Store) Versions() *VersionStore {
	return &VersionStore{db: s.db}
}

type scanner interface {
	Scan(dest ...any) error
}

func encodeAttachment(a *models.Attachment) (any, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode attachment: %w", err)
	}
	return string(b), nil
}

func decodeAttachment(raw []byte) (*models.Attachment, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var a models.Attachment
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode attachment: %w", err)
	}
	return &a, nil
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func datePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	d := models.TruncateDate(nt.Time)
	return &d
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func documentID(u uuid.UUID) id.DocumentID { return id.DocumentID(u) }
