// Package memory is the in-memory document backend used by tests and local
// development. It mirrors the SQL backends' semantics: unique doc_no,
// cascading delete, per-document row locks and all-or-nothing commits.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"docflow/internal/document/models"
	"docflow/internal/document/ports"
	id "docflow/pkg/domain"
	"docflow/pkg/platform/sentinel"
)

// Store holds heads and history. Documents and Versions return views that
// write directly; RunInTx stages writes and applies them at commit.
type Store struct {
	mu        sync.RWMutex
	documents map[id.DocumentID]*models.Document
	docNos    map[string]id.DocumentID
	versions  map[id.DocumentID][]*models.DocumentVersion

	shards  [numShards]sync.Mutex
	timeout time.Duration
}

type Option func(*Store)

// WithTxTimeout bounds transactions whose context carries no deadline.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		documents: make(map[id.DocumentID]*models.Document),
		docNos:    make(map[string]id.DocumentID),
		versions:  make(map[id.DocumentID][]*models.DocumentVersion),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Documents returns the direct head store.
func (s *Store) Documents() *DocumentStore {
	return &DocumentStore{s: s}
}

// Versions returns the direct history store.
func (s *Store) Versions() *VersionStore {
	return &VersionStore{s: s}
}

// DocumentStore writes heads without a transaction.
type DocumentStore struct {
	s *Store
}

var _ ports.DocumentStore = (*DocumentStore)(nil)

func (d *DocumentStore) Create(_ context.Context, doc *models.Document) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	return d.s.createLocked(doc)
}

func (d *DocumentStore) FindByID(_ context.Context, docID id.DocumentID) (*models.Document, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	return d.s.findLocked(docID)
}

// FindByIDForUpdate takes no lock outside a transaction.
func (d *DocumentStore) FindByIDForUpdate(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	return d.FindByID(ctx, docID)
}

func (d *DocumentStore) Update(_ context.Context, doc *models.Document) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	if _, ok := d.s.documents[doc.ID]; !ok {
		return fmt.Errorf("document %s: %w", doc.ID, sentinel.ErrNotFound)
	}
	d.s.documents[doc.ID] = doc.Clone()
	return nil
}

func (d *DocumentStore) Delete(_ context.Context, docID id.DocumentID) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	if _, ok := d.s.documents[docID]; !ok {
		return fmt.Errorf("document %s: %w", docID, sentinel.ErrNotFound)
	}
	d.s.deleteLocked(docID)
	return nil
}

// VersionStore writes history without a transaction.
type VersionStore struct {
	s *Store
}

var _ ports.VersionStore = (*VersionStore)(nil)

func (v *VersionStore) Append(_ context.Context, version *models.DocumentVersion) (int, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.documents[version.DocumentID]; !ok {
		return 0, fmt.Errorf("document %s: %w", version.DocumentID, sentinel.ErrNotFound)
	}
	version.VersionNumber = len(v.s.versions[version.DocumentID]) + 1
	v.s.versions[version.DocumentID] = append(v.s.versions[version.DocumentID], version.Clone())
	return version.VersionNumber, nil
}

func (v *VersionStore) ListByDocument(_ context.Context, docID id.DocumentID, limit, offset int) ([]*models.DocumentVersion, int, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	list, total := page(v.s.versions[docID], nil, limit, offset)
	return list, total, nil
}

func (v *VersionStore) FindByID(_ context.Context, docID id.DocumentID, versionID id.VersionID) (*models.DocumentVersion, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return findVersion(v.s.versions[docID], versionID)
}

func (s *Store) createLocked(doc *models.Document) error {
	if _, ok := s.documents[doc.ID]; ok {
		return fmt.Errorf("document %s exists: %w", doc.ID, sentinel.ErrConflict)
	}
	if _, ok := s.docNos[doc.DocNo]; ok {
		return fmt.Errorf("doc_no %s taken: %w", doc.DocNo, sentinel.ErrConflict)
	}
	s.documents[doc.ID] = doc.Clone()
	s.docNos[doc.DocNo] = doc.ID
	return nil
}

func (s *Store) findLocked(docID id.DocumentID) (*models.Document, error) {
	doc, ok := s.documents[docID]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", docID, sentinel.ErrNotFound)
	}
	return doc.Clone(), nil
}

func (s *Store) deleteLocked(docID id.DocumentID) {
	if doc, ok := s.documents[docID]; ok {
		delete(s.docNos, doc.DocNo)
	}
	delete(s.documents, docID)
	delete(s.versions, docID)
}

// page merges committed and staged rows and returns the newest-first window.
func page(committed, staged []*models.DocumentVersion, limit, offset int) ([]*models.DocumentVersion, int) {
	all := make([]*models.DocumentVersion, 0, len(committed)+len(staged))
	all = append(all, committed...)
	all = append(all, staged...)
	sort.Slice(all, func(i, j int) bool {
		return all[i].VersionNumber > all[j].VersionNumber
	})
	total := len(all)
	if offset >= total {
		return []*models.DocumentVersion{}, total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	out := make([]*models.DocumentVersion, 0, end-offset)
	for _, v := range all[offset:end] {
		out = append(out, v.Clone())
	}
	return out, total
}

func findVersion(list []*models.DocumentVersion, versionID id.VersionID) (*models.DocumentVersion, error) {
	for _, v := range list {
		if v.ID == versionID {
			return v.Clone(), nil
		}
	}
	return nil, fmt.Errorf("version %s: %w", versionID, sentinel.ErrNotFound)
}
