package memory

import (
	"context"
	"fmt"
	"time"

	"docflow/internal/document/models"
	"docflow/internal/document/ports"
	id "docflow/pkg/domain"
	dErrors "docflow/pkg/domain-errors"
	"docflow/pkg/platform/sentinel"
)

// numShards spreads per-document row locks over a fixed set of mutexes.
const numShards = 128

// defaultTxTimeout is the maximum duration for a transaction without a deadline.
const defaultTxTimeout = 5 * time.Second

// RunInTx stages every write fn makes and applies them atomically when fn
// returns nil. FindByIDForUpdate inside fn holds the document's shard lock
// until the transaction ends.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, stores ports.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := s.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t := &memTx{
		s:       s,
		held:    make(map[int]bool),
		docs:    make(map[id.DocumentID]*models.Document),
		created: make(map[id.DocumentID]bool),
		deleted: make(map[id.DocumentID]bool),
	}
	defer t.release()

	if err := fn(ctx, ports.Stores{Documents: &txDocuments{t}, Versions: &txVersions{t}}); err != nil {
		return err
	}

	// Check again before publishing the staged writes.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return t.commit()
}

type memTx struct {
	s    *Store
	held map[int]bool

	docs     map[id.DocumentID]*models.Document
	created  map[id.DocumentID]bool
	deleted  map[id.DocumentID]bool
	versions []*models.DocumentVersion
}

// lock takes the shard for docID once per transaction. Transactions lock at
// most one document, so shard order cannot deadlock.
func (t *memTx) lock(docID id.DocumentID) {
	shard := shardFor(docID)
	if t.held[shard] {
		return
	}
	t.s.shards[shard].Lock()
	t.held[shard] = true
}

func (t *memTx) release() {
	for shard := range t.held {
		t.s.shards[shard].Unlock()
	}
	t.held = nil
}

func (t *memTx) find(docID id.DocumentID) (*models.Document, error) {
	if t.deleted[docID] {
		return nil, fmt.Errorf("document %s: %w", docID, sentinel.ErrNotFound)
	}
	if doc, ok := t.docs[docID]; ok {
		return doc.Clone(), nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.s.findLocked(docID)
}

func (t *memTx) stagedVersions(docID id.DocumentID) []*models.DocumentVersion {
	var out []*models.DocumentVersion
	for _, v := range t.versions {
		if v.DocumentID == docID {
			out = append(out, v)
		}
	}
	return out
}

// commit validates every staged write against the committed state, then
// applies them all. Nothing is applied if any check fails.
func (t *memTx) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for docID := range t.deleted {
		if _, ok := s.documents[docID]; !ok && !t.created[docID] {
			return fmt.Errorf("document %s: %w", docID, sentinel.ErrNotFound)
		}
	}
	for docID, doc := range t.docs {
		if t.created[docID] {
			if _, ok := s.documents[docID]; ok {
				return fmt.Errorf("document %s exists: %w", docID, sentinel.ErrConflict)
			}
			if _, ok := s.docNos[doc.DocNo]; ok {
				return fmt.Errorf("doc_no %s taken: %w", doc.DocNo, sentinel.ErrConflict)
			}
			continue
		}
		if _, ok := s.documents[docID]; !ok {
			return fmt.Errorf("document %s: %w", docID, sentinel.ErrNotFound)
		}
	}
	next := make(map[id.DocumentID]int)
	for _, v := range t.versions {
		if _, ok := next[v.DocumentID]; !ok {
			next[v.DocumentID] = len(s.versions[v.DocumentID]) + 1
		}
		if v.VersionNumber != next[v.DocumentID] {
			return fmt.Errorf("version %d of document %s: %w", v.VersionNumber, v.DocumentID, sentinel.ErrConflict)
		}
		next[v.DocumentID]++
	}

	for docID := range t.deleted {
		s.deleteLocked(docID)
	}
	for docID, doc := range t.docs {
		s.documents[docID] = doc
		s.docNos[doc.DocNo] = docID
	}
	for _, v := range t.versions {
		s.versions[v.DocumentID] = append(s.versions[v.DocumentID], v)
	}
	return nil
}

type txDocuments struct {
	t *memTx
}

func (d *txDocuments) Create(_ context.Context, doc *models.Document) error {
	if _, err := d.t.find(doc.ID); err == nil {
		return fmt.Errorf("document %s exists: %w", doc.ID, sentinel.ErrConflict)
	}
	d.t.docs[doc.ID] = doc.Clone()
	d.t.created[doc.ID] = true
	delete(d.t.deleted, doc.ID)
	return nil
}

func (d *txDocuments) FindByID(_ context.Context, docID id.DocumentID) (*models.Document, error) {
	return d.t.find(docID)
}

func (d *txDocuments) FindByIDForUpdate(_ context.Context, docID id.DocumentID) (*models.Document, error) {
	d.t.lock(docID)
	return d.t.find(docID)
}

func (d *txDocuments) Update(_ context.Context, doc *models.Document) error {
	if _, err := d.t.find(doc.ID); err != nil {
		return err
	}
	d.t.docs[doc.ID] = doc.Clone()
	return nil
}

func (d *txDocuments) Delete(_ context.Context, docID id.DocumentID) error {
	if _, err := d.t.find(docID); err != nil {
		return err
	}
	delete(d.t.docs, docID)
	d.t.deleted[docID] = true
	kept := d.t.versions[:0]
	for _, v := range d.t.versions {
		if v.DocumentID != docID {
			kept = append(kept, v)
		}
	}
	d.t.versions = kept
	return nil
}

type txVersions struct {
	t *memTx
}

func (v *txVersions) Append(_ context.Context, version *models.DocumentVersion) (int, error) {
	if _, err := v.t.find(version.DocumentID); err != nil {
		return 0, err
	}
	v.t.s.mu.RLock()
	committed := len(v.t.s.versions[version.DocumentID])
	v.t.s.mu.RUnlock()

	version.VersionNumber = committed + len(v.t.stagedVersions(version.DocumentID)) + 1
	v.t.versions = append(v.t.versions, version.Clone())
	return version.VersionNumber, nil
}

func (v *txVersions) ListByDocument(_ context.Context, docID id.DocumentID, limit, offset int) ([]*models.DocumentVersion, int, error) {
	var committed []*models.DocumentVersion
	if !v.t.deleted[docID] {
		v.t.s.mu.RLock()
		committed = append(committed, v.t.s.versions[docID]...)
		v.t.s.mu.RUnlock()
	}
	list, total := page(committed, v.t.stagedVersions(docID), limit, offset)
	return list, total, nil
}

func (v *txVersions) FindByID(_ context.Context, docID id.DocumentID, versionID id.VersionID) (*models.DocumentVersion, error) {
	staged := v.t.stagedVersions(docID)
	if found, err := findVersion(staged, versionID); err == nil {
		return found, nil
	}
	if v.t.deleted[docID] {
		return nil, fmt.Errorf("version %s: %w", versionID, sentinel.ErrNotFound)
	}
	v.t.s.mu.RLock()
	defer v.t.s.mu.RUnlock()
	return findVersion(v.t.s.versions[docID], versionID)
}

// shardFor hashes the document id with FNV-1a.
func shardFor(docID id.DocumentID) int {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for _, b := range docID {
		h ^= uint32(b)
		h *= fnvPrime
	}
	return int(h % numShards)
}
