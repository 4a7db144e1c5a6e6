package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"docflow/internal/document/models"
	"docflow/internal/document/ports"
	id "docflow/pkg/domain"
	"docflow/pkg/platform/sentinel"
	txcontext "docflow/pkg/platform/tx"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = time.RFC3339Nano

	documentColumns = `id, doc_type, doc_no, subject, content, issue_date, effective_date, status,
	attachment, employee_id, created_by, approved_by, approved_at, created_at, updated_at`
	versionColumns = `id, document_id, version_number, action, subject, content, issue_date,
	effective_date, employee_id, attachment, status, changed_by, change_note, created_at`
)

// DefaultTxTimeout bounds transactions whose context carries no deadline.
const DefaultTxTimeout = 5 * time.Second

// Store implements the document, version and transaction ports on one file.
type Store struct {
	db      *sql.DB
	timeout time.Duration
}

var _ ports.TxRunner = (*Store)(nil)

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

func (s *Store) Documents() *DocumentStore { return &DocumentStore{db: s.db} }
func (s *Store) Versions() *VersionStore   { return &VersionStore{db: s.db} }

// RunInTx runs fn in an IMMEDIATE transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, stores ports.Stores) error) error {
	if _, ok := ctx.Deadline(); !ok && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	stores := ports.Stores{Documents: s.Documents(), Versions: s.Versions()}
	var fnErr error
	err := txcontext.Run(ctx, s.db, nil, func(ctx context.Context) error {
		fnErr = fn(ctx, stores)
		return fnErr
	})
	if err == nil || err == fnErr {
		return err
	}
	return classify("document transaction", err)
}

type DocumentStore struct {
	db *sql.DB
}

var _ ports.DocumentStore = (*DocumentStore)(nil)

func (s *DocumentStore) Create(ctx context.Context, doc *models.Document) error {
	attachment, err := encodeAttachment(doc.Attachment)
	if err != nil {
		return err
	}
	query := `INSERT INTO documents (` + documentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = txcontext.Or(ctx, s.db).ExecContext(ctx, query,
		doc.ID.String(),
		string(doc.DocType),
		doc.DocNo,
		doc.Subject,
		doc.Content,
		formatDate(doc.IssueDate),
		formatDatePtr(doc.EffectiveDate),
		string(doc.Status),
		attachment,
		nullableString(doc.EmployeeID),
		doc.CreatedBy,
		nullableString(doc.ApprovedBy),
		formatTimePtr(doc.ApprovedAt),
		formatTime(doc.CreatedAt),
		formatTime(doc.UpdatedAt),
	)
	return classify("create document", err)
}

func (s *DocumentStore) FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	row := txcontext.Or(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, docID.String())
	doc, err := scanDocument(row)
	if err != nil {
		return nil, classify(fmt.Sprintf("find document %s", docID), err)
	}
	return doc, nil
}

// FindByIDForUpdate is a plain read: the IMMEDIATE transaction already holds
// the database write lock.
func (s *DocumentStore) FindByIDForUpdate(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	return s.FindByID(ctx, docID)
}

func (s *DocumentStore) Update(ctx context.Context, doc *models.Document) error {
	attachment, err := encodeAttachment(doc.Attachment)
	if err != nil {
		return err
	}
	res, err := txcontext.Or(ctx, s.db).ExecContext(ctx, `
		UPDATE documents SET
			subject = ?, content = ?, issue_date = ?, effective_date = ?, status = ?,
			attachment = ?, employee_id = ?, approved_by = ?, approved_at = ?, updated_at = ?
		WHERE id = ?`,
		doc.Subject,
		doc.Content,
		formatDate(doc.IssueDate),
		formatDatePtr(doc.EffectiveDate),
		string(doc.Status),
		attachment,
		nullableString(doc.EmployeeID),
		nullableString(doc.ApprovedBy),
		formatTimePtr(doc.ApprovedAt),
		formatTime(doc.UpdatedAt),
		doc.ID.String(),
	)
	if err != nil {
		return classify("update document", err)
	}
	return requireRow(res, fmt.Sprintf("update document %s", doc.ID))
}

func (s *DocumentStore) Delete(ctx context.Context, docID id.DocumentID) error {
	res, err := txcontext.Or(ctx, s.db).ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, docID.String())
	if err != nil {
		return classify("delete document", err)
	}
	return requireRow(res, fmt.Sprintf("delete document %s", docID))
}

type VersionStore struct {
	db *sql.DB
}

var _ ports.VersionStore = (*VersionStore)(nil)

func (s *VersionStore) Append(ctx context.Context, v *models.DocumentVersion) (int, error) {
	q := txcontext.Or(ctx, s.db)

	var next int
	if err := q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version_number), 0) + 1 FROM document_versions WHERE document_id = ?`,
		v.DocumentID.String(),
	).Scan(&next); err != nil {
		return 0, classify("next version number", err)
	}

	attachment, err := encodeAttachment(v.Attachment)
	if err != nil {
		return 0, err
	}
	_, err = q.ExecContext(ctx, `INSERT INTO document_versions (`+versionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID.String(),
		v.DocumentID.String(),
		next,
		string(v.Action),
		v.Subject,
		v.Content,
		formatDate(v.IssueDate),
		formatDatePtr(v.EffectiveDate),
		nullableString(v.EmployeeID),
		attachment,
		string(v.Status),
		v.ChangedBy,
		v.ChangeNote,
		formatTime(v.CreatedAt),
	)
	if err != nil {
		return 0, classify("append version", err)
	}
	v.VersionNumber = next
	return next, nil
}

func (s *VersionStore) ListByDocument(ctx context.Context, docID id.DocumentID, limit, offset int) ([]*models.DocumentVersion, int, error) {
	q := txcontext.Or(ctx, s.db)

	var total int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM document_versions WHERE document_id = ?`, docID.String(),
	).Scan(&total); err != nil {
		return nil, 0, classify("count versions", err)
	}

	rows, err := q.QueryContext(ctx, `SELECT `+versionColumns+` FROM document_versions
		WHERE document_id = ? ORDER BY version_number DESC LIMIT ? OFFSET ?`,
		docID.String(), limit, offset)
	if err != nil {
		return nil, 0, classify("list versions", err)
	}
	defer rows.Close()

	versions := make([]*models.DocumentVersion, 0, limit)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify("list versions", err)
	}
	return versions, total, nil
}

func (s *VersionStore) FindByID(ctx context.Context, docID id.DocumentID, versionID id.VersionID) (*models.DocumentVersion, error) {
	row := txcontext.Or(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM document_versions WHERE id = ? AND document_id = ?`,
		versionID.String(), docID.String())
	v, err := scanVersion(row)
	if err != nil {
		return nil, classify(fmt.Sprintf("find version %s", versionID), err)
	}
	return v, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*models.Document, error) {
	var (
		doc                             models.Document
		rawID, docType, status          string
		issueDate, createdAt, updatedAt string
		effectiveDate, attachment       sql.NullString
		employeeID, approvedBy          sql.NullString
		approvedAt                      sql.NullString
	)
	err := row.Scan(&rawID, &docType, &doc.DocNo, &doc.Subject, &doc.Content, &issueDate, &effectiveDate,
		&status, &attachment, &employeeID, &doc.CreatedBy, &approvedBy, &approvedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	var p parser
	doc.ID = id.DocumentID(p.id(rawID))
	doc.DocType = models.DocType(docType)
	doc.Status = models.Status(status)
	doc.IssueDate = p.date(issueDate)
	doc.EffectiveDate = p.datePtr(effectiveDate)
	doc.Attachment = p.attachment(attachment)
	doc.EmployeeID = stringPtr(employeeID)
	doc.ApprovedBy = stringPtr(approvedBy)
	doc.ApprovedAt = p.timestampPtr(approvedAt)
	doc.CreatedAt = p.timestamp(createdAt)
	doc.UpdatedAt = p.timestamp(updatedAt)
	if p.err != nil {
		return nil, p.err
	}
	return &doc, nil
}

func scanVersion(row scanner) (*models.DocumentVersion, error) {
	var (
		v                            models.DocumentVersion
		rawID, rawDocID, action      string
		status, issueDate, createdAt string
		effectiveDate, attachment    sql.NullString
		employeeID                   sql.NullString
	)
	err := row.Scan(&rawID, &rawDocID, &v.VersionNumber, &action, &v.Subject, &v.Content, &issueDate,
		&effectiveDate, &employeeID, &attachment, &status, &v.ChangedBy, &v.ChangeNote, &createdAt)
	if err != nil {
		return nil, err
	}

	var p parser
	v.ID = id.VersionID(p.id(rawID))
	v.DocumentID = id.DocumentID(p.id(rawDocID))
	v.Action = models.Action(action)
	v.Status = models.Status(status)
	v.IssueDate = p.date(issueDate)
	v.EffectiveDate = p.datePtr(effectiveDate)
	v.EmployeeID = stringPtr(employeeID)
	v.Attachment = p.attachment(attachment)
	v.CreatedAt = p.timestamp(createdAt)
	if p.err != nil {
		return nil, p.err
	}
	return &v, nil
}

// parser decodes text columns and keeps the first error.
type parser struct {
	err error
}

func (p *parser) id(s string) uuid.UUID {
	u, err := uuid.Parse(s)
	p.keep(err)
	return u
}

func (p *parser) date(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	p.keep(err)
	return t
}

func (p *parser) datePtr(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := p.date(ns.String)
	return &t
}

func (p *parser) timestamp(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	p.keep(err)
	return t.UTC()
}

func (p *parser) timestampPtr(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := p.timestamp(ns.String)
	return &t
}

func (p *parser) attachment(ns sql.NullString) *models.Attachment {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var a models.Attachment
	if err := json.Unmarshal([]byte(ns.String), &a); err != nil {
		p.keep(fmt.Errorf("decode attachment: %w", err))
		return nil
	}
	return &a
}

func (p *parser) keep(err error) {
	if p.err == nil && err != nil {
		p.err = err
	}
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

func formatDate(t time.Time) string { return t.UTC().Format(dateLayout) }
func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func formatDatePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatDate(*t)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
	}
	return nil
}
