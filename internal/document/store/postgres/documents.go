package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"docflow/internal/document/models"
	"docflow/internal/document/ports"
	id "docflow/pkg/domain"
	"docflow/pkg/platform/sentinel"
	txcontext "docflow/pkg/platform/tx"
)

const documentColumns = `id, doc_type, doc_no, subject, content, issue_date, effective_date, status,
	attachment, employee_id, created_by, approved_by, approved_at, created_at, updated_at`

// DocumentStore reads and writes heads through the transaction carried by
// ctx, or the pool when there is none.
type DocumentStore struct {
	db *sql.DB
}

var _ ports.DocumentStore = (*DocumentStore)(nil)

func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) Create(ctx context.Context, doc *models.Document) error {
	attachment, err := encodeAttachment(doc.Attachment)
	if err != nil {
		return err
	}
	query := `INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err = txcontext.Or(ctx, s.db).ExecContext(ctx, query,
		doc.ID.String(),
		string(doc.DocType),
		doc.DocNo,
		doc.Subject,
		doc.Content,
		doc.IssueDate,
		nullableTime(doc.EffectiveDate),
		string(doc.Status),
		attachment,
		nullableString(doc.EmployeeID),
		doc.CreatedBy,
		nullableString(doc.ApprovedBy),
		nullableTime(doc.ApprovedAt),
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	return classify("create document", err)
}

func (s *DocumentStore) FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return s.find(ctx, query, docID)
}

// FindByIDForUpdate holds the row lock until the surrounding transaction
// ends. Concurrent mutations of the same document queue behind it.
func (s *DocumentStore) FindByIDForUpdate(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 FOR UPDATE`
	return s.find(ctx, query, docID)
}

func (s *DocumentStore) find(ctx context.Context, query string, docID id.DocumentID) (*models.Document, error) {
	row := txcontext.Or(ctx, s.db).QueryRowContext(ctx, query, docID.String())
	doc, err := scanDocument(row)
	if err != nil {
		return nil, classify(fmt.Sprintf("find document %s", docID), err)
	}
	return doc, nil
}

// Update rewrites the mutable columns. id, doc_type, doc_no, created_by and
// created_at are never written after insert.
func (s *DocumentStore) Update(ctx context.Context, doc *models.Document) error {
	attachment, err := encodeAttachment(doc.Attachment)
	if err != nil {
		return err
	}
	query := `
		UPDATE documents SET
			subject = $2,
			content = $3,
			issue_date = $4,
			effective_date = $5,
			status = $6,
			attachment = $7,
			employee_id = $8,
			approved_by = $9,
			approved_at = $10,
			updated_at = $11
		WHERE id = $1`
	res, err := txcontext.Or(ctx, s.db).ExecContext(ctx, query,
		doc.ID.String(),
		doc.Subject,
		doc.Content,
		doc.IssueDate,
		nullableTime(doc.EffectiveDate),
		string(doc.Status),
		attachment,
		nullableString(doc.EmployeeID),
		nullableString(doc.ApprovedBy),
		nullableTime(doc.ApprovedAt),
		doc.UpdatedAt,
	)
	if err != nil {
		return classify("update document", err)
	}
	return requireRow(res, fmt.Sprintf("update document %s", doc.ID))
}

// Delete removes the head; document_versions rows go with it by cascade.
func (s *DocumentStore) Delete(ctx context.Context, docID id.DocumentID) error {
	res, err := txcontext.Or(ctx, s.db).ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, docID.String())
	if err != nil {
		return classify("delete document", err)
	}
	return requireRow(res, fmt.Sprintf("delete document %s", docID))
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

func scanDocument(row scanner) (*models.Document, error) {
	var (
		doc           models.Document
		rawID         uuid.UUID
		docType       string
		status        string
		effectiveDate sql.NullTime
		attachment    []byte
		employeeID    sql.NullString
		approvedBy    sql.NullString
		approvedAt    sql.NullTime
	)
	err := row.Scan(
		&rawID,
		&docType,
		&doc.DocNo,
		&doc.Subject,
		&doc.Content,
		&doc.IssueDate,
		&effectiveDate,
		&status,
		&attachment,
		&employeeID,
		&doc.CreatedBy,
		&approvedBy,
		&approvedAt,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	att, err := decodeAttachment(attachment)
	if err != nil {
		return nil, err
	}
	doc.ID = documentID(rawID)
	doc.DocType = models.DocType(docType)
	doc.Status = models.Status(status)
	doc.IssueDate = models.TruncateDate(doc.IssueDate)
	doc.EffectiveDate = datePtr(effectiveDate)
	doc.Attachment = att
	doc.EmployeeID = stringPtr(employeeID)
	doc.ApprovedBy = stringPtr(approvedBy)
	doc.ApprovedAt = timePtr(approvedAt)
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	return &doc, nil
}
