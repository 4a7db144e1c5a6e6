package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"docflow/internal/document/models"
	"docflow/internal/document/ports"
	id "docflow/pkg/domain"
	txcontext "docflow/pkg/platform/tx"
)

const versionColumns = `id, document_id, version_number, action, subject, content, issue_date,
	effective_date, employee_id, attachment, status, changed_by, change_note, created_at`

// VersionStore is the append-only history table. Rows are never updated;
// a trigger rejects UPDATE statements outright.
type VersionStore struct {
	db *sql.DB
}

var _ ports.VersionStore = (*VersionStore)(nil)

func NewVersionStore(db *sql.DB) *VersionStore {
	return &VersionStore{db: db}
}

// Append numbers the row max+1 for its document. Callers hold the head's row
// lock, so the read-then-insert cannot interleave with another writer; the
// unique (document_id, version_number) constraint reports a conflict if it does.
func (s *VersionStore) Append(ctx context.Context, v *models.DocumentVersion) (int, error) {
	q := txcontext.Or(ctx, s.db)

	var next int
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version_number), 0) + 1 FROM document_versions WHERE document_id = $1`,
		v.DocumentID.String(),
	).Scan(&next)
	if err != nil {
		return 0, classify("next version number", err)
	}

	attachment, err := encodeAttachment(v.Attachment)
	if err != nil {
		return 0, err
	}
	query := `INSERT INTO document_versions (` + versionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err = q.ExecContext(ctx, query,
		v.ID.String(),
		v.DocumentID.String(),
		next,
		string(v.Action),
		v.Subject,
		v.Content,
		v.IssueDate,
		nullableTime(v.EffectiveDate),
		nullableString(v.EmployeeID),
		attachment,
		string(v.Status),
		v.ChangedBy,
		v.ChangeNote,
		v.CreatedAt,
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
		`SELECT COUNT(*) FROM document_versions WHERE document_id = $1`, docID.String(),
	).Scan(&total); err != nil {
		return nil, 0, classify("count versions", err)
	}

	query := `SELECT ` + versionColumns + ` FROM document_versions
		WHERE document_id = $1
		ORDER BY version_number DESC
		LIMIT $2 OFFSET $3`
	rows, err := q.QueryContext(ctx, query, docID.String(), limit, offset)
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
	query := `SELECT ` + versionColumns + ` FROM document_versions WHERE id = $1 AND document_id = $2`
	row := txcontext.Or(ctx, s.db).QueryRowContext(ctx, query, versionID.String(), docID.String())
	v, err := scanVersion(row)
	if err != nil {
		return nil, classify(fmt.Sprintf("find version %s", versionID), err)
	}
	return v, nil
}

func scanVersion(row scanner) (*models.DocumentVersion, error) {
	var (
		v             models.DocumentVersion
		rawID         uuid.UUID
		rawDocID      uuid.UUID
		action        string
		status        string
		effectiveDate sql.NullTime
		employeeID    sql.NullString
		attachment    []byte
	)
	err := row.Scan(
		&rawID,
		&rawDocID,
		&v.VersionNumber,
		&action,
		&v.Subject,
		&v.Content,
		&v.IssueDate,
		&effectiveDate,
		&employeeID,
		&attachment,
		&status,
		&v.ChangedBy,
		&v.ChangeNote,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	att, err := decodeAttachment(attachment)
	if err != nil {
		return nil, err
	}
	v.ID = id.VersionID(rawID)
	v.DocumentID = documentID(rawDocID)
	v.Action = models.Action(action)
	v.Status = models.Status(status)
	v.IssueDate = models.TruncateDate(v.IssueDate)
	v.EffectiveDate = datePtr(effectiveDate)
	v.EmployeeID = stringPtr(employeeID)
	v.Attachment = att
	v.CreatedAt = v.CreatedAt.UTC()
	return &v, nil
}
