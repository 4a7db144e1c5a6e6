package handler

import (
	"strings"
	"time"

	"docflow/internal/document/models"
	dErrors "docflow/pkg/domain-errors"
)

const dateLayout = "2006-01-02"

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, dErrors.New(dErrors.CodeInvalidInput, field+" must be a date (YYYY-MM-DD)")
}

func parseDatePtr(field string, raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	t, err := parseDate(field, *raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateDocumentRequest is the HTTP request body for POST /documents.
// The creator is the authenticated actor, never a body field.
type CreateDocumentRequest struct {
	DocType       string             `json:"doc_type"`
	Subject       string             `json:"subject"`
	Content       string             `json:"content"`
	IssueDate     *string            `json:"issue_date,omitempty"`
	EffectiveDate *string            `json:"effective_date,omitempty"`
	EmployeeID    *string            `json:"employee_id,omitempty"`
	Attachment    *models.Attachment `json:"attachment,omitempty"`
}

// ToModel converts the body; field validation happens in the service.
func (r *CreateDocumentRequest) ToModel(actorID string) (*models.CreateRequest, error) {
	out := &models.CreateRequest{
		DocType:    models.DocType(r.DocType),
		Subject:    r.Subject,
		Content:    r.Content,
		EmployeeID: r.EmployeeID,
		Attachment: r.Attachment,
		CreatedBy:  actorID,
	}
	if r.IssueDate != nil {
		issue, err := parseDate("issue_date", *r.IssueDate)
		if err != nil {
			return nil, err
		}
		out.IssueDate = issue
	}
	effective, err := parseDatePtr("effective_date", r.EffectiveDate)
	if err != nil {
		return nil, err
	}
	out.EffectiveDate = effective
	return out, nil
}

// UpdateDocumentRequest is the HTTP request body for PATCH /documents/{id}.
// Absent fields are left unchanged; clear_* flags null optional fields.
type UpdateDocumentRequest struct {
	Subject            *string            `json:"subject,omitempty"`
	Content            *string            `json:"content,omitempty"`
	IssueDate          *string            `json:"issue_date,omitempty"`
	EffectiveDate      *string            `json:"effective_date,omitempty"`
	ClearEffectiveDate bool               `json:"clear_effective_date,omitempty"`
	EmployeeID         *string            `json:"employee_id,omitempty"`
	ClearEmployeeID    bool               `json:"clear_employee_id,omitempty"`
	Attachment         *models.Attachment `json:"attachment,omitempty"`
	ClearAttachment    bool               `json:"clear_attachment,omitempty"`
	ChangeNote         string             `json:"change_note"`
}

func (r *UpdateDocumentRequest) ToModel() (*models.UpdateRequest, error) {
	issue, err := parseDatePtr("issue_date", r.IssueDate)
	if err != nil {
		return nil, err
	}
	effective, err := parseDatePtr("effective_date", r.EffectiveDate)
	if err != nil {
		return nil, err
	}
	return &models.UpdateRequest{
		Subject:            r.Subject,
		Content:            r.Content,
		IssueDate:          issue,
		EffectiveDate:      effective,
		ClearEffectiveDate: r.ClearEffectiveDate,
		EmployeeID:         r.EmployeeID,
		ClearEmployeeID:    r.ClearEmployeeID,
		Attachment:         r.Attachment,
		ClearAttachment:    r.ClearAttachment,
		ChangeNote:         r.ChangeNote,
	}, nil
}

// RestoreRequest is the HTTP request body for POST /documents/{id}/restore.
type RestoreRequest struct {
	VersionID string `json:"version_id"`
	Note      string `json:"note"`
}

func (r *RestoreRequest) Normalize() {
	r.VersionID = strings.TrimSpace(r.VersionID)
	r.Note = strings.TrimSpace(r.Note)
}

func (r *RestoreRequest) Validate() error {
	if r.VersionID == "" {
		return dErrors.New(dErrors.CodeValidation, "version_id is required")
	}
	if r.Note == "" {
		return dErrors.New(dErrors.CodeValidation, "note is required")
	}
	if len([]rune(r.Note)) > 1000 {
		return dErrors.New(dErrors.CodeValidation, "note must be at most 1000 characters")
	}
	return nil
}
