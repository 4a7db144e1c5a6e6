package handler

import (
	"time"

	"docflow/internal/document/models"
)

// DocumentResponse renders dates as calendar dates and timestamps in UTC.
type DocumentResponse struct {
	ID            string             `json:"id"`
	DocType       string             `json:"doc_type"`
	DocNo         string             `json:"doc_no"`
	Subject       string             `json:"subject"`
	Content       string             `json:"content"`
	IssueDate     string             `json:"issue_date"`
	EffectiveDate *string            `json:"effective_date,omitempty"`
	Status        string             `json:"status"`
	Attachment    *models.Attachment `json:"attachment,omitempty"`
	EmployeeID    *string            `json:"employee_id,omitempty"`
	CreatedBy     string             `json:"created_by"`
	ApprovedBy    *string            `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time         `json:"approved_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func FromDocument(d *models.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:            d.ID.String(),
		DocType:       string(d.DocType),
		DocNo:         d.DocNo,
		Subject:       d.Subject,
		Content:       d.Content,
		IssueDate:     d.IssueDate.Format(dateLayout),
		EffectiveDate: formatDatePtr(d.EffectiveDate),
		Status:        string(d.Status),
		Attachment:    d.Attachment,
		EmployeeID:    d.EmployeeID,
		CreatedBy:     d.CreatedBy,
		ApprovedBy:    d.ApprovedBy,
		ApprovedAt:    utcPtr(d.ApprovedAt),
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
}

// VersionResponse is one history row: the state before Action was applied.
type VersionResponse struct {
	ID            string             `json:"id"`
	DocumentID    string             `json:"document_id"`
	VersionNumber int                `json:"version_number"`
	Action        string             `json:"action"`
	Subject       string             `json:"subject"`
	Content       string             `json:"content"`
	IssueDate     string             `json:"issue_date"`
	EffectiveDate *string            `json:"effective_date,omitempty"`
	EmployeeID    *string            `json:"employee_id,omitempty"`
	Attachment    *models.Attachment `json:"attachment,omitempty"`
	Status        string             `json:"status"`
	ChangedBy     string             `json:"changed_by"`
	ChangeNote    string             `json:"change_note"`
	CreatedAt     time.Time          `json:"created_at"`
}

func FromVersion(v *models.DocumentVersion) *VersionResponse {
	return &VersionResponse{
		ID:            v.ID.String(),
		DocumentID:    v.DocumentID.String(),
		VersionNumber: v.VersionNumber,
		Action:        string(v.Action),
		Subject:       v.Subject,
		Content:       v.Content,
		IssueDate:     v.IssueDate.Format(dateLayout),
		EffectiveDate: formatDatePtr(v.EffectiveDate),
		EmployeeID:    v.EmployeeID,
		Attachment:    v.Attachment,
		Status:        string(v.Status),
		ChangedBy:     v.ChangedBy,
		ChangeNote:    v.ChangeNote,
		CreatedAt:     v.CreatedAt.UTC(),
	}
}

// VersionPageResponse is one page of history, newest first.
type VersionPageResponse struct {
	Versions []*VersionResponse `json:"versions"`
	Total    int                `json:"total"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

func FromVersionPage(p *models.VersionPage) *VersionPageResponse {
	out := &VersionPageResponse{
		Versions: make([]*VersionResponse, 0, len(p.Versions)),
		Total:    p.Total,
		Limit:    p.Limit,
		Offset:   p.Offset,
	}
	for _, v := range p.Versions {
		out.Versions = append(out.Versions, FromVersion(v))
	}
	return out
}

// AttachmentURLResponse carries a time-limited download link.
type AttachmentURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
