package models

import (
	"strings"
	"time"

	id "docflow/pkg/domain"
	dErrors "docflow/pkg/domain-errors"
)

// DocType classifies an administrative record. Each type has its own
// numbering sequence per year.
type DocType string

const (
	DocTypeDecision DocType = "decision"
	DocTypeNotice   DocType = "notice"
	DocTypeContract DocType = "contract"
	DocTypeForm     DocType = "form"
)

var docTypePrefixes = map[DocType]string{
	DocTypeDecision: "QĐ",
	DocTypeNotice:   "TB",
	DocTypeContract: "HĐ",
	DocTypeForm:     "BM",
}

// IsValid reports whether t is a known document type.
func (t DocType) IsValid() bool {
	_, ok := docTypePrefixes[t]
	return ok
}

// Prefix returns the doc_no prefix for t, or "" for unknown types.
func (t DocType) Prefix() string {
	return docTypePrefixes[t]
}

// Attachment is an opaque reference to a blob owned by the blob store.
// The core persists only this metadata and never reads the bytes.
type Attachment struct {
	Path     string `json:"path" validate:"required,max=1024"`
	Name     string `json:"name" validate:"required,max=255"`
	Size     int64  `json:"size" validate:"min=0"`
	MimeType string `json:"mime" validate:"omitempty,max=127"`
}

func (a *Attachment) clone() *Attachment {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

// Document is the mutable head of an administrative record.
//
// Invariants:
//   - DocNo is assigned once at creation and never changes
//   - Status changes only through Transition (see transitions in status.go)
//   - ApprovedBy and ApprovedAt are set together, only by the approve action
//   - CreatedBy is immutable
//   - EffectiveDate, when set, is not before IssueDate
type Document struct {
	ID            id.DocumentID `json:"id"`
	DocType       DocType       `json:"doc_type"`
	DocNo         string        `json:"doc_no"`
	Subject       string        `json:"subject"`
	Content       string        `json:"content"`
	IssueDate     time.Time     `json:"issue_date"`
	EffectiveDate *time.Time    `json:"effective_date,omitempty"`
	Status        Status        `json:"status"`
	Attachment    *Attachment   `json:"attachment,omitempty"`
	EmployeeID    *string       `json:"employee_id,omitempty"`
	CreatedBy     string        `json:"created_by"`
	ApprovedBy    *string       `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time    `json:"approved_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewDocument builds a Draft head from validated input and an allocated number.
func NewDocument(docID id.DocumentID, docNo string, req *CreateRequest, now time.Time) (*Document, error) {
	if docID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "document id is required")
	}
	if strings.TrimSpace(docNo) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "doc_no is required")
	}
	issue := req.IssueDate
	if issue.IsZero() {
		issue = now
	}
	doc := &Document{
		ID:            docID,
		DocType:       req.DocType,
		DocNo:         docNo,
		Subject:       req.Subject,
		Content:       req.Content,
		IssueDate:     TruncateDate(issue),
		EffectiveDate: truncateDatePtr(req.EffectiveDate),
		Status:        StatusDraft,
		Attachment:    req.Attachment.clone(),
		EmployeeID:    cloneString(req.EmployeeID),
		CreatedBy:     req.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := doc.checkDates(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Clone returns a deep copy so a head can be modified without touching the
// caller's value.
func (d *Document) Clone() *Document {
	cp := *d
	cp.EffectiveDate = cloneTime(d.EffectiveDate)
	cp.Attachment = d.Attachment.clone()
	cp.EmployeeID = cloneString(d.EmployeeID)
	cp.ApprovedBy = cloneString(d.ApprovedBy)
	cp.ApprovedAt = cloneTime(d.ApprovedAt)
	return &cp
}

// Snapshot captures every mutable field of the head.
func (d *Document) Snapshot() Snapshot {
	return Snapshot{
		Subject:       d.Subject,
		Content:       d.Content,
		IssueDate:     d.IssueDate,
		EffectiveDate: cloneTime(d.EffectiveDate),
		EmployeeID:    cloneString(d.EmployeeID),
		Attachment:    d.Attachment.clone(),
		Status:        d.Status,
	}
}

// ApplyEdit applies a partial update. Status and approval fields are never
// touched by an edit. Edits are not restricted to Draft here; gating edits by
// status is the permission collaborator's job.
func (d *Document) ApplyEdit(req *UpdateRequest, now time.Time) error {
	if req.Subject != nil {
		d.Subject = *req.Subject
	}
	if req.Content != nil {
		d.Content = *req.Content
	}
	if req.IssueDate != nil {
		d.IssueDate = TruncateDate(*req.IssueDate)
	}
	if req.ClearEffectiveDate {
		d.EffectiveDate = nil
	} else if req.EffectiveDate != nil {
		d.EffectiveDate = truncateDatePtr(req.EffectiveDate)
	}
	if req.ClearEmployeeID {
		d.EmployeeID = nil
	} else if req.EmployeeID != nil {
		d.EmployeeID = cloneString(req.EmployeeID)
	}
	if req.ClearAttachment {
		d.Attachment = nil
	} else if req.Attachment != nil {
		d.Attachment = req.Attachment.clone()
	}
	if err := d.checkDates(); err != nil {
		return err
	}
	d.UpdatedAt = now
	return nil
}

// ApplyRestore overwrites the content fields with a version's snapshot.
// Status, doc_no and approval fields stay as they are.
func (d *Document) ApplyRestore(s Snapshot, now time.Time) {
	d.Subject = s.Subject
	d.Content = s.Content
	d.IssueDate = s.IssueDate
	d.EffectiveDate = cloneTime(s.EffectiveDate)
	d.EmployeeID = cloneString(s.EmployeeID)
	d.Attachment = s.Attachment.clone()
	d.UpdatedAt = now
}

func (d *Document) checkDates() error {
	if d.EffectiveDate != nil && d.EffectiveDate.Before(d.IssueDate) {
		return dErrors.New(dErrors.CodeValidation, "effective_date must not be before issue_date")
	}
	return nil
}

// TruncateDate drops the time of day, keeping the calendar date in UTC.
func TruncateDate(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func truncateDatePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := TruncateDate(*t)
	return &d
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
