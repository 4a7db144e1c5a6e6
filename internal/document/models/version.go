package models

import (
	"time"

	id "docflow/pkg/domain"
)

// Snapshot is an immutable copy of a head's mutable fields.
type Snapshot struct {
	Subject       string      `json:"subject"`
	Content       string      `json:"content"`
	IssueDate     time.Time   `json:"issue_date"`
	EffectiveDate *time.Time  `json:"effective_date,omitempty"`
	EmployeeID    *string     `json:"employee_id,omitempty"`
	Attachment    *Attachment `json:"attachment,omitempty"`
	Status        Status      `json:"status"`
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	cp := s
	cp.EffectiveDate = cloneTime(s.EffectiveDate)
	cp.EmployeeID = cloneString(s.EmployeeID)
	cp.Attachment = s.Attachment.clone()
	return cp
}

// DocumentVersion is an append-only history row. It holds the state of the
// document immediately before Action was applied, so the current head is
// never itself in the history until something supersedes it.
type DocumentVersion struct {
	ID            id.VersionID  `json:"id"`
	DocumentID    id.DocumentID `json:"document_id"`
	VersionNumber int           `json:"version_number"`
	Action        Action        `json:"action"`
	Snapshot
	ChangedBy  string    `json:"changed_by"`
	ChangeNote string    `json:"change_note"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewVersion builds an unnumbered version row for prior. The version store
// assigns VersionNumber on append.
func NewVersion(prior *Document, action Action, changedBy, note string, now time.Time) *DocumentVersion {
	return &DocumentVersion{
		ID:         id.NewVersionID(),
		DocumentID: prior.ID,
		Action:     action,
		Snapshot:   prior.Snapshot(),
		ChangedBy:  changedBy,
		ChangeNote: note,
		CreatedAt:  now,
	}
}

// Clone returns a deep copy of v.
func (v *DocumentVersion) Clone() *DocumentVersion {
	cp := *v
	cp.Snapshot = v.Snapshot.Clone()
	return &cp
}

// Page bounds for history reads.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// VersionPage is one page of history, newest first.
type VersionPage struct {
	Versions []*DocumentVersion `json:"versions"`
	Total    int                `json:"total"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}
