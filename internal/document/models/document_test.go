package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "docflow/pkg/domain"
	dErrors "docflow/pkg/domain-errors"
)

func ptr[T any](v T) *T { return &v }

func newTestDocument(t *testing.T) *Document {
	t.Helper()
	req := &CreateRequest{
		DocType:    DocTypeDecision,
		Subject:    "Appointment of department head",
		Content:    "Pursuant to the charter...",
		IssueDate:  time.Date(2025, 1, 15, 13, 45, 0, 0, time.UTC),
		EmployeeID: ptr("emp-42"),
		Attachment: &Attachment{Path: "docs/a.pdf", Name: "a.pdf", Size: 10, MimeType: "application/pdf"},
		CreatedBy:  "clerk-1",
	}
	doc, err := NewDocument(id.NewDocumentID(), "QĐ-001/2025", req, time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return doc
}

func TestNewDocument(t *testing.T) {
	doc := newTestDocument(t)

	assert.Equal(t, StatusDraft, doc.Status)
	assert.Equal(t, "QĐ-001/2025", doc.DocNo)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), doc.IssueDate)
	assert.Nil(t, doc.ApprovedBy)
	assert.Equal(t, doc.CreatedAt, doc.UpdatedAt)

	t.Run("rejects effective date before issue date", func(t *testing.T) {
		req := &CreateRequest{
			DocType:       DocTypeNotice,
			Subject:       "s",
			Content:       "c",
			IssueDate:     time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
			EffectiveDate: ptr(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
			CreatedBy:     "clerk",
		}
		_, err := NewDocument(id.NewDocumentID(), "TB-001/2025", req, time.Now())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("defaults issue date to now", func(t *testing.T) {
		now := time.Date(2026, 7, 9, 8, 0, 0, 0, time.UTC)
		req := &CreateRequest{DocType: DocTypeForm, Subject: "s", Content: "c", CreatedBy: "clerk"}
		doc, err := NewDocument(id.NewDocumentID(), "BM-001/2026", req, now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 7, 9, 0, 0, 0, 0, time.UTC), doc.IssueDate)
	})
}

func TestCloneIsDeep(t *testing.T) {
	doc := newTestDocument(t)
	cp := doc.Clone()

	*cp.EmployeeID = "emp-99"
	cp.Attachment.Name = "changed.pdf"

	assert.Equal(t, "emp-42", *doc.EmployeeID)
	assert.Equal(t, "a.pdf", doc.Attachment.Name)
}

func TestApplyEdit(t *testing.T) {
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("changes only named fields", func(t *testing.T) {
		doc := newTestDocument(t)
		require.NoError(t, doc.ApplyEdit(&UpdateRequest{Subject: ptr("New subject"), ChangeNote: "fix"}, now))

		assert.Equal(t, "New subject", doc.Subject)
		assert.Equal(t, "Pursuant to the charter...", doc.Content)
		assert.Equal(t, now, doc.UpdatedAt)
		assert.Equal(t, StatusDraft, doc.Status)
	})

	t.Run("clear flags remove optional fields", func(t *testing.T) {
		doc := newTestDocument(t)
		require.NoError(t, doc.ApplyEdit(&UpdateRequest{ClearAttachment: true, ClearEmployeeID: true, ChangeNote: "strip"}, now))

		assert.Nil(t, doc.Attachment)
		assert.Nil(t, doc.EmployeeID)
	})

	t.Run("edits are not gated by status", func(t *testing.T) {
		doc := newTestDocument(t)
		doc.Status = StatusPublished
		require.NoError(t, doc.ApplyEdit(&UpdateRequest{Content: ptr("amended"), ChangeNote: "erratum"}, now))
		assert.Equal(t, "amended", doc.Content)
		assert.Equal(t, StatusPublished, doc.Status)
	})
}

func TestApplyRestoreKeepsWorkflowFields(t *testing.T) {
	doc := newTestDocument(t)
	snap := doc.Snapshot()

	require.NoError(t, doc.Transition(ActionSubmit, "clerk-1", time.Now()))
	require.NoError(t, doc.Transition(ActionApprove, "director", time.Now()))
	require.NoError(t, doc.ApplyEdit(&UpdateRequest{Subject: ptr("Changed"), ClearAttachment: true, ChangeNote: "x"}, time.Now()))

	approvedBy := *doc.ApprovedBy
	doc.ApplyRestore(snap, time.Now())

	assert.Equal(t, snap.Subject, doc.Subject)
	assert.Equal(t, snap.Attachment, doc.Attachment)
	assert.Equal(t, StatusApproved, doc.Status)
	assert.Equal(t, "QĐ-001/2025", doc.DocNo)
	assert.Equal(t, approvedBy, *doc.ApprovedBy)
}

func TestFormatDocNo(t *testing.T) {
	assert.Equal(t, "QĐ-001/2025", FormatDocNo(DocTypeDecision, 1, 2025))
	assert.Equal(t, "TB-042/2024", FormatDocNo(DocTypeNotice, 42, 2024))
	assert.Equal(t, "HĐ-999/2025", FormatDocNo(DocTypeContract, 999, 2025))
	assert.Equal(t, "BM-1000/2025", FormatDocNo(DocTypeForm, 1000, 2025))
}
