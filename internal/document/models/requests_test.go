package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "docflow/pkg/domain-errors"
)

func validCreate() *CreateRequest {
	return &CreateRequest{
		DocType:   DocTypeContract,
		Subject:   "Service contract",
		Content:   "Terms...",
		CreatedBy: "clerk-1",
	}
}

func TestCreateRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *CreateRequest)
		wantMsg string
	}{
		{"valid", func(r *CreateRequest) {}, ""},
		{"missing subject", func(r *CreateRequest) { r.Subject = "   " }, "subject: required"},
		{"oversized subject", func(r *CreateRequest) { r.Subject = strings.Repeat("s", 501) }, "subject: must be at most 500"},
		{"blank content", func(r *CreateRequest) { r.Content = " \n " }, "content: required"},
		{"oversized content", func(r *CreateRequest) { r.Content = strings.Repeat("c", MaxContentBytes+1) }, "content: exceeds"},
		{"unknown doc type", func(r *CreateRequest) { r.DocType = "memo" }, "doc_type: must be one of"},
		{"missing creator", func(r *CreateRequest) { r.CreatedBy = "" }, "created_by: required"},
		{"attachment without path", func(r *CreateRequest) { r.Attachment = &Attachment{Name: "a.pdf"} }, "path: required"},
		{"blank employee", func(r *CreateRequest) { r.EmployeeID = ptr("  ") }, "employee_id"},
		{"uppercase doc type is normalized", func(r *CreateRequest) { r.DocType = " Decision " }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreate()
			tt.mutate(req)
			req.Normalize()
			err := req.Validate()
			if tt.wantMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSubjectLimitCountsRunes(t *testing.T) {
	req := validCreate()
	req.Subject = strings.Repeat("Đ", 500)
	req.Normalize()
	require.NoError(t, req.Validate())
}

func TestUpdateRequestValidate(t *testing.T) {
	t.Run("requires a change note", func(t *testing.T) {
		req := &UpdateRequest{Subject: ptr("x")}
		req.Normalize()
		err := req.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "change_note: required")
	})

	t.Run("requires at least one field", func(t *testing.T) {
		req := &UpdateRequest{ChangeNote: "nothing"}
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects attachment with clear flag", func(t *testing.T) {
		req := &UpdateRequest{
			Attachment:      &Attachment{Path: "p", Name: "n"},
			ClearAttachment: true,
			ChangeNote:      "both",
		}
		require.Error(t, req.Validate())
	})

	t.Run("rejects empty subject", func(t *testing.T) {
		req := &UpdateRequest{Subject: ptr("  "), ChangeNote: "blank"}
		req.Normalize()
		require.Error(t, req.Validate())
	})
}

func TestPageRequestNormalize(t *testing.T) {
	p := &PageRequest{}
	p.Normalize()
	assert.Equal(t, DefaultPageLimit, p.Limit)

	p = &PageRequest{Limit: 5000}
	p.Normalize()
	assert.Equal(t, MaxPageLimit, p.Limit)

	p = &PageRequest{Offset: -1}
	assert.Error(t, p.Validate())
}
