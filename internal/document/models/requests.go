package models

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	dErrors "docflow/pkg/domain-errors"
)

// MaxContentBytes caps the stored body of a document.
const MaxContentBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// CreateRequest is the input to DocumentService.Create. Content usually comes
// from the external template generator.
type CreateRequest struct {
	DocType       DocType     `json:"doc_type" validate:"required,oneof=decision notice contract form"`
	Subject       string      `json:"subject" validate:"required,max=500"`
	Content       string      `json:"content" validate:"required"`
	IssueDate     time.Time   `json:"issue_date"`
	EffectiveDate *time.Time  `json:"effective_date,omitempty"`
	EmployeeID    *string     `json:"employee_id,omitempty" validate:"omitempty,min=1,max=64"`
	Attachment    *Attachment `json:"attachment,omitempty" validate:"omitempty"`
	CreatedBy     string      `json:"created_by" validate:"required,max=128"`
}

// Normalize trims identifying text fields. Content is stored verbatim.
func (r *CreateRequest) Normalize() {
	r.Subject = strings.TrimSpace(r.Subject)
	r.CreatedBy = strings.TrimSpace(r.CreatedBy)
	r.DocType = DocType(strings.ToLower(strings.TrimSpace(string(r.DocType))))
	r.EmployeeID = trimOptional(r.EmployeeID)
}

func (r *CreateRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	if r.EffectiveDate != nil && TruncateDate(*r.EffectiveDate).Before(TruncateDate(r.IssueDate)) {
		return dErrors.New(dErrors.CodeValidation, "effective_date must not be before issue_date")
	}
	return checkContent(r.Content)
}

// UpdateRequest is a partial edit. Nil fields are left alone; the Clear flags
// remove optional values.
type UpdateRequest struct {
	Subject            *string     `json:"subject,omitempty" validate:"omitempty,min=1,max=500"`
	Content            *string     `json:"content,omitempty" validate:"omitempty,min=1"`
	IssueDate          *time.Time  `json:"issue_date,omitempty"`
	EffectiveDate      *time.Time  `json:"effective_date,omitempty"`
	ClearEffectiveDate bool        `json:"clear_effective_date,omitempty"`
	EmployeeID         *string     `json:"employee_id,omitempty" validate:"omitempty,min=1,max=64"`
	ClearEmployeeID    bool        `json:"clear_employee_id,omitempty"`
	Attachment         *Attachment `json:"attachment,omitempty" validate:"omitempty"`
	ClearAttachment    bool        `json:"clear_attachment,omitempty"`
	ChangeNote         string      `json:"change_note" validate:"required,max=1000"`
}

func (r *UpdateRequest) Normalize() {
	if r.Subject != nil {
		s := strings.TrimSpace(*r.Subject)
		r.Subject = &s
	}
	r.EmployeeID = trimOptional(r.EmployeeID)
	r.ChangeNote = strings.TrimSpace(r.ChangeNote)
}

func (r *UpdateRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	if !r.HasChanges() {
		return dErrors.New(dErrors.CodeValidation, "update must change at least one field")
	}
	if r.ClearAttachment && r.Attachment != nil {
		return dErrors.New(dErrors.CodeValidation, "attachment and clear_attachment are mutually exclusive")
	}
	if r.Content != nil {
		return checkContent(*r.Content)
	}
	return nil
}

// HasChanges reports whether the request names any field.
func (r *UpdateRequest) HasChanges() bool {
	return r.Subject != nil || r.Content != nil || r.IssueDate != nil ||
		r.EffectiveDate != nil || r.ClearEffectiveDate ||
		r.EmployeeID != nil || r.ClearEmployeeID ||
		r.Attachment != nil || r.ClearAttachment
}

// NoteRequest carries the optional change note of a workflow action or the
// required note of a restore.
type NoteRequest struct {
	Note string `json:"note" validate:"max=1000"`
}

func (r *NoteRequest) Normalize() {
	r.Note = strings.TrimSpace(r.Note)
}

func (r *NoteRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

// PageRequest selects a window of history.
type PageRequest struct {
	Limit  int `json:"limit" validate:"min=0"`
	Offset int `json:"offset" validate:"min=0"`
}

// Normalize applies the default limit and clamps it to MaxPageLimit.
func (r *PageRequest) Normalize() {
	if r.Limit <= 0 {
		r.Limit = DefaultPageLimit
	}
	if r.Limit > MaxPageLimit {
		r.Limit = MaxPageLimit
	}
}

func (r *PageRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

func checkContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return dErrors.New(dErrors.CodeValidation, "content: required")
	}
	if len(content) > MaxContentBytes {
		return dErrors.New(dErrors.CodeValidation, "content: exceeds 1 MiB")
	}
	return nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid request")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return dErrors.New(dErrors.CodeValidation, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + ": required"
	case "max":
		return field + ": must be at most " + fe.Param() + " characters"
	case "min":
		return field + ": must be at least " + fe.Param()
	case "oneof":
		return field + ": must be one of " + fe.Param()
	default:
		return field + ": invalid"
	}
}
