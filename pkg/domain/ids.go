package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "docflow/pkg/domain-errors"
)

// DocumentID identifies a document head. Typed ids keep document and version
// identifiers from being swapped at call sites.
type DocumentID uuid.UUID

// VersionID identifies an immutable version row.
type VersionID uuid.UUID

// NewDocumentID returns a random DocumentID.
func NewDocumentID() DocumentID { return DocumentID(uuid.New()) }

// NewVersionID returns a random VersionID.
func NewVersionID() VersionID { return VersionID(uuid.New()) }

// ParseDocumentID parses a non-nil UUID string.
func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID(s, "document id")
	return DocumentID(u), err
}

// ParseVersionID parses a non-nil UUID string.
func ParseVersionID(s string) (VersionID, error) {
	u, err := parseUUID(s, "version id")
	return VersionID(u), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must not be nil")
	}
	return u, nil
}

func (id DocumentID) String() string { return uuid.UUID(id).String() }
func (id DocumentID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id DocumentID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *DocumentID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id VersionID) String() string { return uuid.UUID(id).String() }
func (id VersionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id VersionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *VersionID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
