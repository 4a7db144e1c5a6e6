// Package sentinel holds the storage-level facts stores report. Stores may
// wrap them; the document service translates them into coded domain errors.
package sentinel

import "errors"

var (
	// ErrNotFound means the addressed row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means the write lost a race: a unique violation, a
	// serialization failure or a busy database.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState means the row exists but cannot take this write.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnavailable means the backend could not be reached.
	ErrUnavailable = errors.New("unavailable")
)
