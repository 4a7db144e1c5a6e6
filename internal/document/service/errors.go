package service

import (
	"context"
	"errors"

	dErrors "docflow/pkg/domain-errors"
	"docflow/pkg/platform/sentinel"
)

// translate converts a store or runner error into a coded domain error that
// names the document and the attempted action. Errors that already carry a
// code keep it.
func translate(err error, entityID, action, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		out := de
		if out.EntityID == "" {
			out = out.WithEntity(entityID)
		}
		if out.Action == "" {
			out = out.WithAction(action)
		}
		return out
	}

	var coded *dErrors.Error
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		coded = dErrors.Wrap(err, dErrors.CodeNotFound, notFoundMsg)
	case errors.Is(err, sentinel.ErrConflict):
		coded = dErrors.Wrap(err, dErrors.CodeConflict, "concurrent modification")
	case errors.Is(err, sentinel.ErrInvalidState):
		coded = dErrors.Wrap(err, dErrors.CodeInvalidTransition, "document is in the wrong state")
	case errors.Is(err, sentinel.ErrUnavailable):
		coded = dErrors.Wrap(err, dErrors.CodeUnavailable, "storage unavailable")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		coded = dErrors.Wrap(err, dErrors.CodeTimeout, "operation aborted")
	default:
		coded = dErrors.Wrap(err, dErrors.CodeInternal, "storage failure")
	}
	return coded.WithEntity(entityID).WithAction(action)
}

func isConflict(err error) bool {
	return errors.Is(err, sentinel.ErrConflict) || dErrors.HasCode(err, dErrors.CodeConflict)
}
