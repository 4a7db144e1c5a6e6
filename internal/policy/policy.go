// Package policy decides whether an actor may perform an operation on a
// document. The document service trusts the caller; the HTTP handler asks
// a Gate before calling it.
//
// A Gate sees the head as read before the mutation's transaction starts, so
// status-based decisions such as Static.DraftOnlyEdits are check-then-act: a
// transition committed between the check and the edit is not seen by the
// gate.
package policy

import (
	"context"

	"docflow/internal/document/models"
)

// Operation names what the actor is attempting.
type Operation string

const (
	OpCreate  Operation = "create"
	OpRead    Operation = "read"
	OpUpdate  Operation = "update"
	OpDelete  Operation = "delete"
	OpAttach  Operation = "attach"
	OpRestore Operation = "restore"
	OpSubmit  Operation = "submit"
	OpApprove Operation = "approve"
	OpReject  Operation = "reject"
	OpPublish Operation = "publish"
	OpArchive Operation = "archive"

	// OpAll in a role table grants every operation.
	OpAll Operation = "*"
)

// ForAction maps a workflow action to the operation that guards it.
func ForAction(action models.Action) Operation {
	switch action {
	case models.ActionEdit:
		return OpUpdate
	case models.ActionRestore:
		return OpRestore
	default:
		return Operation(action)
	}
}

// Actor is the verified caller.
type Actor struct {
	ID   string
	Role string
}

// Gate answers permission checks. doc is nil for operations without a
// target document, such as create.
type Gate interface {
	Allow(ctx context.Context, actor Actor, op Operation, doc *models.Document) bool
}

// AllowAll permits everything. Used when authorization happens upstream.
type AllowAll struct{}

func (AllowAll) Allow(context.Context, Actor, Operation, *models.Document) bool { return true }

// Static grants operations by role.
type Static struct {
	Roles map[string][]Operation

	// DraftOnlyEdits limits content changes (update, attach, restore) to
	// documents in Draft.
	DraftOnlyEdits bool
}

// DefaultRoles is a clerk/manager/admin split of the workflow.
func DefaultRoles() map[string][]Operation {
	return map[string][]Operation{
		"clerk":   {OpCreate, OpRead, OpUpdate, OpAttach, OpRestore, OpSubmit},
		"manager": {OpRead, OpApprove, OpReject, OpPublish, OpArchive},
		"admin":   {OpAll},
	}
}

func (s Static) Allow(_ context.Context, actor Actor, op Operation, doc *models.Document) bool {
	if actor.ID == "" {
		return false
	}
	if !s.granted(actor.Role, op) {
		return false
	}
	if s.DraftOnlyEdits && doc != nil && doc.Status != models.StatusDraft {
		switch op {
		case OpUpdate, OpAttach, OpRestore:
			return false
		}
	}
	return true
}

func (s Static) granted(role string, op Operation) bool {
	for _, allowed := range s.Roles[role] {
		if allowed == op || allowed == OpAll {
			return true
		}
	}
	return false
}
