package models

import (
	"fmt"
	"time"

	dErrors "docflow/pkg/domain-errors"
)

// Status is a position in the approval workflow.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// IsTerminal reports whether no action leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusArchived
}

// Action names what superseded a state. Workflow actions move the status;
// edit and restore change content only.
type Action string

const (
	ActionEdit    Action = "edit"
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionPublish Action = "publish"
	ActionArchive Action = "archive"
	ActionRestore Action = "restore"
)

// IsValid reports whether a is a known action.
func (a Action) IsValid() bool {
	switch a {
	case ActionEdit, ActionSubmit, ActionApprove, ActionReject, ActionPublish, ActionArchive, ActionRestore:
		return true
	}
	return false
}

// IsTransition reports whether a moves the status.
func (a Action) IsTransition() bool {
	switch a {
	case ActionSubmit, ActionApprove, ActionReject, ActionPublish, ActionArchive:
		return true
	}
	return false
}

// DefaultNote is the change note recorded when the caller gives none.
func (a Action) DefaultNote() string {
	switch a {
	case ActionSubmit:
		return "Submitted for approval"
	case ActionApprove:
		return "Approved"
	case ActionReject:
		return "Rejected"
	case ActionPublish:
		return "Published"
	case ActionArchive:
		return "Archived"
	case ActionRestore:
		return "Restored from earlier version"
	default:
		return "Edited"
	}
}

// transitions is the complete workflow. Anything absent is illegal.
var transitions = map[Status]map[Action]Status{
	StatusDraft:     {ActionSubmit: StatusPending},
	StatusPending:   {ActionApprove: StatusApproved, ActionReject: StatusDraft},
	StatusApproved:  {ActionPublish: StatusPublished},
	StatusPublished: {ActionArchive: StatusArchived},
}

// NextStatus returns the status reached by applying action in from.
func NextStatus(from Status, action Action) (Status, bool) {
	to, ok := transitions[from][action]
	return to, ok
}

// CanTransition checks that action is legal from the document's status.
// Use with ApplyTransition in RunInTx callbacks.
func (d *Document) CanTransition(action Action) error {
	if _, ok := NextStatus(d.Status, action); !ok {
		return dErrors.New(dErrors.CodeInvalidTransition,
			fmt.Sprintf("cannot %s a document in status %s", action, d.Status)).
			WithEntity(d.ID.String()).
			WithAction(string(action))
	}
	return nil
}

// ApplyTransition moves the document along the workflow. Approve also stamps
// the approver; no other action touches the approval fields.
// Call CanTransition first.
func (d *Document) ApplyTransition(action Action, actorID string, now time.Time) {
	to, _ := NextStatus(d.Status, action)
	d.Status = to
	if action == ActionApprove {
		approver := actorID
		approvedAt := now
		d.ApprovedBy = &approver
		d.ApprovedAt = &approvedAt
	}
	d.UpdatedAt = now
}

// Transition validates and applies action in one call.
func (d *Document) Transition(action Action, actorID string, now time.Time) error {
	if err := d.CanTransition(action); err != nil {
		return err
	}
	d.ApplyTransition(action, actorID, now)
	return nil
}
