package service

import (
	"context"
	"errors"

	"docflow/internal/document/models"
	"docflow/internal/document/ports"
	id "docflow/pkg/domain"
	dErrors "docflow/pkg/domain-errors"
	"docflow/pkg/platform/sentinel"
	"docflow/pkg/requestcontext"
)

// ApprovalEngine couples every head mutation with a snapshot of the state it
// replaces. Snapshot, head update and updated_at bump run in one transaction.
//
// The engine enforces the status workflow for transitions but does not gate
// field edits by status. Restricting edits to drafts is the permission gate's
// decision, made before the service is called.
type ApprovalEngine struct {
	tx    ports.TxRunner
	retry RetryPolicy

	onRetry func(attempt int)
}

// NewApprovalEngine constructs an engine over tx.
func NewApprovalEngine(tx ports.TxRunner, retry RetryPolicy) *ApprovalEngine {
	return &ApprovalEngine{tx: tx, retry: retry}
}

// Mutation is the outcome of one committed change.
type Mutation struct {
	Document      *models.Document
	VersionNumber int
}

// applyFunc computes the new head on next, a copy of the locked head. It may
// read other rows through stores. Returning an error aborts the change before
// any snapshot is written.
type applyFunc func(ctx context.Context, stores ports.Stores, next *models.Document) error

// Transition moves the document along the workflow.
func (e *ApprovalEngine) Transition(ctx context.Context, docID id.DocumentID, action models.Action, actorID, note string) (*Mutation, error) {
	if !action.IsTransition() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown workflow action").
			WithEntity(docID.String()).WithAction(string(action))
	}
	return e.mutate(ctx, docID, action, actorID, note, func(ctx context.Context, _ ports.Stores, next *models.Document) error {
		return next.Transition(action, actorID, requestcontext.Now(ctx))
	})
}

// Edit applies a validated partial update.
func (e *ApprovalEngine) Edit(ctx context.Context, docID id.DocumentID, req *models.UpdateRequest, actorID string) (*Mutation, error) {
	return e.mutate(ctx, docID, models.ActionEdit, actorID, req.ChangeNote, func(ctx context.Context, _ ports.Stores, next *models.Document) error {
		return next.ApplyEdit(req, requestcontext.Now(ctx))
	})
}

// Restore overwrites the head's content fields with those of versionID.
// The current head is snapshotted first, so every call appends one row.
func (e *ApprovalEngine) Restore(ctx context.Context, docID id.DocumentID, versionID id.VersionID, actorID, note string) (*Mutation, error) {
	return e.mutate(ctx, docID, models.ActionRestore, actorID, note, func(ctx context.Context, stores ports.Stores, next *models.Document) error {
		target, err := stores.Versions.FindByID(ctx, docID, versionID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Wrap(err, dErrors.CodeNotFound, "version not found").
					WithEntity(versionID.String())
			}
			return err
		}
		next.ApplyRestore(target.Snapshot, requestcontext.Now(ctx))
		return nil
	})
}

func (e *ApprovalEngine) mutate(ctx context.Context, docID id.DocumentID, action models.Action, actorID, note string, apply applyFunc) (*Mutation, error) {
	var result *Mutation
	err := e.retry.do(ctx, func() error {
		var err error
		result, err = e.runOnce(ctx, docID, action, actorID, note, apply)
		return err
	}, e.onRetry)
	if err != nil {
		return nil, translate(err, docID.String(), string(action), "document not found")
	}
	return result, nil
}

func (e *ApprovalEngine) runOnce(ctx context.Context, docID id.DocumentID, action models.Action, actorID, note string, apply applyFunc) (*Mutation, error) {
	var result *Mutation
	err := e.tx.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
		head, err := stores.Documents.FindByIDForUpdate(ctx, docID)
		if err != nil {
			return err
		}

		next := head.Clone()
		if err := apply(ctx, stores, next); err != nil {
			return err
		}

		version := models.NewVersion(head, action, actorID, note, requestcontext.Now(ctx))
		number, err := stores.Versions.Append(ctx, version)
		if err != nil {
			return err
		}
		if err := stores.Documents.Update(ctx, next); err != nil {
			return err
		}
		result = &Mutation{Document: next, VersionNumber: number}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
