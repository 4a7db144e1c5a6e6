package models

import (
	"time"

	"github.com/google/uuid"

	id "docflow/pkg/domain"
)

// EventType names a committed lifecycle change.
type EventType string

const (
	EventCreated   EventType = "document.created"
	EventUpdated   EventType = "document.updated"
	EventSubmitted EventType = "document.submitted"
	EventApproved  EventType = "document.approved"
	EventRejected  EventType = "document.rejected"
	EventPublished EventType = "document.published"
	EventArchived  EventType = "document.archived"
	EventRestored  EventType = "document.restored"
	EventDeleted   EventType = "document.deleted"
)

var actionEvents = map[Action]EventType{
	ActionEdit:    EventUpdated,
	ActionSubmit:  EventSubmitted,
	ActionApprove: EventApproved,
	ActionReject:  EventRejected,
	ActionPublish: EventPublished,
	ActionArchive: EventArchived,
	ActionRestore: EventRestored,
}

// EventFor returns the event type emitted after action commits.
func EventFor(action Action) EventType {
	return actionEvents[action]
}

// Event is the payload published to downstream consumers.
type Event struct {
	ID            string        `json:"id"`
	Type          EventType     `json:"type"`
	DocumentID    id.DocumentID `json:"document_id"`
	DocType       DocType       `json:"doc_type"`
	DocNo         string        `json:"doc_no"`
	Status        Status        `json:"status"`
	ActorID       string        `json:"actor_id"`
	VersionNumber int           `json:"version_number,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

// NewEvent describes doc after a committed change.
func NewEvent(t EventType, doc *Document, actorID string, versionNumber int, now time.Time) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          t,
		DocumentID:    doc.ID,
		DocType:       doc.DocType,
		DocNo:         doc.DocNo,
		Status:        doc.Status,
		ActorID:       actorID,
		VersionNumber: versionNumber,
		OccurredAt:    now,
	}
}
