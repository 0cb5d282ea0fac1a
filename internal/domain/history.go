package domain

import "time"

// HistoryKind captures what a history entry records.
type HistoryKind string

const (
	HistoryStatusChange HistoryKind = "STATUS_CHANGE"
	HistoryComment      HistoryKind = "COMMENT"
	HistoryAttachment   HistoryKind = "ATTACHMENT"
)

// HistoryEntry is an immutable audit record of an event on a solicitation.
// Entries are append-only; they are never updated or deleted. ActorID is a
// weak reference: deleting a user nulls it without touching the entry.
type HistoryEntry struct {
	ID             string
	SolicitationID string
	Kind           HistoryKind
	Description    string
	ActorID        *string
	ActorName      *string
	Timestamp      time.Time
}
