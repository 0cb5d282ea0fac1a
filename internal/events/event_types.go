package events

import (
	"time"

	"github.com/conecta-ies/solicitation-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSolicitationCreated EventType = "solicitation_created"
	EventStatusUpdated       EventType = "solicitation_status_updated"
)

// CommentStatusMarker is the pseudo-status carried by the status-update
// event when a comment is added without a lifecycle change.
const CommentStatusMarker = "COMMENT_ADDED"

// Event represents a domain event emitted by the lifecycle engine.
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	SolicitationID string    `json:"solicitation_id"`
	ActorID        *string   `json:"actor_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Payload        any       `json:"payload"`
}

// SolicitationCreatedPayload carries the fully hydrated solicitation so
// observers can render it without a follow-up read.
type SolicitationCreatedPayload struct {
	Solicitation *domain.Solicitation `json:"solicitation"`
}

// StatusUpdatedPayload describes a status transition or comment marker.
type StatusUpdatedPayload struct {
	Status string `json:"status"`
}
