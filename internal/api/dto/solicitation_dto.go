package dto

import (
	"time"

	"github.com/conecta-ies/solicitation-service/internal/domain"
)

// CreateSolicitationRequest carries the non-file fields of the multipart
// create form.
type CreateSolicitationRequest struct {
	Title       string                      `json:"title" form:"title"`
	Description string                      `json:"description" form:"description"`
	Category    domain.SolicitationCategory `json:"category" form:"category"`
}

// AddCommentRequest payload.
type AddCommentRequest struct {
	Text string `json:"text"`
}

// AssignRequest payload.
type AssignRequest struct {
	AssigneeID string `json:"assigneeId"`
	Note       string `json:"note"`
}

// FirstResponseRequest payload.
type FirstResponseRequest struct {
	Text string `json:"text"`
}

// AttachmentResponse is the stored-file metadata exposed on the wire.
type AttachmentResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
}

// SolicitationResponse is the full wire representation of a solicitation.
// TimeToTmrBreach is derived from the instant the response was built and
// must not be cached: it is nil once a first response exists, otherwise the
// floored seconds remaining before the four-hour target is missed.
type SolicitationResponse struct {
	ID              string                      `json:"id"`
	Protocol        string                      `json:"protocol"`
	Title           string                      `json:"title"`
	Description     string                      `json:"description"`
	Category        domain.SolicitationCategory `json:"category"`
	Status          domain.SolicitationStatus   `json:"status"`
	OwnerID         string                      `json:"ownerId"`
	OwnerName       *string                     `json:"ownerName"`
	CreatedAt       time.Time                   `json:"createdAt"`
	UpdatedAt       time.Time                   `json:"updatedAt"`
	FirstResponseAt *time.Time                  `json:"firstResponseAt"`
	TimeToTmrBreach *int64                      `json:"timeToTmrBreach"`
	Attachments     []AttachmentResponse        `json:"attachments"`
}

// NewSolicitationResponse builds the wire shape, deriving the SLA countdown
// from the supplied instant.
func NewSolicitationResponse(s *domain.Solicitation, now time.Time) SolicitationResponse {
	attachments := make([]AttachmentResponse, 0, len(s.Attachments))
	for _, a := range s.Attachments {
		attachments = append(attachments, AttachmentResponse{
			ID:       a.ID,
			Name:     a.Name,
			URL:      a.URL,
			MimeType: a.MimeType,
		})
	}
	return SolicitationResponse{
		ID:              s.ID,
		Protocol:        s.Protocol,
		Title:           s.Title,
		Description:     s.Description,
		Category:        s.Category,
		Status:          s.Status,
		OwnerID:         s.OwnerID,
		OwnerName:       s.OwnerName,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		FirstResponseAt: s.FirstResponseAt,
		TimeToTmrBreach: s.TimeToTMRBreach(now),
		Attachments:     attachments,
	}
}

// NewSolicitationResponses maps a listing, sharing one instant so the SLA
// countdowns in a single response are mutually consistent.
func NewSolicitationResponses(list []domain.Solicitation, now time.Time) []SolicitationResponse {
	items := make([]SolicitationResponse, 0, len(list))
	for i := range list {
		items = append(items, NewSolicitationResponse(&list[i], now))
	}
	return items
}

// HistoryEntryResponse is one audit ledger record on the wire.
type HistoryEntryResponse struct {
	ID          string             `json:"id"`
	Kind        domain.HistoryKind `json:"kind"`
	Description string             `json:"description"`
	ActorID     *string            `json:"actorId"`
	ActorName   *string            `json:"actorName"`
	Timestamp   time.Time          `json:"timestamp"`
}

// NewHistoryResponses maps ledger entries oldest first.
func NewHistoryResponses(entries []domain.HistoryEntry) []HistoryEntryResponse {
	items := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, HistoryEntryResponse{
			ID:          e.ID,
			Kind:        e.Kind,
			Description: e.Description,
			ActorID:     e.ActorID,
			ActorName:   e.ActorName,
			Timestamp:   e.Timestamp,
		})
	}
	return items
}
