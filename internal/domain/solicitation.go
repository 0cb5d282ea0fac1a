package domain

import "time"

// SolicitationStatus enumerates lifecycle states for support requests.
type SolicitationStatus string

const (
	StatusOpen        SolicitationStatus = "ABERTO"
	StatusUnseen      SolicitationStatus = "NAO_VISTO"
	StatusUnderReview SolicitationStatus = "EM_ANALISE"
	StatusInProgress  SolicitationStatus = "EM_EXECUCAO"
	StatusResolved    SolicitationStatus = "RESOLVIDO"
)

// ActiveStatuses are the non-resolved states shown on the admin inbox.
var ActiveStatuses = []SolicitationStatus{
	StatusOpen,
	StatusUnseen,
	StatusUnderReview,
	StatusInProgress,
}

// SolicitationCategory enumerates the kinds of accessibility support requested.
type SolicitationCategory string

const (
	CategoryLocomotionSupport SolicitationCategory = "APOIO_LOCOMOCAO"
	CategorySignLanguage      SolicitationCategory = "INTERPRETACAO_LIBRAS"
	CategoryOther             SolicitationCategory = "OUTROS"
)

// ValidCategory reports whether the value is a known category.
func ValidCategory(c SolicitationCategory) bool {
	switch c {
	case CategoryLocomotionSupport, CategorySignLanguage, CategoryOther:
		return true
	}
	return false
}

// TMRLimit is the target maximum time to first administrative response.
const TMRLimit = 4 * time.Hour

// MaxAttachments caps how many files may accompany a solicitation at creation.
const MaxAttachments = 3

// Solicitation is the aggregate for accessibility support requests.
// Protocol is assigned once at creation and never changes afterwards.
type Solicitation struct {
	ID              string
	Protocol        string
	Title           string
	Description     string
	Category        SolicitationCategory
	Status          SolicitationStatus
	OwnerID         string
	OwnerName       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	FirstResponseAt *time.Time
	Attachments     []Attachment
}

// TimeToTMRBreach returns the seconds remaining before the first-response
// target is breached, floored and never negative. Once a first response has
// been recorded the countdown stops permanently and nil is returned. The
// value is derived from the supplied instant on every read and must not be
// cached past the exchange that produced it.
func (s *Solicitation) TimeToTMRBreach(now time.Time) *int64 {
	if s.FirstResponseAt != nil {
		return nil
	}
	remaining := int64((TMRLimit - now.Sub(s.CreatedAt)).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// Attachment stores file metadata owned by a solicitation. Attachments are
// created only alongside the solicitation and are immutable afterwards.
type Attachment struct {
	ID             string
	SolicitationID string
	Name           string
	URL            string
	MimeType       string
	CreatedAt      time.Time
}
