package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/conecta-ies/solicitation-service/internal/clock"
	"github.com/conecta-ies/solicitation-service/internal/domain"
	"github.com/conecta-ies/solicitation-service/internal/events"
	"github.com/conecta-ies/solicitation-service/internal/protocol"
	"github.com/conecta-ies/solicitation-service/internal/repository"
	apperrors "github.com/conecta-ies/solicitation-service/pkg/util"
)

// TxRunner scopes a function to a single database transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// SolicitationService is the lifecycle engine: it validates commands,
// mutates the store, appends history, recomputes derived SLA state on read
// and publishes events for the realtime fan-out. Every mutation and its
// history entry commit in one transaction.
type SolicitationService struct {
	solicitations repository.SolicitationRepository
	attachments   repository.AttachmentRepository
	history       repository.HistoryRepository
	users         repository.UserRepository
	protocols     protocol.Generator
	dispatcher    events.Dispatcher
	tx            TxRunner
	clock         clock.Clock
}

// SolicitationDependencies bundles collaborators for the engine.
type SolicitationDependencies struct {
	SolicitationRepo repository.SolicitationRepository
	AttachmentRepo   repository.AttachmentRepository
	HistoryRepo      repository.HistoryRepository
	UserRepo         repository.UserRepository
	Protocols        protocol.Generator
	Dispatcher       events.Dispatcher
	Tx               TxRunner
	Clock            clock.Clock
}

// NewSolicitationService constructs the engine.
func NewSolicitationService(deps SolicitationDependencies) *SolicitationService {
	return &SolicitationService{
		solicitations: deps.SolicitationRepo,
		attachments:   deps.AttachmentRepo,
		history:       deps.HistoryRepo,
		users:         deps.UserRepo,
		protocols:     deps.Protocols,
		dispatcher:    deps.Dispatcher,
		tx:            deps.Tx,
		clock:         deps.Clock,
	}
}

// AttachmentInput is the stored-blob triple persisted per attachment.
type AttachmentInput struct {
	Name     string
	URL      string
	MimeType string
}

// CreateInput describes a new solicitation.
type CreateInput struct {
	Title       string
	Description string
	Category    domain.SolicitationCategory
	OwnerID     string
	Attachments []AttachmentInput
}

// command identifies a lifecycle operation in the transition table.
type command string

const (
	commandAssign        command = "assign"
	commandFirstResponse command = "first_response"
	commandResolve       command = "resolve"
)

// commandSpec fixes the target state, history kind and description for a
// command. Commands are accepted from every current state: assign and
// resolve never check the prior status, and commenting on a resolved
// solicitation stays allowed.
type commandSpec struct {
	next     domain.SolicitationStatus
	kind     domain.HistoryKind
	describe func(arg string) string
}

var commandTable = map[command]commandSpec{
	commandAssign: {
		next:     domain.StatusUnderReview,
		kind:     domain.HistoryStatusChange,
		describe: func(note string) string { return fmt.Sprintf("Atribuído: %s", note) },
	},
	commandFirstResponse: {
		next:     domain.StatusInProgress,
		kind:     domain.HistoryComment,
		describe: func(text string) string { return fmt.Sprintf("Primeira resposta: %s", text) },
	},
	commandResolve: {
		next:     domain.StatusResolved,
		kind:     domain.HistoryStatusChange,
		describe: func(string) string { return "Solicitação marcada como resolvida" },
	},
}

// Create opens a new solicitation in ABERTO, assigns its protocol, persists
// the attachments and initial history entry, and broadcasts the hydrated
// result. The attachment cap is validated before anything is written.
func (s *SolicitationService) Create(ctx context.Context, input CreateInput) (*domain.Solicitation, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description are required", nil)
	}
	if !domain.ValidCategory(input.Category) {
		return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": input.Category})
	}
	if len(input.Attachments) > domain.MaxAttachments {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("at most %d attachments allowed", domain.MaxAttachments),
			map[string]any{"attachments": len(input.Attachments)},
		)
	}

	proto, err := s.protocols.Next(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	solicitation := &domain.Solicitation{
		Protocol:    proto,
		Title:       title,
		Description: description,
		Category:    input.Category,
		Status:      domain.StatusOpen,
		OwnerID:     input.OwnerID,
	}

	err = s.tx.WithinTx(ctx, func(tx pgx.Tx) error {
		if err := s.solicitations.WithTx(tx).Create(ctx, solicitation); err != nil {
			return err
		}
		attachmentRepo := s.attachments.WithTx(tx)
		for _, att := range input.Attachments {
			record := &domain.Attachment{
				SolicitationID: solicitation.ID,
				Name:           att.Name,
				URL:            att.URL,
				MimeType:       att.MimeType,
			}
			if err := attachmentRepo.Create(ctx, record); err != nil {
				return err
			}
		}
		return s.history.WithTx(tx).Append(ctx, &domain.HistoryEntry{
			SolicitationID: solicitation.ID,
			Kind:           domain.HistoryStatusChange,
			Description:    "Solicitação criada",
			ActorID:        &input.OwnerID,
		})
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	hydrated, err := s.Get(ctx, solicitation.ID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:           events.EventSolicitationCreated,
		SolicitationID: hydrated.ID,
		ActorID:        &input.OwnerID,
		Payload:        events.SolicitationCreatedPayload{Solicitation: hydrated},
	})
	return hydrated, nil
}

// AddComment appends a COMMENT history entry without touching status and
// broadcasts a generic comment marker. Allowed from any state, resolved
// included.
func (s *SolicitationService) AddComment(ctx context.Context, solicitationID, text, actorID string) (*domain.HistoryEntry, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewValidationError("comment text is required", nil)
	}
	if _, err := s.mustGet(ctx, solicitationID); err != nil {
		return nil, err
	}

	entry := &domain.HistoryEntry{
		SolicitationID: solicitationID,
		Kind:           domain.HistoryComment,
		Description:    text,
		ActorID:        &actorID,
	}
	if err := s.history.Append(ctx, entry); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:           events.EventStatusUpdated,
		SolicitationID: solicitationID,
		ActorID:        &actorID,
		Payload:        events.StatusUpdatedPayload{Status: events.CommentStatusMarker},
	})
	return entry, nil
}

// Assign moves the solicitation to EM_ANALISE and records the note. The
// assignee must exist; beyond that no prior-state check applies.
func (s *SolicitationService) Assign(ctx context.Context, solicitationID, assigneeID, note, adminID string) (*domain.Solicitation, error) {
	if _, err := s.users.GetByID(ctx, assigneeID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("assignee", map[string]any{"assignee_id": assigneeID})
		}
		return nil, apperrors.MapError(err)
	}
	return s.applyCommand(ctx, solicitationID, commandAssign, note, adminID)
}

// FirstResponse moves the solicitation to EM_EXECUCAO and stops the TMR
// countdown. The first call stamps firstResponseAt; later calls keep the
// original timestamp but still transition and append history.
func (s *SolicitationService) FirstResponse(ctx context.Context, solicitationID, responseText, adminID string) (*domain.Solicitation, error) {
	if strings.TrimSpace(responseText) == "" {
		return nil, apperrors.NewValidationError("response text is required", nil)
	}

	if _, err := s.mustGet(ctx, solicitationID); err != nil {
		return nil, err
	}

	spec := commandTable[commandFirstResponse]
	err := s.tx.WithinTx(ctx, func(tx pgx.Tx) error {
		if err := s.solicitations.WithTx(tx).SetFirstResponse(ctx, solicitationID, spec.next, s.clock.Now()); err != nil {
			return err
		}
		return s.history.WithTx(tx).Append(ctx, &domain.HistoryEntry{
			SolicitationID: solicitationID,
			Kind:           spec.kind,
			Description:    spec.describe(responseText),
			ActorID:        &adminID,
		})
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	return s.finishStatusCommand(ctx, solicitationID, spec.next, adminID)
}

// Resolve marks the solicitation RESOLVIDO. Repeated calls are state
// no-ops that still append a history entry.
func (s *SolicitationService) Resolve(ctx context.Context, solicitationID, actorID string) (*domain.Solicitation, error) {
	return s.applyCommand(ctx, solicitationID, commandResolve, "", actorID)
}

// ListMine returns the owner's solicitations, newest first.
func (s *SolicitationService) ListMine(ctx context.Context, ownerID string) ([]domain.Solicitation, error) {
	list, err := s.solicitations.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.hydrateAttachments(ctx, list)
}

// ListNew returns every non-resolved solicitation for the admin inbox.
func (s *SolicitationService) ListNew(ctx context.Context) ([]domain.Solicitation, error) {
	list, err := s.solicitations.ListByStatusIn(ctx, domain.ActiveStatuses, repository.OrderByCreatedDesc)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.hydrateAttachments(ctx, list)
}

// ListResolved returns resolved solicitations, most recently updated first.
func (s *SolicitationService) ListResolved(ctx context.Context) ([]domain.Solicitation, error) {
	list, err := s.solicitations.ListByStatusIn(ctx, []domain.SolicitationStatus{domain.StatusResolved}, repository.OrderByUpdatedDesc)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.hydrateAttachments(ctx, list)
}

// Get fetches a solicitation with its attachments. A missing id yields
// (nil, nil): get paths surface absence as an empty result, not an error.
func (s *SolicitationService) Get(ctx context.Context, id string) (*domain.Solicitation, error) {
	solicitation, err := s.solicitations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}
	attachments, err := s.attachments.ListBySolicitation(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	solicitation.Attachments = attachments
	return solicitation, nil
}

// History returns the audit ledger oldest first, annotated with actor names.
func (s *SolicitationService) History(ctx context.Context, solicitationID string) ([]domain.HistoryEntry, error) {
	entries, err := s.history.ListBySolicitation(ctx, solicitationID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// Now exposes the engine's clock so transports derive the SLA field from
// the same time source.
func (s *SolicitationService) Now() clock.Clock {
	return s.clock
}

func (s *SolicitationService) applyCommand(ctx context.Context, solicitationID string, cmd command, arg, actorID string) (*domain.Solicitation, error) {
	spec, ok := commandTable[cmd]
	if !ok {
		return nil, apperrors.NewValidationError("unknown command", map[string]any{"command": cmd})
	}

	if _, err := s.mustGet(ctx, solicitationID); err != nil {
		return nil, err
	}

	err := s.tx.WithinTx(ctx, func(tx pgx.Tx) error {
		if err := s.solicitations.WithTx(tx).UpdateStatus(ctx, solicitationID, spec.next); err != nil {
			return err
		}
		return s.history.WithTx(tx).Append(ctx, &domain.HistoryEntry{
			SolicitationID: solicitationID,
			Kind:           spec.kind,
			Description:    spec.describe(arg),
			ActorID:        &actorID,
		})
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	return s.finishStatusCommand(ctx, solicitationID, spec.next, actorID)
}

// finishStatusCommand re-reads the full entity and broadcasts the new status.
func (s *SolicitationService) finishStatusCommand(ctx context.Context, solicitationID string, status domain.SolicitationStatus, actorID string) (*domain.Solicitation, error) {
	hydrated, err := s.Get(ctx, solicitationID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:           events.EventStatusUpdated,
		SolicitationID: solicitationID,
		ActorID:        &actorID,
		Payload:        events.StatusUpdatedPayload{Status: string(status)},
	})
	return hydrated, nil
}

func (s *SolicitationService) mustGet(ctx context.Context, id string) (*domain.Solicitation, error) {
	solicitation, err := s.solicitations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("solicitation", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return solicitation, nil
}

func (s *SolicitationService) hydrateAttachments(ctx context.Context, list []domain.Solicitation) ([]domain.Solicitation, error) {
	for i := range list {
		attachments, err := s.attachments.ListBySolicitation(ctx, list[i].ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		list[i].Attachments = attachments
	}
	return list, nil
}

func (s *SolicitationService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
