package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/conecta-ies/solicitation-service/internal/events"
)

// NotificationService records lifecycle events in the structured log. It is
// a dispatcher subscriber alongside the realtime bridge, so observability
// does not depend on any websocket client being connected.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSolicitationCreated, n.handleCreated)
	n.dispatcher.Subscribe(events.EventStatusUpdated, n.handleStatusUpdated)
}

func (n *NotificationService) handleCreated(_ context.Context, event events.Event) error {
	n.logger.Info("solicitation created",
		zap.String("solicitation_id", event.SolicitationID),
		zap.Stringp("actor_id", event.ActorID))
	return nil
}

func (n *NotificationService) handleStatusUpdated(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.StatusUpdatedPayload)
	n.logger.Info("solicitation status updated",
		zap.String("solicitation_id", event.SolicitationID),
		zap.String("status", payload.Status),
		zap.Stringp("actor_id", event.ActorID))
	return nil
}
