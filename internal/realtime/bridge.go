package realtime

import (
	"context"

	"github.com/conecta-ies/solicitation-service/internal/api/dto"
	"github.com/conecta-ies/solicitation-service/internal/clock"
	"github.com/conecta-ies/solicitation-service/internal/events"
)

// AttachDispatcher subscribes the hub to lifecycle events so every state
// change published by the engine is mirrored to connected observers.
func AttachDispatcher(hub *Hub, dispatcher events.Dispatcher, clk clock.Clock) {
	dispatcher.Subscribe(events.EventSolicitationCreated, func(_ context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.SolicitationCreatedPayload)
		if !ok || payload.Solicitation == nil {
			return nil
		}
		hub.BroadcastNewRequest(dto.NewSolicitationResponse(payload.Solicitation, clk.Now()))
		return nil
	})

	dispatcher.Subscribe(events.EventStatusUpdated, func(_ context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.StatusUpdatedPayload)
		if !ok {
			return nil
		}
		hub.BroadcastStatusUpdate(event.SolicitationID, payload.Status, event.Timestamp)
		return nil
	})
}
