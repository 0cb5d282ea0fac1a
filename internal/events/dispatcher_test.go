package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_DeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var received []Event
	d.Subscribe(EventStatusUpdated, func(_ context.Context, e Event) error {
		received = append(received, e)
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventStatusUpdated, SolicitationID: "s1"})
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "s1", received[0].SolicitationID)
}

func TestDispatcher_IgnoresUnrelatedEventTypes(t *testing.T) {
	d := NewInMemoryDispatcher()

	calls := 0
	d.Subscribe(EventSolicitationCreated, func(context.Context, Event) error {
		calls++
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventStatusUpdated}))
	assert.Zero(t, calls)
}

func TestDispatcher_FailingHandlerDoesNotStopOthers(t *testing.T) {
	d := NewInMemoryDispatcher()

	second := false
	d.Subscribe(EventStatusUpdated, func(context.Context, Event) error {
		return errors.New("boom")
	})
	d.Subscribe(EventStatusUpdated, func(context.Context, Event) error {
		second = true
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventStatusUpdated}))
	assert.True(t, second)
}

func TestDispatcher_PublishWithoutSubscribersIsNoop(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventSolicitationCreated}))
}
