package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryEventEmitter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	newEvent := func(t *testing.T) *BroadcastEvent {
		event, err := NewBroadcastEvent(7, "new_comment", 0, map[string]string{"type": "new_comment"})
		require.NoError(t, err)
		return event
	}

	t.Run("emit event with no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		assert.NoError(t, emitter.EmitEvent(context.Background(), newEvent(t)))
	})

	t.Run("every handler receives the event", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		handler1 := &MockEventHandler{}
		handler2 := &MockEventHandler{}
		emitter.RegisterHandler(handler1)
		emitter.RegisterHandler(handler2)
		event := newEvent(t)

		require.NoError(t, emitter.EmitEvent(context.Background(), event))

		assert.Equal(t, []*BroadcastEvent{event}, handler1.Events)
		assert.Equal(t, []*BroadcastEvent{event}, handler2.Events)
	})

	t.Run("failing handler does not stop the others", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(nil)
		failing := &MockEventHandler{HandlerError: errors.New("handler error")}
		healthy := &MockEventHandler{}
		emitter.RegisterHandler(failing)
		emitter.RegisterHandler(healthy)

		err := emitter.EmitEvent(context.Background(), newEvent(t))

		assert.EqualError(t, err, "handler error")
		assert.Equal(t, 1, failing.Count())
		assert.Equal(t, 1, healthy.Count())
	})
}
