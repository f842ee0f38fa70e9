package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEventHandler records the events it receives.
type MockEventHandler struct {
	mu sync.Mutex
	// Events received by this handler, in order
	Events []*BroadcastEvent
	// Error to return from HandleEvent
	HandlerError error
	// Received is signalled once per event when non-nil
	Received chan *BroadcastEvent
}

// HandleEvent implements the EventHandler interface
func (h *MockEventHandler) HandleEvent(ctx context.Context, event *BroadcastEvent) error {
	h.mu.Lock()
	h.Events = append(h.Events, event)
	h.mu.Unlock()
	if h.Received != nil {
		h.Received <- event
	}
	return h.HandlerError
}

// Count returns the number of handled events.
func (h *MockEventHandler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Events)
}

func TestNewBroadcastEvent(t *testing.T) {
	message := map[string]any{"type": "typing", "user_id": 2, "username": "bob"}

	event, err := NewBroadcastEvent(7, "typing", 2, message)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, int64(7), event.TaskID)
	assert.Equal(t, "typing", event.Type)
	assert.Equal(t, int64(2), event.ExcludeUserID)
	assert.WithinDuration(t, time.Now(), event.CreatedAt, 2*time.Second)
	assert.JSONEq(t, `{"type":"typing","user_id":2,"username":"bob"}`, string(event.Payload))
}

func TestNewBroadcastEventUnencodable(t *testing.T) {
	_, err := NewBroadcastEvent(7, "bad", 0, make(chan int))
	assert.Error(t, err)
}

func TestBroadcastEventJSONRoundTripKeepsPayloadBytes(t *testing.T) {
	event, err := NewBroadcastEvent(3, "delete_comment", 0, map[string]any{
		"type": "delete_comment",
		"data": map[string]int{"comment_id": 5},
	})
	require.NoError(t, err)

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded BroadcastEvent
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, int64(3), decoded.TaskID)
	assert.Zero(t, decoded.ExcludeUserID)
	assert.JSONEq(t, string(event.Payload), string(decoded.Payload))
}
