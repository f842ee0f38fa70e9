package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BroadcastEvent is one outbound message addressed to every listener of a task.
// Payload holds the already encoded wire message so every instance delivers
// identical bytes.
type BroadcastEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// TaskID selects the listener group
	TaskID int64 `json:"task_id"`

	// Type mirrors the wire message type, e.g. "new_comment"
	Type string `json:"type"`

	// ExcludeUserID, when non-zero, is skipped during delivery
	ExcludeUserID int64 `json:"exclude_user_id,omitempty"`

	// Payload is the encoded message sent to each listener
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewBroadcastEvent encodes message and wraps it in an event for taskID.
// A zero excludeUserID delivers to everyone.
func NewBroadcastEvent(taskID int64, eventType string, excludeUserID int64, message any) (*BroadcastEvent, error) {
	payload, err := json.Marshal(message)
	if err != nil {
		return nil, err
	}

	return &BroadcastEvent{
		ID:            uuid.New(),
		TaskID:        taskID,
		Type:          eventType,
		ExcludeUserID: excludeUserID,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *BroadcastEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// Publishers do not know whether delivery happens in process or through Redis.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *BroadcastEvent) error
}

// Bus is an EventEmitter that also accepts handlers.
type Bus interface {
	EventEmitter
	RegisterHandler(handler EventHandler)
}

var (
	_ Bus = (*InMemoryEventEmitter)(nil)
	_ Bus = (*RedisBus)(nil)
)
