package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskRequestEvent asks for a piece of background work to be scheduled.
// The payload carries task-specific data as JSON so the event type has
// no compile-time dependency on any particular task.
type TaskRequestEvent struct {
	// ID uniquely identifies this event instance.
	ID uuid.UUID `json:"id"`

	// Type names the kind of task being requested.
	Type string `json:"type"`

	// Payload holds the task-specific data serialized as JSON.
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is when the event was emitted.
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the given value.
func (e *TaskRequestEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewTaskRequestEvent builds an event of the given type, serializing the
// payload to JSON.
func NewTaskRequestEvent(eventType string, payload interface{}) (*TaskRequestEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	return &TaskRequestEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   data,
		CreatedAt: time.Now(),
	}, nil
}

// EventHandler processes emitted events.
type EventHandler interface {
	// HandleEvent processes the given event. Returning an error marks
	// the event as unhandled for this handler but does not stop other
	// handlers from seeing it.
	HandleEvent(ctx context.Context, event *TaskRequestEvent) error
}

// EventEmitter publishes events to whoever is listening.
type EventEmitter interface {
	// EmitEvent delivers the event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskRequestEvent) error
}
