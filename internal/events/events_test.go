package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskRequestEvent(t *testing.T) {
	t.Parallel()

	storyID := uuid.New()
	event, err := NewTaskRequestEvent("cover_generation", map[string]string{
		"story_id": storyID.String(),
	})

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, "cover_generation", event.Type)
	assert.WithinDuration(t, time.Now(), event.CreatedAt, 2*time.Second)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	assert.Equal(t, storyID.String(), decoded["story_id"])
}

func TestNewTaskRequestEventRejectsUnserializablePayload(t *testing.T) {
	t.Parallel()

	_, err := NewTaskRequestEvent("cover_generation", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to marshal event payload")
}

func TestUnmarshalPayload(t *testing.T) {
	t.Parallel()

	storyID := uuid.New()
	event, err := NewTaskRequestEvent("cover_generation", map[string]string{
		"story_id": storyID.String(),
	})
	require.NoError(t, err)

	var payload struct {
		StoryID string `json:"story_id"`
	}
	require.NoError(t, event.UnmarshalPayload(&payload))
	assert.Equal(t, storyID.String(), payload.StoryID)
}

// recordingHandler implements EventHandler for tests.
type recordingHandler struct {
	LastEvent    *TaskRequestEvent
	HandledCount int
	HandlerError error
}

func (h *recordingHandler) HandleEvent(ctx context.Context, event *TaskRequestEvent) error {
	h.LastEvent = event
	h.HandledCount++
	return h.HandlerError
}

var _ EventHandler = (*recordingHandler)(nil)
