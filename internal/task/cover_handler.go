package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lumenhq/fable-api/internal/events"
)

// CoverGenerator produces and stores the cover image for a story.
type CoverGenerator interface {
	Generate(ctx context.Context, storyID uuid.UUID) error
}

// StoryTaskKey returns the registry key for a story's scene pipeline.
func StoryTaskKey(storyID uuid.UUID) string {
	return "story:" + storyID.String()
}

// CoverTaskKey returns the registry key for a story's cover task. Covers
// run under their own key so scheduling one never displaces the scene
// pipeline for the same story.
func CoverTaskKey(storyID uuid.UUID) string {
	return "cover:" + storyID.String()
}

// CoverEventHandler reacts to cover generation events by scheduling the
// cover work on the task manager. It decouples the story service from
// the worker package, which would otherwise import each other.
type CoverEventHandler struct {
	manager   *Manager
	generator CoverGenerator
	logger    *slog.Logger
}

// NewCoverEventHandler creates an event handler that runs cover
// generation through the given manager.
func NewCoverEventHandler(
	manager *Manager,
	generator CoverGenerator,
	logger *slog.Logger,
) (*CoverEventHandler, error) {
	if manager == nil {
		return nil, errors.New("task manager cannot be nil")
	}
	if generator == nil {
		return nil, errors.New("cover generator cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &CoverEventHandler{
		manager:   manager,
		generator: generator,
		logger:    logger.With(slog.String("component", "cover_event_handler")),
	}, nil
}

// HandleEvent schedules cover generation for the story named in the
// event payload. Events of other types are ignored.
func (h *CoverEventHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	if event.Type != TypeCoverGeneration {
		h.logger.Debug("ignoring event with unsupported type",
			slog.String("event_type", event.Type),
			slog.String("event_id", event.ID.String()))
		return nil
	}

	var payload struct {
		StoryID string `json:"story_id"`
	}
	if err := event.UnmarshalPayload(&payload); err != nil {
		h.logger.Warn("failed to unmarshal cover event payload",
			slog.String("error", err.Error()),
			slog.String("event_id", event.ID.String()))
		return fmt.Errorf("failed to unmarshal cover event payload: %w", err)
	}

	storyID, err := uuid.Parse(payload.StoryID)
	if err != nil {
		h.logger.Warn("cover event carries an invalid story ID",
			slog.String("story_id", payload.StoryID),
			slog.String("event_id", event.ID.String()))
		return fmt.Errorf("invalid story ID %q: %w", payload.StoryID, err)
	}

	h.manager.Start(CoverTaskKey(storyID), TypeCoverGeneration, func(ctx context.Context) error {
		return h.generator.Generate(ctx, storyID)
	})
	return nil
}

var _ events.EventHandler = (*CoverEventHandler)(nil)
