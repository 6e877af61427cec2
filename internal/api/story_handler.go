package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lumenhq/fable-api/internal/api/shared"
	"github.com/lumenhq/fable-api/internal/domain"
	"github.com/lumenhq/fable-api/internal/platform/logger"
	"github.com/lumenhq/fable-api/internal/service"
)

// storyProgressPath is the poll URL template returned with new stories.
const storyProgressPath = "/api/stories/%s/progress"

// StoryHandler serves the story endpoints.
type StoryHandler struct {
	storyService service.StoryService
	logger       *slog.Logger
}

// NewStoryHandler creates a new StoryHandler.
func NewStoryHandler(storyService service.StoryService, log *slog.Logger) *StoryHandler {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for StoryHandler")
	}

	return &StoryHandler{
		storyService: storyService,
		logger:       log.With(slog.String("component", "story_handler")),
	}
}

// CreateStory handles POST /api/stories. The call blocks until the first
// scene's assets are ready, so the 201 payload already contains a playable
// scene plus a poll URL for the rest.
func (h *StoryHandler) CreateStory(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := getUserIDFromContext(r)
	if !ok {
		log.Warn("user ID not found or invalid in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized, "User ID not found or invalid")
		return
	}

	var req CreateStoryRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	log.Debug("creating story",
		slog.String("user_id", userID.String()),
		slog.String("length", req.Length))

	start, err := h.storyService.CreateStory(r.Context(), userID, req.toDomain())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	story := start.Story
	shared.RespondWithJSON(w, r, http.StatusCreated, CreateStoryResponse{
		Story:      storyToResponse(story),
		FirstScene: sceneToResponse(start.FirstScene),
		Progress: ProgressSummary{
			ScenesCompleted: story.ScenesCompleted,
			ScenesTotal:     story.ScenesTotal,
			Percentage:      story.ProgressPercentage(),
		},
		PollURL: fmt.Sprintf(storyProgressPath, story.ID),
	})
}

// GetProgress handles GET /api/stories/{id}/progress. This is the polling
// endpoint: read-only, cheap, and scene failures never turn into a 5xx here.
func (h *StoryHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, storyID, ok := handleUserIDAndPathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	prog, err := h.storyService.GetStoryProgress(r.Context(), userID, storyID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, progressToResponse(prog))
}

// GetStory handles GET /api/stories/{id}: the full story with every scene,
// whatever state each is in.
func (h *StoryHandler) GetStory(w http.ResponseWriter, r *http.Request) {
	userID, storyID, ok := handleUserIDAndPathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	detail, err := h.storyService.GetStory(r.Context(), userID, storyID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, StoryDetailResponse{
		Story:  storyToResponse(detail.Story),
		Scenes: scenesToResponse(detail.Scenes),
	})
}

// ListStories handles GET /api/stories: the owner's stories, newest first.
func (h *StoryHandler) ListStories(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := getUserIDFromContext(r)
	if !ok {
		log.Warn("user ID not found or invalid in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized, "User ID not found or invalid")
		return
	}

	stories, err := h.storyService.ListStories(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	response := StoryListResponse{Stories: make([]StoryResponse, 0, len(stories))}
	for _, story := range stories {
		response.Stories = append(response.Stories, storyToResponse(story))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// CancelGeneration handles DELETE /api/stories/{id}/generation. Cancellation
// is asynchronous: the worker notices its cancelled context and stops after
// the scene in flight, so the response is 202 rather than 200.
func (h *StoryHandler) CancelGeneration(w http.ResponseWriter, r *http.Request) {
	userID, storyID, ok := handleUserIDAndPathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	cancelled, err := h.storyService.CancelGeneration(r.Context(), userID, storyID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, CancelGenerationResponse{
		StoryID:   storyID.String(),
		Cancelled: cancelled,
	})
}
