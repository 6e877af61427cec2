package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/lumenhq/fable-api/internal/domain"
	"github.com/lumenhq/fable-api/internal/service"
)

// RegisterRequest is the payload for POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=12,max=72"`
}

// LoginRequest is the payload for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// RefreshTokenRequest is the payload for POST /api/auth/refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthResponse is the token pair returned by all three auth endpoints.
type AuthResponse struct {
	UserID       uuid.UUID `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`

	// ExpiresAt is the RFC 3339 timestamp at which the access token expires.
	ExpiresAt string `json:"expires_at"`
}

// CreateStoryRequest is the payload for POST /api/stories. The prompt bounds
// mirror the domain rules so obvious violations are rejected before any
// generation work starts.
type CreateStoryRequest struct {
	Prompt     string `json:"prompt"      validate:"required,min=10,max=500"`
	Length     string `json:"length"      validate:"required,oneof=short medium long"`
	Tone       string `json:"tone"        validate:"omitempty,max=100"`
	Theme      string `json:"theme"       validate:"omitempty,max=100"`
	ChildName  string `json:"child_name"  validate:"omitempty,max=100"`
	ImageStyle string `json:"image_style" validate:"omitempty,max=200"`
	Voice      string `json:"voice"       validate:"omitempty,max=100"`
}

// toDomain converts the request into the domain value object.
func (req CreateStoryRequest) toDomain() domain.StoryRequest {
	return domain.StoryRequest{
		Prompt:     req.Prompt,
		Length:     domain.StoryLength(req.Length),
		Tone:       req.Tone,
		Theme:      req.Theme,
		ChildName:  req.ChildName,
		ImageStyle: req.ImageStyle,
		Voice:      req.Voice,
	}
}

// SceneResponse is the API shape of one scene.
type SceneResponse struct {
	ID            string                  `json:"id"`
	Order         int                     `json:"order"`
	Text          string                  `json:"text"`
	Status        string                  `json:"status"`
	ImageURL      string                  `json:"image_url,omitempty"`
	AudioURL      string                  `json:"audio_url,omitempty"`
	AudioDuration float64                 `json:"audio_duration,omitempty"`
	Transcript    []domain.TranscriptWord `json:"transcript,omitempty"`
	ErrorMessage  string                  `json:"error_message,omitempty"`
}

// StoryResponse is the API shape of a story.
type StoryResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Prompt          string    `json:"prompt"`
	Length          string    `json:"length"`
	Status          string    `json:"status"`
	ScenesTotal     int       `json:"scenes_total"`
	ScenesCompleted int       `json:"scenes_completed"`
	Progress        float64   `json:"progress"`
	CoverURL        string    `json:"cover_url,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ProgressSummary is the compact progress block embedded in start payloads.
type ProgressSummary struct {
	ScenesCompleted int     `json:"scenes_completed"`
	ScenesTotal     int     `json:"scenes_total"`
	Percentage      float64 `json:"percentage"`
}

// CreateStoryResponse is the start payload for a new story: the story, its
// ready first scene, where generation stands and where to poll for the rest.
type CreateStoryResponse struct {
	Story      StoryResponse   `json:"story"`
	FirstScene SceneResponse   `json:"first_scene"`
	Progress   ProgressSummary `json:"progress"`
	PollURL    string          `json:"poll_url"`
}

// ProgressResponse is the poll payload for GET /api/stories/{id}/progress.
// Scenes holds only completed scenes in ascending order; the estimate is
// present only while the story is still generating.
type ProgressResponse struct {
	StoryID                   string          `json:"story_id"`
	Status                    string          `json:"status"`
	ScenesTotal               int             `json:"scenes_total"`
	ScenesCompleted           int             `json:"scenes_completed"`
	Progress                  float64         `json:"progress"`
	Scenes                    []SceneResponse `json:"scenes"`
	EstimatedSecondsRemaining int             `json:"estimated_seconds_remaining,omitempty"`
	ErrorMessage              string          `json:"error_message,omitempty"`
}

// StoryDetailResponse is the full story payload with every scene.
type StoryDetailResponse struct {
	Story  StoryResponse   `json:"story"`
	Scenes []SceneResponse `json:"scenes"`
}

// StoryListResponse wraps the owner's stories, newest first.
type StoryListResponse struct {
	Stories []StoryResponse `json:"stories"`
}

// CancelGenerationResponse reports the outcome of a cancellation request.
// Cancelled is false when no generation was running for the story.
type CancelGenerationResponse struct {
	StoryID   string `json:"story_id"`
	Cancelled bool   `json:"cancelled"`
}

// storyToResponse converts a domain.Story to its API shape.
func storyToResponse(story *domain.Story) StoryResponse {
	return StoryResponse{
		ID:              story.ID.String(),
		Title:           story.Title,
		Prompt:          story.Prompt,
		Length:          string(story.Length),
		Status:          string(story.Status),
		ScenesTotal:     story.ScenesTotal,
		ScenesCompleted: story.ScenesCompleted,
		Progress:        story.ProgressPercentage(),
		CoverURL:        story.CoverURL,
		ErrorMessage:    story.ErrorMessage,
		CreatedAt:       story.CreatedAt,
		UpdatedAt:       story.UpdatedAt,
	}
}

// sceneToResponse converts a domain.Scene to its API shape.
func sceneToResponse(scene *domain.Scene) SceneResponse {
	return SceneResponse{
		ID:            scene.ID.String(),
		Order:         scene.Order,
		Text:          scene.Text,
		Status:        string(scene.Status),
		ImageURL:      scene.ImageURL,
		AudioURL:      scene.AudioURL,
		AudioDuration: scene.AudioDuration,
		Transcript:    scene.Transcript,
		ErrorMessage:  scene.ErrorMessage,
	}
}

// scenesToResponse converts a scene slice, returning an empty slice rather
// than nil so the JSON renders as [] instead of null.
func scenesToResponse(scenes []*domain.Scene) []SceneResponse {
	out := make([]SceneResponse, 0, len(scenes))
	for _, scene := range scenes {
		out = append(out, sceneToResponse(scene))
	}
	return out
}

// progressToResponse builds the poll payload from the service view.
func progressToResponse(prog *service.StoryProgress) ProgressResponse {
	return ProgressResponse{
		StoryID:                   prog.Story.ID.String(),
		Status:                    string(prog.Story.Status),
		ScenesTotal:               prog.Story.ScenesTotal,
		ScenesCompleted:           prog.Story.ScenesCompleted,
		Progress:                  prog.Story.ProgressPercentage(),
		Scenes:                    scenesToResponse(prog.CompletedScenes),
		EstimatedSecondsRemaining: prog.EstimatedSecondsRemaining,
		ErrorMessage:              prog.Story.ErrorMessage,
	}
}
