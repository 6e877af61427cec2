package domain

import (
	"time"

	"github.com/google/uuid"
)

// SceneStatus represents the lifecycle state of a single scene.
type SceneStatus string

// Scene statuses.
const (
	SceneStatusPending    SceneStatus = "pending"
	SceneStatusGenerating SceneStatus = "generating"
	SceneStatusCompleted  SceneStatus = "completed"
	SceneStatusFailed     SceneStatus = "failed"
)

// TranscriptWord is one word of a narration transcript with its timing
// offsets in seconds from the start of the audio.
type TranscriptWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Scene is one illustrated, narrated segment of a story. Asset URLs are
// empty until the pipeline has uploaded the corresponding objects; AudioURL
// stays empty and AudioDuration zero when narration was degraded away.
type Scene struct {
	ID            uuid.UUID        `json:"id"`
	StoryID       uuid.UUID        `json:"story_id"`
	Order         int              `json:"scene_order"`
	Text          string           `json:"text"`
	ImagePrompt   string           `json:"image_prompt"`
	ImageURL      string           `json:"image_url,omitempty"`
	AudioURL      string           `json:"audio_url,omitempty"`
	AudioDuration float64          `json:"audio_duration"`
	Transcript    []TranscriptWord `json:"transcript,omitempty"`
	Status        SceneStatus      `json:"status"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	StartedAt     *time.Time       `json:"started_at,omitempty"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// NewScene creates a pending scene for the given story. Order is 1-based
// and must be unique within the story.
func NewScene(storyID uuid.UUID, order int, text, imagePrompt string) (*Scene, error) {
	now := time.Now().UTC()
	scene := &Scene{
		ID:          uuid.New(),
		StoryID:     storyID,
		Order:       order,
		Text:        text,
		ImagePrompt: imagePrompt,
		Status:      SceneStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := scene.Validate(); err != nil {
		return nil, err
	}

	return scene, nil
}

// Validate checks if the Scene has valid data.
func (sc *Scene) Validate() error {
	if sc.ID == uuid.Nil {
		return ErrInvalidID
	}
	if sc.StoryID == uuid.Nil {
		return ErrInvalidID
	}
	if sc.Order < 1 {
		return ErrInvalidID
	}
	if sc.Text == "" {
		return ErrEmptyContent
	}
	if !isValidSceneStatus(sc.Status) {
		return ErrInvalidSceneStatus
	}
	return nil
}

// UpdateStatus transitions the scene to a new status and touches UpdatedAt.
func (sc *Scene) UpdateStatus(status SceneStatus) error {
	if !isValidSceneStatus(status) {
		return ErrInvalidSceneStatus
	}
	sc.Status = status
	sc.UpdatedAt = time.Now().UTC()
	return nil
}

// IsTerminal reports whether the scene has finished, successfully or not.
func (sc *Scene) IsTerminal() bool {
	return sc.Status == SceneStatusCompleted || sc.Status == SceneStatusFailed
}

// isValidSceneStatus checks if the provided status is valid.
func isValidSceneStatus(status SceneStatus) bool {
	switch status {
	case SceneStatusPending, SceneStatusGenerating, SceneStatusCompleted, SceneStatusFailed:
		return true
	default:
		return false
	}
}
