package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// StoryStatus represents the lifecycle state of a story.
type StoryStatus string

// Story statuses.
const (
	StoryStatusPending    StoryStatus = "pending"
	StoryStatusGenerating StoryStatus = "generating"
	StoryStatusCompleted  StoryStatus = "completed"
	StoryStatusFailed     StoryStatus = "failed"
)

// Story is the aggregate root for one generated story. Scene rows hang off
// it via StoryID; the scenes_completed counter is the single source of truth
// for progress reporting. Voice and the two descriptors persist the
// narration and visual identity chosen at creation so the background
// pipeline reproduces them in every scene; they are internal and never
// serialized.
type Story struct {
	ID                   uuid.UUID   `json:"id"`
	UserID               uuid.UUID   `json:"user_id"`
	Title                string      `json:"title"`
	Prompt               string      `json:"prompt"`
	Length               StoryLength `json:"length"`
	Tone                 string      `json:"tone,omitempty"`
	Theme                string      `json:"theme,omitempty"`
	ChildName            string      `json:"child_name,omitempty"`
	ImageStyle           string      `json:"image_style,omitempty"`
	Voice                string      `json:"-"`
	CharacterDescriptor  string      `json:"-"`
	BackgroundDescriptor string      `json:"-"`
	Status               StoryStatus `json:"status"`
	ScenesTotal          int         `json:"scenes_total"`
	ScenesCompleted      int         `json:"scenes_completed"`
	CoverURL             string      `json:"cover_url,omitempty"`
	ErrorMessage         string      `json:"error_message,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// NewStory creates a story in the pending state from a validated request and
// the title and visual descriptors produced by narrative generation. Either
// descriptor may be empty when the narrative omitted it.
func NewStory(
	userID uuid.UUID,
	req StoryRequest,
	title, characterDescriptor, backgroundDescriptor string,
) (*Story, error) {
	now := time.Now().UTC()
	story := &Story{
		ID:                   uuid.New(),
		UserID:               userID,
		Title:                title,
		Prompt:               req.Prompt,
		Length:               req.Length,
		Tone:                 req.Tone,
		Theme:                req.Theme,
		ChildName:            req.ChildName,
		ImageStyle:           req.ImageStyle,
		Voice:                req.Voice,
		CharacterDescriptor:  characterDescriptor,
		BackgroundDescriptor: backgroundDescriptor,
		Status:               StoryStatusPending,
		// ScenesTotal is fixed at creation; scenes_completed only ever
		// moves toward it.
		ScenesTotal: req.Length.SceneCount(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := story.Validate(); err != nil {
		return nil, err
	}

	return story, nil
}

// Validate checks if the Story has valid data.
func (s *Story) Validate() error {
	if s.ID == uuid.Nil {
		return ErrInvalidID
	}
	if s.UserID == uuid.Nil {
		return ErrInvalidID
	}
	if s.Title == "" {
		return ErrEmptyContent
	}
	if !s.Length.IsValid() {
		return ErrInvalidStoryLength
	}
	if !isValidStoryStatus(s.Status) {
		return ErrInvalidStoryStatus
	}
	return nil
}

// UpdateStatus transitions the story to a new status and touches UpdatedAt.
func (s *Story) UpdateStatus(status StoryStatus) error {
	if !isValidStoryStatus(status) {
		return ErrInvalidStoryStatus
	}
	s.Status = status
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// ProgressPercentage returns completion as a percentage rounded to one
// decimal place, so 1/6 reports 16.7 rather than 16.666666.
func (s *Story) ProgressPercentage() float64 {
	if s.ScenesTotal <= 0 {
		return 0
	}
	pct := float64(s.ScenesCompleted) / float64(s.ScenesTotal) * 100
	return math.Round(pct*10) / 10
}

// RemainingScenes returns how many scenes have not reached a terminal state.
func (s *Story) RemainingScenes() int {
	remaining := s.ScenesTotal - s.ScenesCompleted
	if remaining < 0 {
		return 0
	}
	return remaining
}

// isValidStoryStatus checks if the provided status is valid.
func isValidStoryStatus(status StoryStatus) bool {
	switch status {
	case StoryStatusPending, StoryStatusGenerating, StoryStatusCompleted, StoryStatusFailed:
		return true
	default:
		return false
	}
}
