package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewScene(t *testing.T) {
	t.Parallel()
	storyID := uuid.New()

	scene, err := NewScene(storyID, 1, "Once upon a time...", "A fox by a river at dawn")

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if scene.ID == uuid.Nil {
		t.Error("Expected non-nil UUID, got nil UUID")
	}

	if scene.StoryID != storyID {
		t.Errorf("Expected story ID %s, got %s", storyID, scene.StoryID)
	}

	if scene.Order != 1 {
		t.Errorf("Expected order 1, got %d", scene.Order)
	}

	if scene.Status != SceneStatusPending {
		t.Errorf("Expected status %s, got %s", SceneStatusPending, scene.Status)
	}

	if scene.AudioDuration != 0 {
		t.Errorf("Expected zero audio duration, got %v", scene.AudioDuration)
	}

	// Test invalid order
	_, err = NewScene(storyID, 0, "text", "prompt")
	if err != ErrInvalidID {
		t.Errorf("Expected error %v, got %v", ErrInvalidID, err)
	}

	// Test empty text
	_, err = NewScene(storyID, 2, "", "prompt")
	if err != ErrEmptyContent {
		t.Errorf("Expected error %v, got %v", ErrEmptyContent, err)
	}
}

func TestSceneUpdateStatus(t *testing.T) {
	t.Parallel()
	scene := Scene{
		ID:      uuid.New(),
		StoryID: uuid.New(),
		Order:   1,
		Text:    "Test scene",
		Status:  SceneStatusPending,
	}

	if err := scene.UpdateStatus(SceneStatusGenerating); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if scene.Status != SceneStatusGenerating {
		t.Errorf("Expected status %s, got %s", SceneStatusGenerating, scene.Status)
	}

	if err := scene.UpdateStatus("skipped"); err != ErrInvalidSceneStatus {
		t.Errorf("Expected error %v, got %v", ErrInvalidSceneStatus, err)
	}
}

func TestSceneIsTerminal(t *testing.T) {
	t.Parallel()
	cases := []struct {
		status SceneStatus
		want   bool
	}{
		{SceneStatusPending, false},
		{SceneStatusGenerating, false},
		{SceneStatusCompleted, true},
		{SceneStatusFailed, true},
	}

	for _, tc := range cases {
		scene := Scene{Status: tc.status}
		if got := scene.IsTerminal(); got != tc.want {
			t.Errorf("IsTerminal() for %s = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestStoryRequestValidate(t *testing.T) {
	t.Parallel()
	req := StoryRequest{
		Prompt: "A dragon who is afraid of the dark",
		Length: LengthMedium,
	}

	if err := req.Validate(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	short := req
	short.Prompt = "Too short"
	if err := short.Validate(); err == nil {
		t.Error("Expected error for prompt under minimum length")
	}

	long := req
	for len(long.Prompt) <= MaxPromptLength {
		long.Prompt += " and then some more happened"
	}
	if err := long.Validate(); err == nil {
		t.Error("Expected error for prompt over maximum length")
	}

	badLength := req
	badLength.Length = "novella"
	if err := badLength.Validate(); err != ErrInvalidStoryLength {
		t.Errorf("Expected error %v, got %v", ErrInvalidStoryLength, err)
	}
}

func TestStoryRequestNormalize(t *testing.T) {
	t.Parallel()
	req := StoryRequest{
		Prompt: "  A dragon who is afraid of the dark  ",
		Length: LengthShort,
		Tone:   " gentle ",
	}

	req.Normalize()

	if req.Prompt != "A dragon who is afraid of the dark" {
		t.Errorf("Expected trimmed prompt, got %q", req.Prompt)
	}
	if req.Tone != "gentle" {
		t.Errorf("Expected trimmed tone, got %q", req.Tone)
	}
	if req.ImageStyle != DefaultImageStyle {
		t.Errorf("Expected default image style, got %q", req.ImageStyle)
	}
}
