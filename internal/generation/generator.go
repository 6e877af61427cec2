package generation

import (
	"context"
	"fmt"

	"github.com/lumenhq/fable-api/internal/domain"
)

// NarrativeRequest describes the story the language model should write.
type NarrativeRequest struct {
	Prompt     string
	SceneCount int
	Tone       string
	Theme      string
	ChildName  string
}

// SceneDraft is one scene of a generated narrative: the text to narrate and
// the base prompt for its illustration.
type SceneDraft struct {
	Order       int
	Text        string
	ImagePrompt string
}

// NarrativeResult is the parsed output of narrative generation. The
// character and background descriptors are reused verbatim across every
// scene's illustration so the cast looks the same from page to page.
type NarrativeResult struct {
	Title                string
	CharacterDescriptor  string
	BackgroundDescriptor string
	Scenes               []SceneDraft
}

// Validate checks that the narrative is complete enough to build a story
// from: the right number of scenes, each with text and an image prompt.
// Violations are reported as ErrInvalidResponse so callers can regenerate.
func (r *NarrativeResult) Validate(expectedScenes int) error {
	if r.Title == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidResponse)
	}
	if len(r.Scenes) != expectedScenes {
		return fmt.Errorf("%w: expected %d scenes, got %d",
			ErrInvalidResponse, expectedScenes, len(r.Scenes))
	}
	for i, scene := range r.Scenes {
		if scene.Text == "" {
			return fmt.Errorf("%w: scene %d has no text", ErrInvalidResponse, i+1)
		}
		if scene.ImagePrompt == "" {
			return fmt.Errorf("%w: scene %d has no image prompt", ErrInvalidResponse, i+1)
		}
	}
	return nil
}

// ImageSpec describes one illustration request.
type ImageSpec struct {
	// Prompt is the scene-specific description from the narrative.
	Prompt string
	// CharacterDescriptor pins the cast's appearance across scenes.
	CharacterDescriptor string
	// BackgroundDescriptor pins the setting across scenes.
	BackgroundDescriptor string
	// Style is the visual style applied to the whole story.
	Style string
	// AspectRatio selects the output shape, e.g. "16:9" for scenes.
	AspectRatio string
	// SceneOrder seeds deterministic placeholder rendering.
	SceneOrder int
}

// SpeechResult carries synthesized narration for one scene. A zero result
// (no audio bytes) means narration was degraded away after exhausting
// retries; the scene still completes without it.
type SpeechResult struct {
	Audio      []byte
	Duration   float64 // seconds
	Transcript []domain.TranscriptWord
}

// Degraded reports whether synthesis produced no usable audio.
func (r SpeechResult) Degraded() bool {
	return len(r.Audio) == 0
}

// NarrativeGenerator writes story narratives from user prompts.
type NarrativeGenerator interface {
	// GenerateNarrative creates a titled, scene-by-scene narrative.
	// Returns ErrInvalidResponse when the model output cannot be used,
	// ErrContentBlocked when safety filters reject the prompt, and
	// ErrTransientFailure for retryable provider errors.
	GenerateNarrative(ctx context.Context, req NarrativeRequest) (*NarrativeResult, error)
}

// ImageGenerator illustrates scenes. Implementations never fail: after
// exhausting real generation attempts they fall back to a deterministic
// placeholder, so callers always receive usable image bytes.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, spec ImageSpec) []byte
}

// SpeechSynthesizer narrates scene text. Implementations absorb provider
// failures: after exhausting retries they return a zero SpeechResult
// rather than an error, and the scene completes without narration.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voice string) SpeechResult
}
