package domain

import (
	"fmt"
	"strings"
)

// StoryLength controls how many scenes a generated story contains.
type StoryLength string

// Supported story lengths.
const (
	LengthShort  StoryLength = "short"
	LengthMedium StoryLength = "medium"
	LengthLong   StoryLength = "long"
)

// Prompt length bounds enforced on story requests.
const (
	MinPromptLength = 10
	MaxPromptLength = 500
)

// DefaultImageStyle is applied when a request does not name a visual style.
const DefaultImageStyle = "Pixar 3D style, bright lighting, colorful, high quality"

// SceneCount returns the number of scenes generated for this length.
func (l StoryLength) SceneCount() int {
	switch l {
	case LengthShort:
		return 6
	case LengthMedium:
		return 10
	case LengthLong:
		return 14
	default:
		return 0
	}
}

// IsValid reports whether the length is one of the supported options.
func (l StoryLength) IsValid() bool {
	return l.SceneCount() > 0
}

// StoryRequest captures the user's input for a new story. It is a value
// object: validated once at the boundary and treated as immutable afterwards.
type StoryRequest struct {
	Prompt     string      `json:"prompt"`
	Length     StoryLength `json:"length"`
	Tone       string      `json:"tone,omitempty"`
	Theme      string      `json:"theme,omitempty"`
	ChildName  string      `json:"child_name,omitempty"`
	ImageStyle string      `json:"image_style,omitempty"`
	Voice      string      `json:"voice,omitempty"`
}

// Normalize trims whitespace and fills defaulted fields in place.
func (r *StoryRequest) Normalize() {
	r.Prompt = strings.TrimSpace(r.Prompt)
	r.Tone = strings.TrimSpace(r.Tone)
	r.Theme = strings.TrimSpace(r.Theme)
	r.ChildName = strings.TrimSpace(r.ChildName)
	if r.ImageStyle == "" {
		r.ImageStyle = DefaultImageStyle
	}
}

// Validate checks that the request satisfies the input contract.
// Returns an error describing the first violation found.
func (r *StoryRequest) Validate() error {
	if len(r.Prompt) < MinPromptLength {
		return fmt.Errorf("%w: prompt must be at least %d characters", ErrValidation, MinPromptLength)
	}
	if len(r.Prompt) > MaxPromptLength {
		return fmt.Errorf("%w: prompt must be at most %d characters", ErrValidation, MaxPromptLength)
	}
	if !r.Length.IsValid() {
		return ErrInvalidStoryLength
	}
	return nil
}
