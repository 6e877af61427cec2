package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrEmptyPrompt is returned when a story prompt is empty.
	ErrEmptyPrompt = errors.New("story prompt cannot be empty")
)
