package service

import (
	"errors"
	"fmt"

	"github.com/lumenhq/fable-api/internal/store"
)

// Sentinel errors returned by the services for expected failure conditions.
// The API layer matches them with errors.Is and maps them to status codes.
var (
	// ErrStoryNotFound indicates the requested story does not exist.
	// API layer should map this to HTTP 404 Not Found.
	ErrStoryNotFound = errors.New("story not found")

	// ErrNotOwned indicates a resource is owned by a different user than the
	// one making the request. API layer should map this to HTTP 403 Forbidden.
	ErrNotOwned = errors.New("resource is owned by another user")

	// ErrNarrativeGeneration indicates the story text could not be produced
	// even after regeneration attempts. API layer should map this to
	// HTTP 502 Bad Gateway.
	ErrNarrativeGeneration = errors.New("narrative generation failed")

	// ErrContentBlocked indicates the prompt was rejected by the provider's
	// safety filters. API layer should map this to HTTP 422.
	ErrContentBlocked = errors.New("story prompt was blocked by content safety filters")

	// ErrFirstSceneFailed indicates the opening scene's assets could not be
	// produced, so story generation never started. API layer should map this
	// to HTTP 502 Bad Gateway.
	ErrFirstSceneFailed = errors.New("first scene generation failed")

	// ErrEmailTaken indicates the registration email is already in use.
	// API layer should map this to HTTP 409 Conflict.
	ErrEmailTaken = errors.New("email address is already registered")

	// ErrInvalidCredentials indicates a failed login. The message does not
	// distinguish an unknown email from a wrong password. API layer should
	// map this to HTTP 401 Unauthorized.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// StoryServiceError wraps unexpected errors from the story service with the
// operation that failed.
type StoryServiceError struct {
	// Operation is the operation that failed (e.g. "create_story").
	Operation string
	// Message is a human-readable description of the failure.
	Message string
	// Err is the underlying error.
	Err error
}

func (e *StoryServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("story service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("story service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoryServiceError) Unwrap() error {
	return e.Err
}

// NewStoryServiceError creates a new StoryServiceError. Known sentinel errors
// pass through or are mapped to their service-level equivalents so callers
// can match them with errors.Is.
func NewStoryServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrStoryNotFound) || errors.Is(err, ErrNotOwned) {
		return err
	}

	if errors.Is(err, store.ErrStoryNotFound) {
		return ErrStoryNotFound
	}

	return &StoryServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
