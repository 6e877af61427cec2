// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidEmail is returned when an email address is malformed.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrInvalidPassword is returned when a password doesn't meet requirements.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidStoryStatus is returned when a story status is not valid.
	ErrInvalidStoryStatus = errors.New("invalid story status")

	// ErrInvalidSceneStatus is returned when a scene status is not valid.
	ErrInvalidSceneStatus = errors.New("invalid scene status")

	// ErrInvalidStoryLength is returned when a story length is not one of
	// the supported options.
	ErrInvalidStoryLength = errors.New("invalid story length")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")
)
