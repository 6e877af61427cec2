package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lumenhq/fable-api/internal/api/shared"
	"github.com/lumenhq/fable-api/internal/domain"
	"github.com/lumenhq/fable-api/internal/service"
	"github.com/lumenhq/fable-api/internal/service/auth"
	"github.com/lumenhq/fable-api/internal/store"
)

// MapErrorToStatusCode maps service and domain errors to HTTP status codes.
// Anything unrecognized maps to 500 so internal error types never dictate
// the response shape.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	// Ownership
	case errors.Is(err, service.ErrNotOwned):
		return http.StatusForbidden

	// Not found
	case errors.Is(err, service.ErrStoryNotFound),
		errors.Is(err, store.ErrStoryNotFound),
		errors.Is(err, store.ErrSceneNotFound),
		errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound

	// Conflicts
	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, store.ErrEmailExists):
		return http.StatusConflict

	// Content safety rejections
	case errors.Is(err, service.ErrContentBlocked):
		return http.StatusUnprocessableEntity

	// Upstream generation failures
	case errors.Is(err, service.ErrNarrativeGeneration),
		errors.Is(err, service.ErrFirstSceneFailed):
		return http.StatusBadGateway

	// Bad input
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidStoryLength),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrEmptyEmail),
		errors.Is(err, domain.ErrEmptyPassword),
		errors.Is(err, domain.ErrPasswordTooShort),
		errors.Is(err, domain.ErrPasswordTooLong),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-safe message for the error. Internal
// detail never passes through here; domain validation messages are the one
// exception because they are built from static text.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid token type"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"
	case errors.Is(err, service.ErrInvalidCredentials):
		return "Invalid credentials"
	case errors.Is(err, domain.ErrUnauthorized):
		return "Unauthorized"

	case errors.Is(err, service.ErrNotOwned):
		return "You do not own this story"

	case errors.Is(err, service.ErrStoryNotFound),
		errors.Is(err, store.ErrStoryNotFound):
		return "Story not found"
	case errors.Is(err, store.ErrSceneNotFound):
		return "Scene not found"
	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"

	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, store.ErrEmailExists):
		return "Email already registered"

	case errors.Is(err, service.ErrContentBlocked):
		return "The story prompt was rejected by content safety filters"
	case errors.Is(err, service.ErrNarrativeGeneration),
		errors.Is(err, service.ErrFirstSceneFailed):
		return "Story generation failed, please try again"

	case errors.Is(err, domain.ErrPasswordTooShort):
		return fmt.Sprintf("Password must be at least %d characters", domain.MinPasswordLength)
	case errors.Is(err, domain.ErrPasswordTooLong):
		return fmt.Sprintf("Password must be at most %d characters", domain.MaxPasswordLength)
	case errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrEmptyEmail):
		return "Invalid email address"
	case errors.Is(err, domain.ErrEmptyPassword):
		return "Password cannot be empty"
	case errors.Is(err, domain.ErrInvalidStoryLength):
		return "Story length must be short, medium or long"
	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid identifier"
	case errors.Is(err, domain.ErrValidation):
		// Domain validation errors are composed from static text and are
		// safe to show as-is.
		return err.Error()
	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError maps err to a status code and writes the standard error
// response. When userMessage is empty a safe message is derived from the
// error. The raw error goes to the logs (redacted), never to the client.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, userMessage string) {
	status := MapErrorToStatusCode(err)
	if userMessage == "" {
		userMessage = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, status, userMessage, err)
}

// SanitizeValidationError reduces a go-playground validator error to a short
// user-facing message naming the field and the failed rule, without echoing
// the submitted value back.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	// Validator errors look like:
	// "Key: 'LoginRequest.Email' Error:Field validation for 'Email' failed on the 'required' tag"
	if strings.Contains(errMsg, "Field validation") {
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}
				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

// getValidationTagMessage maps validator tags to user-facing fragments.
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "email":
		return "invalid email format"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
