// Package service contains the application use cases. It orchestrates domain
// objects, the repositories defined in internal/store, the generation
// pipeline and the background task manager to fulfill API operations.
//
// Services receive their dependencies through constructor injection and
// return sentinel errors for expected failure conditions so the API layer
// can map them to HTTP status codes with errors.Is. Unexpected failures are
// wrapped in StoryServiceError to carry the failing operation.
package service
