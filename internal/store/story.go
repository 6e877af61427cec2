package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lumenhq/fable-api/internal/domain"
)

// StoryStore defines the interface for story data persistence.
type StoryStore interface {
	// Create saves a new story to the store.
	// It handles domain validation internally.
	// Returns validation errors from the domain Story if data is invalid.
	Create(ctx context.Context, story *domain.Story) error

	// GetByID retrieves a story by its unique ID, including the progress
	// counters maintained by the generation pipeline.
	// Returns ErrStoryNotFound if the story does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Story, error)

	// ListByUser retrieves all stories belonging to a user, newest first.
	// Returns an empty slice if the user has no stories.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Story, error)

	// UpdateProgress records how many scenes have completed out of the
	// total. It is the single write path for progress counters.
	// Returns ErrStoryNotFound if the story does not exist.
	UpdateProgress(ctx context.Context, id uuid.UUID, completed, total int) error

	// UpdateStatus transitions the story's status. A non-empty errorMessage
	// is recorded alongside failed transitions and cleared otherwise.
	// Returns ErrStoryNotFound if the story does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.StoryStatus, errorMessage string) error

	// UpdateCoverURL records the uploaded cover image URL.
	// Returns ErrStoryNotFound if the story does not exist.
	UpdateCoverURL(ctx context.Context, id uuid.UUID, coverURL string) error

	// WithTx returns a new StoryStore instance that uses the provided transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) StoryStore
}
