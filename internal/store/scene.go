package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lumenhq/fable-api/internal/domain"
)

// SceneAssets carries the asset fields written once a scene's media has
// been generated and uploaded. AudioURL may be empty and Transcript nil
// when narration was degraded away.
type SceneAssets struct {
	ImageURL      string
	AudioURL      string
	AudioDuration float64
	Transcript    []domain.TranscriptWord
}

// SceneStore defines the interface for scene data persistence.
type SceneStore interface {
	// CreateBulk saves all scenes of a story in a single statement.
	// Scenes must already be validated; order values must be unique
	// within the story.
	CreateBulk(ctx context.Context, scenes []*domain.Scene) error

	// GetByStory retrieves all scenes of a story ordered by scene order.
	GetByStory(ctx context.Context, storyID uuid.UUID) ([]*domain.Scene, error)

	// GetCompletedByStory retrieves only the scenes that have completed,
	// ordered by scene order. Used by progress polling so clients can
	// render finished scenes while the rest are still generating.
	GetCompletedByStory(ctx context.Context, storyID uuid.UUID) ([]*domain.Scene, error)

	// UpdateAssets writes the generated asset fields for a scene.
	// Returns ErrSceneNotFound if the scene does not exist.
	UpdateAssets(ctx context.Context, id uuid.UUID, assets SceneAssets) error

	// UpdateStatus transitions the scene's status. Moving to generating
	// stamps started_at; completing stamps completed_at. A non-empty
	// errorMessage is recorded alongside failed transitions.
	// Returns ErrSceneNotFound if the scene does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SceneStatus, errorMessage string) error

	// WithTx returns a new SceneStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) SceneStore
}
