package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lumenhq/fable-api/internal/domain"
	"github.com/lumenhq/fable-api/internal/platform/logger"
	"github.com/lumenhq/fable-api/internal/store"
)

// PostgresStoryStore implements the store.StoryStore interface
// using a PostgreSQL database as the storage backend.
type PostgresStoryStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresStoryStore creates a new PostgreSQL implementation of the
// StoryStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresStoryStore(db store.DBTX, logger *slog.Logger) *PostgresStoryStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresStoryStore{
		db:     db,
		logger: logger.With(slog.String("component", "story_store")),
	}
}

// Ensure PostgresStoryStore implements store.StoryStore interface
var _ store.StoryStore = (*PostgresStoryStore)(nil)

// storyColumns is the column list shared by all story SELECTs.
const storyColumns = `
	id, user_id, title, prompt, length, COALESCE(tone, ''),
	COALESCE(theme, ''), COALESCE(child_name, ''), COALESCE(image_style, ''),
	COALESCE(voice, ''), COALESCE(character_descriptor, ''),
	COALESCE(background_descriptor, ''), status, scenes_total,
	scenes_completed, COALESCE(cover_url, ''), COALESCE(error_message, ''),
	created_at, updated_at
`

// Create implements store.StoryStore.Create
// It saves a new story to the database, handling domain validation.
// Returns store.ErrInvalidEntity if the user ID doesn't exist.
func (s *PostgresStoryStore) Create(ctx context.Context, story *domain.Story) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := story.Validate(); err != nil {
		log.Warn("story validation failed during create",
			slog.String("error", err.Error()),
			slog.String("story_id", story.ID.String()))
		return err
	}

	query := `
		INSERT INTO stories (
			id, user_id, title, prompt, length, tone, theme, child_name,
			image_style, voice, character_descriptor, background_descriptor,
			status, scenes_total, scenes_completed, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''),
			NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''),
			$13, $14, $15, $16, $17)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		story.ID,
		story.UserID,
		story.Title,
		story.Prompt,
		story.Length,
		story.Tone,
		story.Theme,
		story.ChildName,
		story.ImageStyle,
		story.Voice,
		story.CharacterDescriptor,
		story.BackgroundDescriptor,
		story.Status,
		story.ScenesTotal,
		story.ScenesCompleted,
		story.CreatedAt,
		story.UpdatedAt,
	)

	if err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("foreign key violation during story creation",
				slog.String("error", err.Error()),
				slog.String("story_id", story.ID.String()),
				slog.String("user_id", story.UserID.String()))
			return fmt.Errorf("%w: user with ID %s not found",
				store.ErrInvalidEntity, story.UserID)
		}

		log.Error("failed to create story",
			slog.String("error", err.Error()),
			slog.String("story_id", story.ID.String()))
		return MapError(err)
	}

	log.Info("story created successfully",
		slog.String("story_id", story.ID.String()),
		slog.String("user_id", story.UserID.String()),
		slog.Int("scenes_total", story.ScenesTotal))
	return nil
}

// GetByID implements store.StoryStore.GetByID
// Returns store.ErrStoryNotFound if the story does not exist.
func (s *PostgresStoryStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Story, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + storyColumns + ` FROM stories WHERE id = $1`

	row := s.db.QueryRowContext(ctx, query, id)
	story, err := scanStory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("story not found", slog.String("story_id", id.String()))
			return nil, store.ErrStoryNotFound
		}
		log.Error("failed to get story by ID",
			slog.String("error", err.Error()),
			slog.String("story_id", id.String()))
		return nil, MapError(err)
	}

	return story, nil
}

// ListByUser implements store.StoryStore.ListByUser
func (s *PostgresStoryStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Story, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + storyColumns + `
		FROM stories
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		log.Error("failed to list stories",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	stories := []*domain.Story{}
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			log.Error("failed to scan story row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		stories = append(stories, story)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return stories, nil
}

// UpdateProgress implements store.StoryStore.UpdateProgress
// Returns store.ErrStoryNotFound if the story does not exist.
func (s *PostgresStoryStore) UpdateProgress(ctx context.Context, id uuid.UUID, completed, total int) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE stories
		SET scenes_completed = $2, scenes_total = $3, updated_at = now()
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, completed, total)
	if err != nil {
		log.Error("failed to update story progress",
			slog.String("error", err.Error()),
			slog.String("story_id", id.String()),
			slog.Int("completed", completed))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrStoryNotFound); err != nil {
		return err
	}

	log.Debug("story progress updated",
		slog.String("story_id", id.String()),
		slog.Int("completed", completed),
		slog.Int("total", total))
	return nil
}

// UpdateStatus implements store.StoryStore.UpdateStatus
// Returns store.ErrStoryNotFound if the story does not exist.
func (s *PostgresStoryStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.StoryStatus,
	errorMessage string,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE stories
		SET status = $2, error_message = NULLIF($3, ''), updated_at = now()
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, status, errorMessage)
	if err != nil {
		log.Error("failed to update story status",
			slog.String("error", err.Error()),
			slog.String("story_id", id.String()),
			slog.String("status", string(status)))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrStoryNotFound); err != nil {
		return err
	}

	log.Info("story status updated",
		slog.String("story_id", id.String()),
		slog.String("status", string(status)))
	return nil
}

// UpdateCoverURL implements store.StoryStore.UpdateCoverURL
// Returns store.ErrStoryNotFound if the story does not exist.
func (s *PostgresStoryStore) UpdateCoverURL(ctx context.Context, id uuid.UUID, coverURL string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE stories
		SET cover_url = NULLIF($2, ''), updated_at = now()
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, coverURL)
	if err != nil {
		log.Error("failed to update story cover",
			slog.String("error", err.Error()),
			slog.String("story_id", id.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrStoryNotFound); err != nil {
		return err
	}

	log.Debug("story cover updated", slog.String("story_id", id.String()))
	return nil
}

// WithTx implements store.StoryStore.WithTx
func (s *PostgresStoryStore) WithTx(tx *sql.Tx) store.StoryStore {
	return &PostgresStoryStore{
		db:     tx,
		logger: s.logger,
	}
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanStory maps one row of storyColumns onto a domain.Story.
func scanStory(row rowScanner) (*domain.Story, error) {
	var story domain.Story
	var length, status string

	err := row.Scan(
		&story.ID,
		&story.UserID,
		&story.Title,
		&story.Prompt,
		&length,
		&story.Tone,
		&story.Theme,
		&story.ChildName,
		&story.ImageStyle,
		&story.Voice,
		&story.CharacterDescriptor,
		&story.BackgroundDescriptor,
		&status,
		&story.ScenesTotal,
		&story.ScenesCompleted,
		&story.CoverURL,
		&story.ErrorMessage,
		&story.CreatedAt,
		&story.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	story.Length = domain.StoryLength(length)
	story.Status = domain.StoryStatus(status)
	return &story, nil
}
