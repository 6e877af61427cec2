package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/lumenhq/fable-api/internal/domain"
	"github.com/lumenhq/fable-api/internal/platform/logger"
	"github.com/lumenhq/fable-api/internal/store"
)

// PostgresSceneStore implements the store.SceneStore interface
// using a PostgreSQL database as the storage backend.
type PostgresSceneStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSceneStore creates a new PostgreSQL implementation of the
// SceneStore interface. If logger is nil, a default logger will be used.
func NewPostgresSceneStore(db store.DBTX, logger *slog.Logger) *PostgresSceneStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSceneStore{
		db:     db,
		logger: logger.With(slog.String("component", "scene_store")),
	}
}

// Ensure PostgresSceneStore implements store.SceneStore interface
var _ store.SceneStore = (*PostgresSceneStore)(nil)

// sceneColumns is the column list shared by all scene SELECTs.
const sceneColumns = `
	id, story_id, scene_order, text, image_prompt,
	COALESCE(image_url, ''), COALESCE(audio_url, ''), audio_duration,
	transcript, status, COALESCE(error_message, ''),
	started_at, completed_at, created_at, updated_at
`

// CreateBulk implements store.SceneStore.CreateBulk
// All scenes are inserted in one statement so a story's scene set is
// written atomically within the caller's transaction.
func (s *PostgresSceneStore) CreateBulk(ctx context.Context, scenes []*domain.Scene) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(scenes) == 0 {
		return nil
	}

	for _, scene := range scenes {
		if err := scene.Validate(); err != nil {
			log.Warn("scene validation failed during bulk create",
				slog.String("error", err.Error()),
				slog.String("scene_id", scene.ID.String()),
				slog.Int("scene_order", scene.Order))
			return err
		}
	}

	const fieldsPerScene = 9
	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO scenes (
			id, story_id, scene_order, text, image_prompt,
			audio_duration, status, created_at, updated_at
		) VALUES `)

	args := make([]any, 0, len(scenes)*fieldsPerScene)
	for i, scene := range scenes {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * fieldsPerScene
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))
		args = append(args,
			scene.ID,
			scene.StoryID,
			scene.Order,
			scene.Text,
			scene.ImagePrompt,
			scene.AudioDuration,
			scene.Status,
			scene.CreatedAt,
			scene.UpdatedAt,
		)
	}

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		log.Error("failed to bulk create scenes",
			slog.String("error", err.Error()),
			slog.String("story_id", scenes[0].StoryID.String()),
			slog.Int("count", len(scenes)))
		return MapError(err)
	}

	log.Info("scenes created",
		slog.String("story_id", scenes[0].StoryID.String()),
		slog.Int("count", len(scenes)))
	return nil
}

// GetByStory implements store.SceneStore.GetByStory
func (s *PostgresSceneStore) GetByStory(ctx context.Context, storyID uuid.UUID) ([]*domain.Scene, error) {
	query := `SELECT ` + sceneColumns + `
		FROM scenes
		WHERE story_id = $1
		ORDER BY scene_order ASC`

	return s.queryScenes(ctx, query, storyID)
}

// GetCompletedByStory implements store.SceneStore.GetCompletedByStory
func (s *PostgresSceneStore) GetCompletedByStory(ctx context.Context, storyID uuid.UUID) ([]*domain.Scene, error) {
	query := `SELECT ` + sceneColumns + `
		FROM scenes
		WHERE story_id = $1 AND status = $2
		ORDER BY scene_order ASC`

	return s.queryScenes(ctx, query, storyID, domain.SceneStatusCompleted)
}

// UpdateAssets implements store.SceneStore.UpdateAssets
// Returns store.ErrSceneNotFound if the scene does not exist.
func (s *PostgresSceneStore) UpdateAssets(ctx context.Context, id uuid.UUID, assets store.SceneAssets) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var transcript any
	if len(assets.Transcript) > 0 {
		data, err := json.Marshal(assets.Transcript)
		if err != nil {
			return fmt.Errorf("failed to marshal transcript: %w", err)
		}
		transcript = data
	}

	query := `
		UPDATE scenes
		SET image_url = NULLIF($2, ''), audio_url = NULLIF($3, ''),
			audio_duration = $4, transcript = $5, updated_at = now()
		WHERE id = $1
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		id,
		assets.ImageURL,
		assets.AudioURL,
		assets.AudioDuration,
		transcript,
	)
	if err != nil {
		log.Error("failed to update scene assets",
			slog.String("error", err.Error()),
			slog.String("scene_id", id.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrSceneNotFound); err != nil {
		return err
	}

	log.Debug("scene assets updated", slog.String("scene_id", id.String()))
	return nil
}

// UpdateStatus implements store.SceneStore.UpdateStatus
// The generating transition stamps started_at and the completed transition
// stamps completed_at, so phase durations can be read back from the rows.
// Returns store.ErrSceneNotFound if the scene does not exist.
func (s *PostgresSceneStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.SceneStatus,
	errorMessage string,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE scenes
		SET status = $2,
			error_message = NULLIF($3, ''),
			started_at = CASE WHEN $2 = 'generating' THEN now() ELSE started_at END,
			completed_at = CASE WHEN $2 = 'completed' THEN now() ELSE completed_at END,
			updated_at = now()
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, string(status), errorMessage)
	if err != nil {
		log.Error("failed to update scene status",
			slog.String("error", err.Error()),
			slog.String("scene_id", id.String()),
			slog.String("status", string(status)))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrSceneNotFound); err != nil {
		return err
	}

	log.Debug("scene status updated",
		slog.String("scene_id", id.String()),
		slog.String("status", string(status)))
	return nil
}

// WithTx implements store.SceneStore.WithTx
func (s *PostgresSceneStore) WithTx(tx *sql.Tx) store.SceneStore {
	return &PostgresSceneStore{
		db:     tx,
		logger: s.logger,
	}
}

// queryScenes runs a scene SELECT and maps the result rows.
func (s *PostgresSceneStore) queryScenes(ctx context.Context, query string, args ...any) ([]*domain.Scene, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query scenes", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	scenes := []*domain.Scene{}
	for rows.Next() {
		scene, err := scanScene(rows)
		if err != nil {
			log.Error("failed to scan scene row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		scenes = append(scenes, scene)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return scenes, nil
}

// scanScene maps one row of sceneColumns onto a domain.Scene.
func scanScene(row rowScanner) (*domain.Scene, error) {
	var scene domain.Scene
	var status string
	var transcript []byte
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&scene.ID,
		&scene.StoryID,
		&scene.Order,
		&scene.Text,
		&scene.ImagePrompt,
		&scene.ImageURL,
		&scene.AudioURL,
		&scene.AudioDuration,
		&transcript,
		&status,
		&scene.ErrorMessage,
		&startedAt,
		&completedAt,
		&scene.CreatedAt,
		&scene.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	scene.Status = domain.SceneStatus(status)
	if startedAt.Valid {
		t := startedAt.Time
		scene.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		scene.CompletedAt = &t
	}
	if len(transcript) > 0 {
		if err := json.Unmarshal(transcript, &scene.Transcript); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
		}
	}

	return &scene, nil
}
