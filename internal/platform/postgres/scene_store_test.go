package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lumenhq/fable-api/internal/domain"
	"github.com/lumenhq/fable-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sceneColumnNames mirrors the sceneColumns SELECT list for sqlmock rows.
var sceneColumnNames = []string{
	"id", "story_id", "scene_order", "text", "image_prompt",
	"image_url", "audio_url", "audio_duration", "transcript",
	"status", "error_message", "started_at", "completed_at",
	"created_at", "updated_at",
}

func newTestScenes(t *testing.T, storyID uuid.UUID, count int) []*domain.Scene {
	t.Helper()
	scenes := make([]*domain.Scene, 0, count)
	for i := 1; i <= count; i++ {
		scene, err := domain.NewScene(storyID, i, "Scene text", "Scene image prompt")
		require.NoError(t, err)
		scenes = append(scenes, scene)
	}
	return scenes
}

func TestSceneStoreCreateBulk(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := NewPostgresSceneStore(db, nil)
	scenes := newTestScenes(t, uuid.New(), 3)

	mock.ExpectExec("INSERT INTO scenes").
		WillReturnResult(sqlmock.NewResult(0, 3))

	err = s.CreateBulk(context.Background(), scenes)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSceneStoreCreateBulkEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := NewPostgresSceneStore(db, nil)

	// No statement should be issued for an empty slice.
	err = s.CreateBulk(context.Background(), nil)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSceneStoreCreateBulkValidation(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := NewPostgresSceneStore(db, nil)
	scenes := newTestScenes(t, uuid.New(), 2)
	scenes[1].Text = ""

	err = s.CreateBulk(context.Background(), scenes)
	assert.ErrorIs(t, err, domain.ErrEmptyContent)
}

func TestSceneStoreGetCompletedByStory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := NewPostgresSceneStore(db, nil)
	storyID := uuid.New()
	now := time.Now().UTC()
	started := now.Add(-30 * time.Second)

	transcript, err := json.Marshal([]domain.TranscriptWord{
		{Word: "Once", Start: 0, End: 0.4},
		{Word: "upon", Start: 0.4, End: 0.7},
	})
	require.NoError(t, err)

	rows := sqlmock.NewRows(sceneColumnNames).
		AddRow(uuid.New().String(), storyID.String(), 1, "Scene one", "prompt one",
			"https://cdn/s1.jpg", "https://cdn/s1.mp3", 12.5, transcript,
			"completed", "", started, now, now, now).
		AddRow(uuid.New().String(), storyID.String(), 2, "Scene two", "prompt two",
			"https://cdn/s2.jpg", "", 0.0, nil,
			"completed", "", started, now, now, now)

	mock.ExpectQuery("SELECT (.+) FROM scenes").
		WithArgs(storyID, domain.SceneStatusCompleted).
		WillReturnRows(rows)

	scenes, err := s.GetCompletedByStory(context.Background(), storyID)
	require.NoError(t, err)
	require.Len(t, scenes, 2)

	assert.Equal(t, 1, scenes[0].Order)
	assert.Len(t, scenes[0].Transcript, 2)
	assert.Equal(t, "upon", scenes[0].Transcript[1].Word)
	require.NotNil(t, scenes[0].StartedAt)
	require.NotNil(t, scenes[0].CompletedAt)

	// Degraded audio: no URL, zero duration, no transcript.
	assert.Empty(t, scenes[1].AudioURL)
	assert.Zero(t, scenes[1].AudioDuration)
	assert.Nil(t, scenes[1].Transcript)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSceneStoreGetByStoryEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := NewPostgresSceneStore(db, nil)
	storyID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM scenes").
		WithArgs(storyID).
		WillReturnRows(sqlmock.NewRows(sceneColumnNames))

	scenes, err := s.GetByStory(context.Background(), storyID)
	require.NoError(t, err)
	assert.NotNil(t, scenes)
	assert.Empty(t, scenes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSceneStoreUpdateAssets(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := NewPostgresSceneStore(db, nil)
	id := uuid.New()

	assets := store.SceneAssets{
		ImageURL:      "https://cdn/stories/x/scene_1.jpg",
		AudioURL:      "https://cdn/stories/x/scene_1.mp3",
		AudioDuration: 14.2,
		Transcript: []domain.TranscriptWord{
			{Word: "Once", Start: 0, End: 0.4},
		},
	}

	mock.ExpectExec("UPDATE scenes").
		WithArgs(id, assets.ImageURL, assets.AudioURL, assets.AudioDuration, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = s.UpdateAssets(context.Background(), id, assets)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSceneStoreUpdateAssetsDegradedAudio(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := NewPostgresSceneStore(db, nil)
	id := uuid.New()

	// Audio degraded away: empty URL becomes NULL, duration zero, no transcript.
	assets := store.SceneAssets{
		ImageURL:      "https://cdn/stories/x/scene_4.jpg",
		AudioURL:      "",
		AudioDuration: 0,
	}

	mock.ExpectExec("UPDATE scenes").
		WithArgs(id, assets.ImageURL, "", 0.0, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = s.UpdateAssets(context.Background(), id, assets)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSceneStoreUpdateAssetsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := NewPostgresSceneStore(db, nil)

	mock.ExpectExec("UPDATE scenes").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = s.UpdateAssets(context.Background(), uuid.New(), store.SceneAssets{ImageURL: "x"})
	assert.ErrorIs(t, err, store.ErrSceneNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSceneStoreUpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := NewPostgresSceneStore(db, nil)
	id := uuid.New()

	mock.ExpectExec("UPDATE scenes").
		WithArgs(id, "failed", "failed to upload image for scene 5").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = s.UpdateStatus(context.Background(), id, domain.SceneStatusFailed, "failed to upload image for scene 5")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSceneStoreUpdateStatusNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := NewPostgresSceneStore(db, nil)

	mock.ExpectExec("UPDATE scenes").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = s.UpdateStatus(context.Background(), uuid.New(), domain.SceneStatusCompleted, "")
	assert.ErrorIs(t, err, store.ErrSceneNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
