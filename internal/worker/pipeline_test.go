package worker

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenhq/fable-api/internal/domain"
	"github.com/lumenhq/fable-api/internal/generation"
	"github.com/lumenhq/fable-api/internal/platform/logger"
	"github.com/lumenhq/fable-api/internal/progress"
	"github.com/lumenhq/fable-api/internal/storage"
	"github.com/lumenhq/fable-api/internal/store"
)

type sceneStatusCall struct {
	id     uuid.UUID
	status domain.SceneStatus
	msg    string
}

// sceneStoreStub records scene persistence calls and can be told to fail
// specific operations.
type sceneStoreStub struct {
	mu          sync.Mutex
	statusCalls []sceneStatusCall
	assetCalls  []store.SceneAssets
	statusErrOn map[domain.SceneStatus]error
	assetsErr   error
}

func (s *sceneStoreStub) CreateBulk(_ context.Context, _ []*domain.Scene) error { return nil }

func (s *sceneStoreStub) GetByStory(_ context.Context, _ uuid.UUID) ([]*domain.Scene, error) {
	return nil, nil
}

func (s *sceneStoreStub) GetCompletedByStory(_ context.Context, _ uuid.UUID) ([]*domain.Scene, error) {
	return nil, nil
}

func (s *sceneStoreStub) UpdateAssets(_ context.Context, _ uuid.UUID, assets store.SceneAssets) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.assetsErr != nil {
		return s.assetsErr
	}
	s.assetCalls = append(s.assetCalls, assets)
	return nil
}

func (s *sceneStoreStub) UpdateStatus(_ context.Context, id uuid.UUID, status domain.SceneStatus, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.statusErrOn[status]; err != nil {
		return err
	}
	s.statusCalls = append(s.statusCalls, sceneStatusCall{id: id, status: status, msg: msg})
	return nil
}

func (s *sceneStoreStub) WithTx(_ *sql.Tx) store.SceneStore { return s }

func (s *sceneStoreStub) statuses() []domain.SceneStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SceneStatus, len(s.statusCalls))
	for i, call := range s.statusCalls {
		out[i] = call.status
	}
	return out
}

func (s *sceneStoreStub) lastStatusCall() sceneStatusCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statusCalls) == 0 {
		return sceneStatusCall{}
	}
	return s.statusCalls[len(s.statusCalls)-1]
}

func (s *sceneStoreStub) recordedAssets() []store.SceneAssets {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.SceneAssets(nil), s.assetCalls...)
}

// imageStub returns fixed bytes and records every spec it sees.
type imageStub struct {
	mu    sync.Mutex
	data  []byte
	specs []generation.ImageSpec
}

func (g *imageStub) GenerateImage(_ context.Context, spec generation.ImageSpec) []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.specs = append(g.specs, spec)
	if g.data != nil {
		return g.data
	}
	return []byte("jpeg-bytes")
}

func (g *imageStub) recordedSpecs() []generation.ImageSpec {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]generation.ImageSpec(nil), g.specs...)
}

// speechStub returns a fixed result and records synthesized texts.
type speechStub struct {
	mu     sync.Mutex
	result generation.SpeechResult
	texts  []string
	voices []string
}

func (s *speechStub) Synthesize(_ context.Context, text, voice string) generation.SpeechResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	s.voices = append(s.voices, voice)
	return s.result
}

// uploaderStub stores uploads by key and can fail selected keys.
type uploaderStub struct {
	mu       sync.Mutex
	uploaded map[string]storage.Asset
	failKeys map[string]error
}

func newUploaderStub() *uploaderStub {
	return &uploaderStub{
		uploaded: make(map[string]storage.Asset),
		failKeys: make(map[string]error),
	}
}

func (u *uploaderStub) Upload(_ context.Context, asset storage.Asset) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.failKeys[asset.Key]; err != nil {
		return "", err
	}
	u.uploaded[asset.Key] = asset
	return "https://cdn.test/" + asset.Key, nil
}

func (u *uploaderStub) asset(key string) (storage.Asset, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	asset, ok := u.uploaded[key]
	return asset, ok
}

func (u *uploaderStub) uploadCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.uploaded)
}

type pipelineFixture struct {
	pipeline *AssetPipeline
	scenes   *sceneStoreStub
	images   *imageStub
	speech   *speechStub
	uploads  *uploaderStub
	logBuf   *logger.TestLogBuffer
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	scenes := &sceneStoreStub{statusErrOn: make(map[domain.SceneStatus]error)}
	images := &imageStub{}
	speech := &speechStub{result: generation.SpeechResult{
		Audio:    []byte("mp3-bytes"),
		Duration: 4.2,
		Transcript: []domain.TranscriptWord{
			{Word: "once", Start: 0, End: 0.4},
			{Word: "upon", Start: 0.4, End: 0.8},
		},
	}}
	uploads := newUploaderStub()
	logBuf, log := logger.NewTestLogger(t)

	pipeline, err := NewAssetPipeline(scenes, images, speech, uploads, log)
	require.NoError(t, err)

	return &pipelineFixture{
		pipeline: pipeline,
		scenes:   scenes,
		images:   images,
		speech:   speech,
		uploads:  uploads,
		logBuf:   logBuf,
	}
}

func pipelineStoryAndScene(t *testing.T) (*domain.Story, *domain.Scene) {
	t.Helper()

	story, err := domain.NewStory(uuid.New(), domain.StoryRequest{
		Prompt:     "A fox who learns to share with friends",
		Length:     domain.LengthShort,
		ImageStyle: "watercolor",
		Voice:      "nova",
	}, "The Generous Fox",
		"a small orange fox with a white-tipped tail", "a sunny riverbank")
	require.NoError(t, err)

	scene, err := domain.NewScene(story.ID, 2,
		"The fox met a rabbit by the river.", "fox and rabbit at a riverbank")
	require.NoError(t, err)
	return story, scene
}

func TestNewAssetPipeline(t *testing.T) {
	t.Parallel()

	scenes := &sceneStoreStub{}
	images := &imageStub{}
	speech := &speechStub{}
	uploads := newUploaderStub()
	_, log := logger.NewTestLogger(t)

	tests := []struct {
		name    string
		scenes  store.SceneStore
		images  generation.ImageGenerator
		speech  generation.SpeechSynthesizer
		uploads Uploader
		logger  *slog.Logger
		wantErr string
	}{
		{"valid", scenes, images, speech, uploads, log, ""},
		{"nil scene store", nil, images, speech, uploads, log, "scene store cannot be nil"},
		{"nil image generator", scenes, nil, speech, uploads, log, "image generator cannot be nil"},
		{"nil speech synthesizer", scenes, images, nil, uploads, log, "speech synthesizer cannot be nil"},
		{"nil uploader", scenes, images, speech, nil, log, "uploader cannot be nil"},
		{"nil logger", scenes, images, speech, uploads, nil, "logger cannot be nil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pipeline, err := NewAssetPipeline(tt.scenes, tt.images, tt.speech, tt.uploads, tt.logger)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.NotNil(t, pipeline)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssetPipelineProcessScene(t *testing.T) {
	t.Parallel()

	t.Run("completes scene with image and narration", func(t *testing.T) {
		t.Parallel()
		fix := newPipelineFixture(t)
		story, scene := pipelineStoryAndScene(t)

		outcome := fix.pipeline.ProcessScene(context.Background(), nil, story, scene)

		require.NoError(t, outcome.Err)
		assert.True(t, outcome.Completed)
		assert.Equal(t, scene.ID, outcome.SceneID)
		assert.Equal(t, 2, outcome.SceneOrder)

		assert.Equal(t,
			[]domain.SceneStatus{domain.SceneStatusGenerating, domain.SceneStatusCompleted},
			fix.scenes.statuses())

		imageKey := storage.SceneImageKey(story.ID, scene.Order)
		audioKey := storage.SceneAudioKey(story.ID, scene.Order)

		imageAsset, ok := fix.uploads.asset(imageKey)
		require.True(t, ok, "image was not uploaded")
		assert.Equal(t, storage.ContentTypeJPEG, imageAsset.ContentType)
		assert.Equal(t, []byte("jpeg-bytes"), imageAsset.Data)

		audioAsset, ok := fix.uploads.asset(audioKey)
		require.True(t, ok, "audio was not uploaded")
		assert.Equal(t, storage.ContentTypeMP3, audioAsset.ContentType)

		assets := fix.scenes.recordedAssets()
		require.Len(t, assets, 1)
		assert.Equal(t, "https://cdn.test/"+imageKey, assets[0].ImageURL)
		assert.Equal(t, "https://cdn.test/"+audioKey, assets[0].AudioURL)
		assert.Equal(t, 4.2, assets[0].AudioDuration)
		assert.Len(t, assets[0].Transcript, 2)

		assert.Equal(t, domain.SceneStatusCompleted, scene.Status)
		assert.Equal(t, assets[0].ImageURL, scene.ImageURL)
		assert.Equal(t, assets[0].AudioURL, scene.AudioURL)
		assert.Empty(t, scene.ErrorMessage)
	})

	t.Run("builds the image spec from story and scene", func(t *testing.T) {
		t.Parallel()
		fix := newPipelineFixture(t)
		story, scene := pipelineStoryAndScene(t)

		fix.pipeline.ProcessScene(context.Background(), nil, story, scene)

		specs := fix.images.recordedSpecs()
		require.Len(t, specs, 1)
		assert.Equal(t, scene.ImagePrompt, specs[0].Prompt)
		assert.Equal(t, story.CharacterDescriptor, specs[0].CharacterDescriptor)
		assert.Equal(t, story.BackgroundDescriptor, specs[0].BackgroundDescriptor)
		assert.Equal(t, "watercolor", specs[0].Style)
		assert.Equal(t, scene.Order, specs[0].SceneOrder)
		assert.Empty(t, specs[0].AspectRatio, "scenes use the generator default shape")

		fix.speech.mu.Lock()
		defer fix.speech.mu.Unlock()
		require.Len(t, fix.speech.texts, 1)
		assert.Equal(t, scene.Text, fix.speech.texts[0])
		assert.Equal(t, "nova", fix.speech.voices[0])
	})

	t.Run("degraded narration completes image-only", func(t *testing.T) {
		t.Parallel()
		fix := newPipelineFixture(t)
		fix.speech.result = generation.SpeechResult{}
		story, scene := pipelineStoryAndScene(t)

		outcome := fix.pipeline.ProcessScene(context.Background(), nil, story, scene)

		require.NoError(t, outcome.Err)
		assert.True(t, outcome.Completed)

		assert.Equal(t, 1, fix.uploads.uploadCount(), "only the image should upload")

		assets := fix.scenes.recordedAssets()
		require.Len(t, assets, 1)
		assert.NotEmpty(t, assets[0].ImageURL)
		assert.Empty(t, assets[0].AudioURL)
		assert.Zero(t, assets[0].AudioDuration)
		assert.Nil(t, assets[0].Transcript)

		assert.Equal(t, domain.SceneStatusCompleted, scene.Status)
		logger.AssertLogContains(t, fix.logBuf, "scene narration degraded")
	})

	t.Run("image upload failure fails the scene", func(t *testing.T) {
		t.Parallel()
		fix := newPipelineFixture(t)
		story, scene := pipelineStoryAndScene(t)
		fix.uploads.failKeys[storage.SceneImageKey(story.ID, scene.Order)] = errors.New("bucket offline")

		outcome := fix.pipeline.ProcessScene(context.Background(), nil, story, scene)

		require.Error(t, outcome.Err)
		assert.False(t, outcome.Completed)
		assert.Contains(t, outcome.Err.Error(), "failed to upload image for scene 2")
		assert.Contains(t, outcome.Err.Error(), "bucket offline")

		assert.Equal(t,
			[]domain.SceneStatus{domain.SceneStatusGenerating, domain.SceneStatusFailed},
			fix.scenes.statuses())
		assert.Equal(t, outcome.Err.Error(), fix.scenes.lastStatusCall().msg)
		assert.Empty(t, fix.scenes.recordedAssets(), "assets must not be persisted for a failed scene")

		assert.Equal(t, domain.SceneStatusFailed, scene.Status)
		assert.Equal(t, outcome.Err.Error(), scene.ErrorMessage)
		logger.AssertLogContains(t, fix.logBuf, "scene failed")
	})

	t.Run("audio upload failure continues without narration", func(t *testing.T) {
		t.Parallel()
		fix := newPipelineFixture(t)
		story, scene := pipelineStoryAndScene(t)
		fix.uploads.failKeys[storage.SceneAudioKey(story.ID, scene.Order)] = errors.New("bucket full")

		outcome := fix.pipeline.ProcessScene(context.Background(), nil, story, scene)

		require.NoError(t, outcome.Err)
		assert.True(t, outcome.Completed)

		assets := fix.scenes.recordedAssets()
		require.Len(t, assets, 1)
		assert.NotEmpty(t, assets[0].ImageURL)
		assert.Empty(t, assets[0].AudioURL)

		logger.AssertLogContains(t, fix.logBuf, "audio upload failed")
	})

	t.Run("failure to mark generating fails the scene", func(t *testing.T) {
		t.Parallel()
		fix := newPipelineFixture(t)
		fix.scenes.statusErrOn[domain.SceneStatusGenerating] = errors.New("db gone")
		story, scene := pipelineStoryAndScene(t)

		outcome := fix.pipeline.ProcessScene(context.Background(), nil, story, scene)

		require.Error(t, outcome.Err)
		assert.False(t, outcome.Completed)
		assert.Contains(t, outcome.Err.Error(), "failed to mark scene 2 generating")

		assert.Empty(t, fix.images.recordedSpecs(), "generation must not start for an unmarked scene")
		assert.Zero(t, fix.uploads.uploadCount())
		assert.Equal(t, []domain.SceneStatus{domain.SceneStatusFailed}, fix.scenes.statuses())
	})

	t.Run("asset persistence failure fails the scene", func(t *testing.T) {
		t.Parallel()
		fix := newPipelineFixture(t)
		fix.scenes.assetsErr = errors.New("write timeout")
		story, scene := pipelineStoryAndScene(t)

		outcome := fix.pipeline.ProcessScene(context.Background(), nil, story, scene)

		require.Error(t, outcome.Err)
		assert.False(t, outcome.Completed)
		assert.Contains(t, outcome.Err.Error(), "failed to persist assets for scene 2")
		assert.Equal(t, domain.SceneStatusFailed, scene.Status)
	})

	t.Run("completion status failure fails the scene", func(t *testing.T) {
		t.Parallel()
		fix := newPipelineFixture(t)
		fix.scenes.statusErrOn[domain.SceneStatusCompleted] = errors.New("conn reset")
		story, scene := pipelineStoryAndScene(t)

		outcome := fix.pipeline.ProcessScene(context.Background(), nil, story, scene)

		require.Error(t, outcome.Err)
		assert.Contains(t, outcome.Err.Error(), "failed to mark scene 2 completed")
		assert.Equal(t, domain.SceneStatusFailed, scene.Status)
	})

	t.Run("records phase timings on the tracker", func(t *testing.T) {
		t.Parallel()
		fix := newPipelineFixture(t)
		story, scene := pipelineStoryAndScene(t)
		_, log := logger.NewTestLogger(t)
		tracker := progress.NewTracker(story.ID, log)

		outcome := fix.pipeline.ProcessScene(context.Background(), tracker, story, scene)
		require.NoError(t, outcome.Err)

		summary := tracker.Summary()
		require.Len(t, summary.Scenes, 1)
		assert.Equal(t, scene.Order, summary.Scenes[0].Scene)
		for _, phase := range []progress.Phase{
			progress.PhaseImage, progress.PhaseAudio, progress.PhaseUpload, progress.PhaseTotal,
		} {
			assert.Contains(t, summary.Scenes[0].Seconds, phase)
		}
	})

	t.Run("records the failure on the scene even when the status write fails", func(t *testing.T) {
		t.Parallel()
		fix := newPipelineFixture(t)
		story, scene := pipelineStoryAndScene(t)
		fix.uploads.failKeys[storage.SceneImageKey(story.ID, scene.Order)] = errors.New("bucket offline")
		fix.scenes.statusErrOn[domain.SceneStatusFailed] = errors.New("db gone too")

		outcome := fix.pipeline.ProcessScene(context.Background(), nil, story, scene)

		require.Error(t, outcome.Err)
		assert.False(t, outcome.Completed)
		assert.Equal(t, domain.SceneStatusFailed, scene.Status)
		logger.AssertLogContains(t, fix.logBuf, "failed to record scene failure")
	})
}
