package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/lumenhq/fable-api/internal/domain"
	"github.com/lumenhq/fable-api/internal/generation"
	"github.com/lumenhq/fable-api/internal/platform/logger"
	"github.com/lumenhq/fable-api/internal/progress"
	"github.com/lumenhq/fable-api/internal/storage"
	"github.com/lumenhq/fable-api/internal/store"
)

// Uploader pushes generated assets into object storage and returns their
// public URL. Satisfied by storage.UploadGateway.
type Uploader interface {
	Upload(ctx context.Context, asset storage.Asset) (string, error)
}

// SceneOutcome is the terminal result of processing one scene: completed
// with its assets persisted, or failed with the error that stopped it.
// Both variants are terminal and count toward story progress.
type SceneOutcome struct {
	SceneID    uuid.UUID
	SceneOrder int
	Completed  bool
	Err        error
}

// ScenePipeline is the per-scene unit of work. The batch worker runs it
// for every background scene; the story service runs it once, inline,
// for scene 1.
type ScenePipeline interface {
	ProcessScene(ctx context.Context, tracker *progress.Tracker, story *domain.Story, scene *domain.Scene) SceneOutcome
}

// AssetPipeline produces and persists the assets of a single scene:
// illustration and narration generated concurrently, uploads, and the
// scene's status transitions. Image generation and speech synthesis
// absorb their own failures (placeholder image, absent narration), so
// the hard failure points are the image upload and persistence writes.
type AssetPipeline struct {
	scenes  store.SceneStore
	images  generation.ImageGenerator
	speech  generation.SpeechSynthesizer
	uploads Uploader
	logger  *slog.Logger
}

// NewAssetPipeline creates an AssetPipeline.
func NewAssetPipeline(
	scenes store.SceneStore,
	images generation.ImageGenerator,
	speech generation.SpeechSynthesizer,
	uploads Uploader,
	log *slog.Logger,
) (*AssetPipeline, error) {
	if scenes == nil {
		return nil, errors.New("scene store cannot be nil")
	}
	if images == nil {
		return nil, errors.New("image generator cannot be nil")
	}
	if speech == nil {
		return nil, errors.New("speech synthesizer cannot be nil")
	}
	if uploads == nil {
		return nil, errors.New("uploader cannot be nil")
	}
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &AssetPipeline{
		scenes:  scenes,
		images:  images,
		speech:  speech,
		uploads: uploads,
		logger:  log.With(slog.String("component", "asset_pipeline")),
	}, nil
}

var _ ScenePipeline = (*AssetPipeline)(nil)

// ProcessScene drives one scene to a terminal state and returns what
// happened. On success the scene row holds its asset URLs and completed
// status; on failure it is marked failed with the captured message. The
// passed scene is updated in place to mirror the persisted row, and the
// tracker (which may be nil) receives the scene's phase timings.
func (p *AssetPipeline) ProcessScene(
	ctx context.Context,
	tracker *progress.Tracker,
	story *domain.Story,
	scene *domain.Scene,
) SceneOutcome {
	log := logger.FromContextOrDefault(ctx, p.logger).With(
		slog.String("story_id", story.ID.String()),
		slog.Int("scene_order", scene.Order),
	)

	endTotal := tracker.ScenePhase(scene.Order, progress.PhaseTotal)
	defer endTotal()

	if err := p.scenes.UpdateStatus(ctx, scene.ID, domain.SceneStatusGenerating, ""); err != nil {
		return p.failScene(ctx, log, scene,
			fmt.Errorf("failed to mark scene %d generating: %w", scene.Order, err))
	}

	// Illustration and narration are independent network calls, so they
	// run together. Neither returns an error: images fall back to a
	// placeholder and narration degrades to silence.
	var (
		imageData []byte
		narration generation.SpeechResult
	)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		end := tracker.ScenePhase(scene.Order, progress.PhaseImage)
		defer end()
		imageData = p.images.GenerateImage(ctx, generation.ImageSpec{
			Prompt:               scene.ImagePrompt,
			CharacterDescriptor:  story.CharacterDescriptor,
			BackgroundDescriptor: story.BackgroundDescriptor,
			Style:                story.ImageStyle,
			SceneOrder:           scene.Order,
		})
	}()
	go func() {
		defer wg.Done()
		end := tracker.ScenePhase(scene.Order, progress.PhaseAudio)
		defer end()
		narration = p.speech.Synthesize(ctx, scene.Text, story.Voice)
	}()
	wg.Wait()

	// The illustration is mandatory for a completed scene, the narration
	// is not. Both uploads go out together.
	endUpload := tracker.ScenePhase(scene.Order, progress.PhaseUpload)
	var (
		imageURL, audioURL string
		imageErr, audioErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		imageURL, imageErr = p.uploads.Upload(ctx, storage.Asset{
			Key:         storage.SceneImageKey(story.ID, scene.Order),
			Data:        imageData,
			ContentType: storage.ContentTypeJPEG,
		})
	}()
	if !narration.Degraded() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			audioURL, audioErr = p.uploads.Upload(ctx, storage.Asset{
				Key:         storage.SceneAudioKey(story.ID, scene.Order),
				Data:        narration.Audio,
				ContentType: storage.ContentTypeMP3,
			})
		}()
	}
	wg.Wait()
	endUpload()

	if imageErr != nil {
		return p.failScene(ctx, log, scene,
			fmt.Errorf("failed to upload image for scene %d: %w", scene.Order, imageErr))
	}

	assets := store.SceneAssets{ImageURL: imageURL}
	switch {
	case audioErr != nil:
		log.Warn("audio upload failed, scene continues without narration",
			slog.String("error", audioErr.Error()))
	case narration.Degraded():
		log.Debug("scene narration degraded, continuing image-only")
	default:
		assets.AudioURL = audioURL
		assets.AudioDuration = narration.Duration
		assets.Transcript = narration.Transcript
	}

	if err := p.scenes.UpdateAssets(ctx, scene.ID, assets); err != nil {
		return p.failScene(ctx, log, scene,
			fmt.Errorf("failed to persist assets for scene %d: %w", scene.Order, err))
	}
	if err := p.scenes.UpdateStatus(ctx, scene.ID, domain.SceneStatusCompleted, ""); err != nil {
		return p.failScene(ctx, log, scene,
			fmt.Errorf("failed to mark scene %d completed: %w", scene.Order, err))
	}

	scene.ImageURL = assets.ImageURL
	scene.AudioURL = assets.AudioURL
	scene.AudioDuration = assets.AudioDuration
	scene.Transcript = assets.Transcript
	scene.Status = domain.SceneStatusCompleted
	scene.ErrorMessage = ""

	log.Info("scene completed",
		slog.Bool("narrated", assets.AudioURL != ""),
		slog.Int("image_bytes", len(imageData)))

	return SceneOutcome{SceneID: scene.ID, SceneOrder: scene.Order, Completed: true}
}

// failScene records the failure on the scene row, best effort, and
// returns the failed outcome. When the status write itself fails the row
// stays generating, but the outcome still counts as terminal for
// progress purposes.
func (p *AssetPipeline) failScene(
	ctx context.Context,
	log *slog.Logger,
	scene *domain.Scene,
	sceneErr error,
) SceneOutcome {
	log.Error("scene failed", slog.String("error", sceneErr.Error()))

	scene.Status = domain.SceneStatusFailed
	scene.ErrorMessage = sceneErr.Error()

	if err := p.scenes.UpdateStatus(ctx, scene.ID, domain.SceneStatusFailed, sceneErr.Error()); err != nil {
		log.Warn("failed to record scene failure",
			slog.String("error", err.Error()))
	}

	return SceneOutcome{
		SceneID:    scene.ID,
		SceneOrder: scene.Order,
		Completed:  false,
		Err:        sceneErr,
	}
}
