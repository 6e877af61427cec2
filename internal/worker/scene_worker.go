package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lumenhq/fable-api/internal/domain"
	"github.com/lumenhq/fable-api/internal/platform/logger"
	"github.com/lumenhq/fable-api/internal/progress"
	"github.com/lumenhq/fable-api/internal/store"
)

// SceneWorker drives a story's remaining scenes to a terminal state in
// fixed-size batches. Batches run strictly in order; scenes within a
// batch run concurrently and may finish in any order. A failed scene
// never stops its batch or the batches after it, and the story completes
// even when some scenes failed. Progress is persisted exactly once per
// batch, from this worker, so the scenes_completed counter never races.
type SceneWorker struct {
	stories   store.StoryStore
	pipeline  ScenePipeline
	batchSize int
	logger    *slog.Logger
}

// NewSceneWorker creates a SceneWorker processing batchSize scenes at a
// time.
func NewSceneWorker(
	stories store.StoryStore,
	pipeline ScenePipeline,
	batchSize int,
	log *slog.Logger,
) (*SceneWorker, error) {
	if stories == nil {
		return nil, errors.New("story store cannot be nil")
	}
	if pipeline == nil {
		return nil, errors.New("scene pipeline cannot be nil")
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &SceneWorker{
		stories:   stories,
		pipeline:  pipeline,
		batchSize: batchSize,
		logger:    log.With(slog.String("component", "scene_worker")),
	}, nil
}

// Run processes the given scenes and then marks the story completed,
// continuing the progress counters from story.ScenesCompleted. A scene
// failure is absorbed into that scene's row; only a broken persistence
// path aborts the run and marks the story failed. Cancellation abandons
// the story mid-flight without a terminal status, since a replacement
// worker owns it from then on.
func (w *SceneWorker) Run(
	ctx context.Context,
	tracker *progress.Tracker,
	story *domain.Story,
	scenes []*domain.Scene,
) error {
	err := w.run(ctx, tracker, story, scenes)
	if err != nil && !errors.Is(err, context.Canceled) {
		log := logger.FromContextOrDefault(ctx, w.logger)
		if updateErr := w.stories.UpdateStatus(ctx, story.ID, domain.StoryStatusFailed, err.Error()); updateErr != nil {
			log.Error("failed to record story failure",
				slog.String("story_id", story.ID.String()),
				slog.String("error", updateErr.Error()))
		} else {
			story.Status = domain.StoryStatusFailed
			story.ErrorMessage = err.Error()
		}
	}
	return err
}

func (w *SceneWorker) run(
	ctx context.Context,
	tracker *progress.Tracker,
	story *domain.Story,
	scenes []*domain.Scene,
) error {
	log := logger.FromContextOrDefault(ctx, w.logger).With(
		slog.String("story_id", story.ID.String()))

	endStep := tracker.StartStep("scene pipeline")
	defer endStep()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("scene pipeline cancelled: %w", err)
	}

	completed := story.ScenesCompleted
	total := story.ScenesTotal

	for start := 0; start < len(scenes); start += w.batchSize {
		end := start + w.batchSize
		if end > len(scenes) {
			end = len(scenes)
		}
		batch := scenes[start:end]
		batchIndex := start/w.batchSize + 1

		outcomes := w.runBatch(ctx, tracker, story, batch)

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("scene pipeline cancelled: %w", err)
		}

		// Completed and failed scenes both reached a terminal state, so
		// both advance progress. The counter is written only here, once
		// per batch.
		completed += len(outcomes)
		if err := w.stories.UpdateProgress(ctx, story.ID, completed, total); err != nil {
			return fmt.Errorf("failed to persist progress after batch %d: %w", batchIndex, err)
		}
		story.ScenesCompleted = completed

		log.Info("batch finished",
			slog.Int("batch", batchIndex),
			slog.Int("batch_scenes", len(batch)),
			slog.Int("batch_failures", countFailures(outcomes)),
			slog.Int("scenes_completed", completed),
			slog.Int("scenes_total", total))
	}

	// Partial success is a valid terminal state: failed scenes show their
	// own status, the story itself finished generating.
	if err := w.stories.UpdateStatus(ctx, story.ID, domain.StoryStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to mark story completed: %w", err)
	}
	story.Status = domain.StoryStatusCompleted

	log.Info("story generation finished",
		slog.Int("scenes_completed", completed),
		slog.Int("scenes_total", total))

	tracker.LogSummary()
	return nil
}

// runBatch fans out one goroutine per scene and collects every outcome
// before returning. A failing scene never interrupts its siblings; the
// whole batch reaches terminal state together.
func (w *SceneWorker) runBatch(
	ctx context.Context,
	tracker *progress.Tracker,
	story *domain.Story,
	batch []*domain.Scene,
) []SceneOutcome {
	results := make(chan SceneOutcome, len(batch))

	var wg sync.WaitGroup
	for _, scene := range batch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- w.pipeline.ProcessScene(ctx, tracker, story, scene)
		}()
	}
	wg.Wait()
	close(results)

	outcomes := make([]SceneOutcome, 0, len(batch))
	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func countFailures(outcomes []SceneOutcome) int {
	failures := 0
	for _, outcome := range outcomes {
		if !outcome.Completed {
			failures++
		}
	}
	return failures
}
