package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lumenhq/fable-api/internal/domain"
	"github.com/lumenhq/fable-api/internal/events"
	"github.com/lumenhq/fable-api/internal/generation"
	"github.com/lumenhq/fable-api/internal/platform/logger"
	"github.com/lumenhq/fable-api/internal/progress"
	"github.com/lumenhq/fable-api/internal/store"
	"github.com/lumenhq/fable-api/internal/task"
	"github.com/lumenhq/fable-api/internal/worker"
)

// SceneRunner drives the remaining scenes of a story to completion in the
// background. Satisfied by worker.SceneWorker.
type SceneRunner interface {
	Run(ctx context.Context, tracker *progress.Tracker, story *domain.Story, scenes []*domain.Scene) error
}

// TaskStarter registers background work under a replaceable key. Satisfied
// by task.Manager.
type TaskStarter interface {
	Start(key, name string, work task.Work)
	Cancel(key string) bool
}

// StoryStart is the result of creating a story: the first scene is fully
// generated and the remaining scenes are running in the background.
type StoryStart struct {
	Story      *domain.Story
	FirstScene *domain.Scene
}

// StoryProgress is a point-in-time view of a story's generation.
type StoryProgress struct {
	Story *domain.Story

	// CompletedScenes holds only the scenes whose assets are ready,
	// ordered by scene order.
	CompletedScenes []*domain.Scene

	// EstimatedSecondsRemaining is a rough completion estimate. It is only
	// meaningful while the story is generating and reads zero otherwise.
	EstimatedSecondsRemaining int
}

// StoryDetail is a story with all of its scenes regardless of state.
type StoryDetail struct {
	Story  *domain.Story
	Scenes []*domain.Scene
}

// StoryService provides story creation, retrieval and generation control.
type StoryService interface {
	// CreateStory generates a narrative, persists the story with its
	// scenes, produces the first scene's assets synchronously and starts
	// background generation for the rest.
	CreateStory(ctx context.Context, userID uuid.UUID, req domain.StoryRequest) (*StoryStart, error)

	// GetStoryProgress reports generation progress for polling. It is
	// read-only and never fails because scenes failed.
	GetStoryProgress(ctx context.Context, userID, storyID uuid.UUID) (*StoryProgress, error)

	// GetStory retrieves a story with all of its scenes.
	GetStory(ctx context.Context, userID, storyID uuid.UUID) (*StoryDetail, error)

	// ListStories retrieves the user's stories, newest first.
	ListStories(ctx context.Context, userID uuid.UUID) ([]*domain.Story, error)

	// CancelGeneration stops the story's background generation if it is
	// running. Returns whether a running task was actually cancelled.
	CancelGeneration(ctx context.Context, userID, storyID uuid.UUID) (bool, error)
}

// StoryServiceConfig carries the tunables of the story service.
type StoryServiceConfig struct {
	// MaxNarrativeAttempts bounds the regeneration loop for narratives
	// that come back structurally invalid.
	MaxNarrativeAttempts int

	// AvgSecondsPerScene feeds the progress endpoint's completion estimate.
	AvgSecondsPerScene int
}

// StoryServiceDeps bundles the collaborators of the story service.
type StoryServiceDeps struct {
	DB         *sql.DB
	Stories    store.StoryStore
	Scenes     store.SceneStore
	Narratives generation.NarrativeGenerator
	Pipeline   worker.ScenePipeline
	Runner     SceneRunner
	Tasks      TaskStarter
	Emitter    events.EventEmitter
	Logger     *slog.Logger
}

// storyServiceImpl implements the StoryService interface.
type storyServiceImpl struct {
	db         *sql.DB
	stories    store.StoryStore
	scenes     store.SceneStore
	narratives generation.NarrativeGenerator
	pipeline   worker.ScenePipeline
	runner     SceneRunner
	tasks      TaskStarter
	emitter    events.EventEmitter
	logger     *slog.Logger

	maxNarrativeAttempts int
	avgSecondsPerScene   int
}

var _ StoryService = (*storyServiceImpl)(nil)

// NewStoryService creates a new StoryService.
func NewStoryService(deps StoryServiceDeps, cfg StoryServiceConfig) (StoryService, error) {
	if deps.DB == nil {
		return nil, errors.New("db cannot be nil")
	}
	if deps.Stories == nil {
		return nil, errors.New("story store cannot be nil")
	}
	if deps.Scenes == nil {
		return nil, errors.New("scene store cannot be nil")
	}
	if deps.Narratives == nil {
		return nil, errors.New("narrative generator cannot be nil")
	}
	if deps.Pipeline == nil {
		return nil, errors.New("scene pipeline cannot be nil")
	}
	if deps.Runner == nil {
		return nil, errors.New("scene runner cannot be nil")
	}
	if deps.Tasks == nil {
		return nil, errors.New("task starter cannot be nil")
	}
	if deps.Emitter == nil {
		return nil, errors.New("event emitter cannot be nil")
	}
	if deps.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.MaxNarrativeAttempts < 1 {
		return nil, fmt.Errorf("max narrative attempts must be positive, got %d", cfg.MaxNarrativeAttempts)
	}
	if cfg.AvgSecondsPerScene < 1 {
		return nil, fmt.Errorf("avg seconds per scene must be positive, got %d", cfg.AvgSecondsPerScene)
	}

	return &storyServiceImpl{
		db:                   deps.DB,
		stories:              deps.Stories,
		scenes:               deps.Scenes,
		narratives:           deps.Narratives,
		pipeline:             deps.Pipeline,
		runner:               deps.Runner,
		tasks:                deps.Tasks,
		emitter:              deps.Emitter,
		logger:               deps.Logger.With(slog.String("component", "story_service")),
		maxNarrativeAttempts: cfg.MaxNarrativeAttempts,
		avgSecondsPerScene:   cfg.AvgSecondsPerScene,
	}, nil
}

// CreateStory implements the creation flow: narrative first, then a single
// transaction persisting the story and all scene rows, then the first scene
// synchronously so the response carries something to show, and finally the
// background worker for the rest.
func (s *storyServiceImpl) CreateStory(
	ctx context.Context,
	userID uuid.UUID,
	req domain.StoryRequest,
) (*StoryStart, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	narrative, err := s.generateNarrative(ctx, log, req)
	if err != nil {
		return nil, err
	}

	story, err := domain.NewStory(
		userID,
		req,
		narrative.Title,
		narrative.CharacterDescriptor,
		narrative.BackgroundDescriptor,
	)
	if err != nil {
		return nil, NewStoryServiceError("create_story", "failed to build story", err)
	}
	// The story is born generating: the first scene starts immediately
	// after the transaction commits.
	story.Status = domain.StoryStatusGenerating

	scenes := make([]*domain.Scene, 0, len(narrative.Scenes))
	for _, draft := range narrative.Scenes {
		scene, err := domain.NewScene(story.ID, draft.Order, draft.Text, draft.ImagePrompt)
		if err != nil {
			return nil, NewStoryServiceError("create_story",
				fmt.Sprintf("failed to build scene %d", draft.Order), err)
		}
		scenes = append(scenes, scene)
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.stories.WithTx(tx).Create(ctx, story); err != nil {
			return fmt.Errorf("failed to create story: %w", err)
		}
		if err := s.scenes.WithTx(tx).CreateBulk(ctx, scenes); err != nil {
			return fmt.Errorf("failed to create scenes: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, NewStoryServiceError("create_story", "failed to persist story", err)
	}

	log.Info("story created",
		slog.String("story_id", story.ID.String()),
		slog.String("user_id", userID.String()),
		slog.Int("scenes_total", story.ScenesTotal))

	tracker := progress.NewTracker(story.ID, log)

	// The first scene runs on the request so the reader gets an opening
	// page in the response. If it fails the whole story fails.
	first := scenes[0]
	if outcome := s.pipeline.ProcessScene(ctx, tracker, story, first); !outcome.Completed {
		s.failStory(ctx, log, story, outcome.Err)
		return nil, fmt.Errorf("%w: %w", ErrFirstSceneFailed, outcome.Err)
	}

	if err := s.stories.UpdateProgress(ctx, story.ID, 1, story.ScenesTotal); err != nil {
		err = fmt.Errorf("failed to persist first scene progress: %w", err)
		s.failStory(ctx, log, story, err)
		return nil, NewStoryServiceError("create_story", "failed to persist progress", err)
	}
	story.ScenesCompleted = 1

	s.startBackgroundGeneration(log, tracker, story, scenes[1:])
	s.emitCoverEvent(ctx, log, story.ID)

	return &StoryStart{Story: story, FirstScene: first}, nil
}

// GetStoryProgress implements the polling read. Failed scenes surface
// through counts and the story's error message, never as request errors.
func (s *storyServiceImpl) GetStoryProgress(
	ctx context.Context,
	userID, storyID uuid.UUID,
) (*StoryProgress, error) {
	story, err := s.ownedStory(ctx, userID, storyID, "get_story_progress")
	if err != nil {
		return nil, err
	}

	completed, err := s.scenes.GetCompletedByStory(ctx, storyID)
	if err != nil {
		return nil, NewStoryServiceError("get_story_progress", "failed to load completed scenes", err)
	}

	estimate := 0
	if story.Status == domain.StoryStatusGenerating {
		estimate = story.RemainingScenes() * s.avgSecondsPerScene
	}

	return &StoryProgress{
		Story:                     story,
		CompletedScenes:           completed,
		EstimatedSecondsRemaining: estimate,
	}, nil
}

func (s *storyServiceImpl) GetStory(
	ctx context.Context,
	userID, storyID uuid.UUID,
) (*StoryDetail, error) {
	story, err := s.ownedStory(ctx, userID, storyID, "get_story")
	if err != nil {
		return nil, err
	}

	scenes, err := s.scenes.GetByStory(ctx, storyID)
	if err != nil {
		return nil, NewStoryServiceError("get_story", "failed to load scenes", err)
	}

	return &StoryDetail{Story: story, Scenes: scenes}, nil
}

func (s *storyServiceImpl) ListStories(ctx context.Context, userID uuid.UUID) ([]*domain.Story, error) {
	stories, err := s.stories.ListByUser(ctx, userID)
	if err != nil {
		return nil, NewStoryServiceError("list_stories", "failed to list stories", err)
	}
	return stories, nil
}

func (s *storyServiceImpl) CancelGeneration(
	ctx context.Context,
	userID, storyID uuid.UUID,
) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.ownedStory(ctx, userID, storyID, "cancel_generation"); err != nil {
		return false, err
	}

	cancelled := s.tasks.Cancel(task.StoryTaskKey(storyID))
	log.Info("generation cancellation requested",
		slog.String("story_id", storyID.String()),
		slog.Bool("was_running", cancelled))

	return cancelled, nil
}

// ownedStory loads a story and verifies the caller owns it.
func (s *storyServiceImpl) ownedStory(
	ctx context.Context,
	userID, storyID uuid.UUID,
	operation string,
) (*domain.Story, error) {
	story, err := s.stories.GetByID(ctx, storyID)
	if err != nil {
		return nil, NewStoryServiceError(operation, "failed to load story", err)
	}
	if story.UserID != userID {
		return nil, ErrNotOwned
	}
	return story, nil
}

// generateNarrative asks the language model for the story text, retrying a
// bounded number of times when the response is structurally unusable.
// Content-policy rejections and provider failures are not retried here.
func (s *storyServiceImpl) generateNarrative(
	ctx context.Context,
	log *slog.Logger,
	req domain.StoryRequest,
) (*generation.NarrativeResult, error) {
	narrativeReq := generation.NarrativeRequest{
		Prompt:     req.Prompt,
		SceneCount: req.Length.SceneCount(),
		Tone:       req.Tone,
		Theme:      req.Theme,
		ChildName:  req.ChildName,
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxNarrativeAttempts; attempt++ {
		narrative, err := s.narratives.GenerateNarrative(ctx, narrativeReq)
		if err == nil {
			return narrative, nil
		}
		lastErr = err

		if errors.Is(err, generation.ErrContentBlocked) {
			return nil, fmt.Errorf("%w: %w", ErrContentBlocked, err)
		}
		if !errors.Is(err, generation.ErrInvalidResponse) {
			break
		}

		log.Warn("narrative was invalid, regenerating",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", s.maxNarrativeAttempts),
			slog.String("error", err.Error()))
	}

	return nil, fmt.Errorf("%w: %w", ErrNarrativeGeneration, lastErr)
}

// startBackgroundGeneration hands the remaining scenes to the task manager.
// The worker gets its own copy of the story so its progress writes never
// race the response serialization.
func (s *storyServiceImpl) startBackgroundGeneration(
	log *slog.Logger,
	tracker *progress.Tracker,
	story *domain.Story,
	remaining []*domain.Scene,
) {
	workerStory := *story
	s.tasks.Start(task.StoryTaskKey(story.ID), task.TypeStoryGeneration, func(ctx context.Context) error {
		return s.runner.Run(ctx, tracker, &workerStory, remaining)
	})

	log.Info("background generation started",
		slog.String("story_id", story.ID.String()),
		slog.Int("remaining_scenes", len(remaining)))
}

// emitCoverEvent requests cover generation. The cover is decoration, so
// failures here are logged and swallowed.
func (s *storyServiceImpl) emitCoverEvent(ctx context.Context, log *slog.Logger, storyID uuid.UUID) {
	event, err := events.NewTaskRequestEvent(task.TypeCoverGeneration, map[string]string{
		"story_id": storyID.String(),
	})
	if err != nil {
		log.Warn("failed to build cover generation event",
			slog.String("story_id", storyID.String()),
			slog.String("error", err.Error()))
		return
	}

	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		log.Warn("failed to emit cover generation event",
			slog.String("story_id", storyID.String()),
			slog.String("error", err.Error()))
	}
}

// failStory marks the story failed, best effort.
func (s *storyServiceImpl) failStory(ctx context.Context, log *slog.Logger, story *domain.Story, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	if err := s.stories.UpdateStatus(ctx, story.ID, domain.StoryStatusFailed, msg); err != nil {
		log.Error("failed to record story failure",
			slog.String("story_id", story.ID.String()),
			slog.String("error", err.Error()))
		return
	}
	story.Status = domain.StoryStatusFailed
	story.ErrorMessage = msg
}
