package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lumenhq/fable-api/internal/generation"
	"github.com/lumenhq/fable-api/internal/platform/logger"
	"github.com/lumenhq/fable-api/internal/storage"
	"github.com/lumenhq/fable-api/internal/store"
)

// Covers are portrait, unlike the landscape scene illustrations.
const coverAspectRatio = "3:4"

// CoverGenerator produces and uploads a story's cover image. It runs
// detached from the scene pipeline, so a slow or failed cover never
// delays scene generation.
type CoverGenerator struct {
	stories store.StoryStore
	images  generation.ImageGenerator
	uploads Uploader
	logger  *slog.Logger
}

// NewCoverGenerator creates a CoverGenerator.
func NewCoverGenerator(
	stories store.StoryStore,
	images generation.ImageGenerator,
	uploads Uploader,
	log *slog.Logger,
) (*CoverGenerator, error) {
	if stories == nil {
		return nil, errors.New("story store cannot be nil")
	}
	if images == nil {
		return nil, errors.New("image generator cannot be nil")
	}
	if uploads == nil {
		return nil, errors.New("uploader cannot be nil")
	}
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &CoverGenerator{
		stories: stories,
		images:  images,
		uploads: uploads,
		logger:  log.With(slog.String("component", "cover_generator")),
	}, nil
}

// Generate renders the cover for storyID, uploads it, and records the
// resulting URL on the story. Errors are returned wrapped; the caller
// owns logging the outcome.
func (g *CoverGenerator) Generate(ctx context.Context, storyID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, g.logger).With(
		slog.String("story_id", storyID.String()))

	story, err := g.stories.GetByID(ctx, storyID)
	if err != nil {
		return fmt.Errorf("failed to load story for cover: %w", err)
	}

	spec := generation.ImageSpec{
		Prompt: fmt.Sprintf(
			"Book cover illustration for the children's story %q, featuring the main character front and center",
			story.Title),
		CharacterDescriptor:  story.CharacterDescriptor,
		BackgroundDescriptor: story.BackgroundDescriptor,
		Style:                story.ImageStyle,
		AspectRatio:          coverAspectRatio,
	}
	data := g.images.GenerateImage(ctx, spec)

	coverURL, err := g.uploads.Upload(ctx, storage.Asset{
		Key:         storage.CoverKey(story.ID),
		Data:        data,
		ContentType: storage.ContentTypeJPEG,
	})
	if err != nil {
		return fmt.Errorf("failed to upload cover for story %s: %w", story.ID, err)
	}

	if err := g.stories.UpdateCoverURL(ctx, story.ID, coverURL); err != nil {
		return fmt.Errorf("failed to record cover URL: %w", err)
	}
	story.CoverURL = coverURL

	log.Info("cover generated",
		slog.String("cover_url", coverURL),
		slog.Int("image_bytes", len(data)))
	return nil
}
