package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenhq/fable-api/internal/platform/logger"
	"github.com/lumenhq/fable-api/internal/storage"
	"github.com/lumenhq/fable-api/internal/store"
)

func newCoverFixture(t *testing.T) (*CoverGenerator, *storyStoreStub, *imageStub, *uploaderStub) {
	t.Helper()

	stories := &storyStoreStub{}
	images := &imageStub{}
	uploads := newUploaderStub()
	_, log := logger.NewTestLogger(t)

	gen, err := NewCoverGenerator(stories, images, uploads, log)
	require.NoError(t, err)
	return gen, stories, images, uploads
}

func TestNewCoverGenerator(t *testing.T) {
	t.Parallel()

	stories := &storyStoreStub{}
	images := &imageStub{}
	uploads := newUploaderStub()
	_, log := logger.NewTestLogger(t)

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		gen, err := NewCoverGenerator(stories, images, uploads, log)
		require.NoError(t, err)
		assert.NotNil(t, gen)
	})

	t.Run("nil story store", func(t *testing.T) {
		t.Parallel()
		_, err := NewCoverGenerator(nil, images, uploads, log)
		assert.ErrorContains(t, err, "story store cannot be nil")
	})

	t.Run("nil image generator", func(t *testing.T) {
		t.Parallel()
		_, err := NewCoverGenerator(stories, nil, uploads, log)
		assert.ErrorContains(t, err, "image generator cannot be nil")
	})

	t.Run("nil uploader", func(t *testing.T) {
		t.Parallel()
		_, err := NewCoverGenerator(stories, images, nil, log)
		assert.ErrorContains(t, err, "uploader cannot be nil")
	})

	t.Run("nil logger", func(t *testing.T) {
		t.Parallel()
		_, err := NewCoverGenerator(stories, images, uploads, nil)
		assert.ErrorContains(t, err, "logger cannot be nil")
	})
}

func TestCoverGeneratorGenerate(t *testing.T) {
	t.Parallel()

	t.Run("generates, uploads, and records the cover", func(t *testing.T) {
		t.Parallel()
		gen, stories, images, uploads := newCoverFixture(t)

		story := workerStory(t)
		story.ImageStyle = "watercolor"
		stories.story = story

		err := gen.Generate(context.Background(), story.ID)
		require.NoError(t, err)

		specs := images.recordedSpecs()
		require.Len(t, specs, 1)
		assert.Contains(t, specs[0].Prompt, `"The Generous Fox"`)
		assert.Equal(t, story.CharacterDescriptor, specs[0].CharacterDescriptor)
		assert.Equal(t, story.BackgroundDescriptor, specs[0].BackgroundDescriptor)
		assert.Equal(t, "watercolor", specs[0].Style)
		assert.Equal(t, "3:4", specs[0].AspectRatio)

		coverKey := storage.CoverKey(story.ID)
		asset, ok := uploads.asset(coverKey)
		require.True(t, ok, "cover was not uploaded")
		assert.Equal(t, storage.ContentTypeJPEG, asset.ContentType)

		assert.Equal(t, []string{"https://cdn.test/" + coverKey}, stories.recordedCovers())
	})

	t.Run("unknown story", func(t *testing.T) {
		t.Parallel()
		gen, stories, _, uploads := newCoverFixture(t)

		err := gen.Generate(context.Background(), uuid.New())
		require.Error(t, err)
		assert.ErrorIs(t, err, store.ErrStoryNotFound)
		assert.Contains(t, err.Error(), "failed to load story for cover")

		assert.Zero(t, uploads.uploadCount())
		assert.Empty(t, stories.recordedCovers())
	})

	t.Run("upload failure", func(t *testing.T) {
		t.Parallel()
		gen, stories, _, uploads := newCoverFixture(t)

		story := workerStory(t)
		stories.story = story
		uploads.failKeys[storage.CoverKey(story.ID)] = errors.New("bucket offline")

		err := gen.Generate(context.Background(), story.ID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to upload cover for story")

		assert.Empty(t, stories.recordedCovers())
	})

	t.Run("cover URL persistence failure", func(t *testing.T) {
		t.Parallel()
		gen, stories, _, _ := newCoverFixture(t)

		story := workerStory(t)
		stories.story = story
		stories.coverErr = errors.New("db gone")

		err := gen.Generate(context.Background(), story.ID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to record cover URL")
	})
}
