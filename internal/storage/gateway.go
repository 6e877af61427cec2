package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lumenhq/fable-api/internal/platform/logger"
	"github.com/lumenhq/fable-api/internal/retry"
)

// Asset is one uploadable object.
type Asset struct {
	Key         string
	Data        []byte
	ContentType string
}

// Content types for generated assets.
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypeMP3  = "audio/mpeg"
)

// UploadGateway pushes generated assets into object storage under the
// shared retry policy. Transient connection failures are retried with
// exponential backoff; terminal errors (denied access, bad request) abort
// immediately. When attempts are exhausted the last error is returned and
// the caller decides whether the scene degrades or fails.
type UploadGateway struct {
	store  ObjectStore
	policy retry.Policy
	logger *slog.Logger
}

// NewUploadGateway creates an UploadGateway.
// Returns an error if store is nil. If log is nil, a default logger is used.
func NewUploadGateway(store ObjectStore, policy retry.Policy, log *slog.Logger) (*UploadGateway, error) {
	if store == nil {
		return nil, fmt.Errorf("object store cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &UploadGateway{
		store:  store,
		policy: policy,
		logger: log.With(slog.String("component", "upload_gateway")),
	}, nil
}

// Upload stores the asset and returns its public URL. Uploads are
// idempotent by key: retries and re-runs overwrite the same object.
// On failure the empty URL and the last error are returned.
func (g *UploadGateway) Upload(ctx context.Context, asset Asset) (string, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	if asset.Key == "" {
		return "", fmt.Errorf("asset key cannot be empty")
	}
	if len(asset.Data) == 0 {
		return "", fmt.Errorf("asset data cannot be empty")
	}

	err := g.policy.Do(ctx, "upload "+asset.Key, func(ctx context.Context) error {
		return g.store.Put(ctx, asset.Key, asset.Data, asset.ContentType)
	})
	if err != nil {
		log.Error("upload failed after retries",
			slog.String("key", asset.Key),
			slog.Int("size_bytes", len(asset.Data)),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("failed to upload %s: %w", asset.Key, err)
	}

	url := g.store.URL(asset.Key)
	log.Debug("asset uploaded",
		slog.String("key", asset.Key),
		slog.Int("size_bytes", len(asset.Data)))
	return url, nil
}

// SceneImageKey returns the canonical object key for a scene illustration.
func SceneImageKey(storyID uuid.UUID, order int) string {
	return fmt.Sprintf("stories/%s/scene_%d.jpg", storyID, order)
}

// SceneAudioKey returns the canonical object key for a scene narration.
func SceneAudioKey(storyID uuid.UUID, order int) string {
	return fmt.Sprintf("stories/%s/scene_%d.mp3", storyID, order)
}

// CoverKey returns the canonical object key for a story cover image.
func CoverKey(storyID uuid.UUID) string {
	return fmt.Sprintf("stories/%s/cover.jpg", storyID)
}
