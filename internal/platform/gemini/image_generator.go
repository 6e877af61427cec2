package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"net/http"
	"time"

	// Imagen returns PNG bytes, registered here for image.Decode.
	_ "image/png"

	"google.golang.org/genai"

	"github.com/lumenhq/fable-api/internal/config"
	"github.com/lumenhq/fable-api/internal/generation"
	"github.com/lumenhq/fable-api/internal/platform/logger"
)

// minImageBytes is the floor below which a response is treated as empty.
// Real illustrations run to hundreds of kilobytes.
const minImageBytes = 100

// jpegQuality balances file size against visible artifacts in storybook
// art.
const jpegQuality = 85

// fallbackPause is the wait between rungs of the prompt ladder.
const fallbackPause = time.Second

// imageCaller is the seam between the generator and the genai SDK. Tests
// substitute a fake; production uses genaiImageCaller.
type imageCaller interface {
	generateImages(ctx context.Context, model, prompt, aspectRatio string) (*genai.GenerateImagesResponse, error)
}

// genaiImageCaller calls the real Imagen API.
type genaiImageCaller struct {
	client *genai.Client
}

func (c *genaiImageCaller) generateImages(ctx context.Context, model, prompt, aspectRatio string) (*genai.GenerateImagesResponse, error) {
	return c.client.Models.GenerateImages(ctx, model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages:    1,
		AspectRatio:       aspectRatio,
		SafetyFilterLevel: genai.SafetyFilterLevelBlockOnlyHigh,
		PersonGeneration:  genai.PersonGenerationAllowAll,
	})
}

// ImageGenerator implements generation.ImageGenerator using an Imagen
// model. It never returns an error: each scene walks an ordered ladder of
// prompts from fully detailed to generic, and when every rung fails the
// scene gets a deterministic placeholder so the story can still complete.
type ImageGenerator struct {
	logger      *slog.Logger
	caller      imageCaller
	model       string
	maxAttempts int
	pause       time.Duration
}

// Ensure ImageGenerator implements the generation interface
var _ generation.ImageGenerator = (*ImageGenerator)(nil)

// NewImageGenerator creates an image generator from LLM configuration. The
// context is used only for client initialization.
func NewImageGenerator(ctx context.Context, log *slog.Logger, cfg config.LLMConfig) (*ImageGenerator, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ImageModel == "" {
		return nil, fmt.Errorf("%w: image model cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	maxAttempts := cfg.MaxImageAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &ImageGenerator{
		logger:      log.With(slog.String("component", "image_generator")),
		caller:      &genaiImageCaller{client: client},
		model:       cfg.ImageModel,
		maxAttempts: maxAttempts,
		pause:       fallbackPause,
	}, nil
}

// GenerateImage implements generation.ImageGenerator.
func (g *ImageGenerator) GenerateImage(ctx context.Context, spec generation.ImageSpec) []byte {
	log := logger.FromContextOrDefault(ctx, g.logger)

	aspect := spec.AspectRatio
	if aspect == "" {
		aspect = defaultAspectRatio
	}

	prompts := buildImagePrompts(spec)
	if g.maxAttempts < len(prompts) {
		prompts = prompts[:g.maxAttempts]
	}

	for attempt, prompt := range prompts {
		if ctx.Err() != nil {
			log.Warn("image generation cancelled",
				slog.Int("scene", spec.SceneOrder),
				slog.String("error", ctx.Err().Error()))
			break
		}

		resp, err := g.caller.generateImages(ctx, g.model, prompt, aspect)
		if err != nil {
			log.Warn("image generation attempt failed",
				slog.Int("scene", spec.SceneOrder),
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", len(prompts)),
				slog.String("error", err.Error()))
		} else if data := firstImageBytes(resp); len(data) > minImageBytes {
			log.Info("scene image generated",
				slog.Int("scene", spec.SceneOrder),
				slog.Int("attempt", attempt+1),
				slog.Int("bytes", len(data)))
			return toJPEG(log, data)
		} else {
			log.Warn("image generation returned no usable image",
				slog.Int("scene", spec.SceneOrder),
				slog.Int("attempt", attempt+1))
		}

		if attempt < len(prompts)-1 {
			waitBeforeFallback(ctx, g.pause)
		}
	}

	log.Error("image generation exhausted all prompts, rendering placeholder",
		slog.Int("scene", spec.SceneOrder))
	return placeholderJPEG(spec.SceneOrder)
}

// firstImageBytes extracts the raw bytes of the first generated image, or
// nil when the response carries none.
func firstImageBytes(resp *genai.GenerateImagesResponse) []byte {
	if resp == nil || len(resp.GeneratedImages) == 0 {
		return nil
	}
	generated := resp.GeneratedImages[0]
	if generated == nil || generated.Image == nil {
		return nil
	}
	return generated.Image.ImageBytes
}

// toJPEG re-encodes model output as JPEG, which is a fraction of the PNG
// size for painterly scenes. Bytes that are already JPEG pass through, and
// bytes that cannot be decoded are returned unchanged rather than lost.
func toJPEG(log *slog.Logger, data []byte) []byte {
	if http.DetectContentType(data) == "image/jpeg" {
		return data
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Warn("could not decode generated image, storing as-is",
			slog.String("error", err.Error()))
		return data
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		log.Warn("could not transcode generated image, storing as-is",
			slog.String("error", err.Error()))
		return data
	}
	return buf.Bytes()
}

// waitBeforeFallback sleeps between prompt attempts, returning early when
// the context ends.
func waitBeforeFallback(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
