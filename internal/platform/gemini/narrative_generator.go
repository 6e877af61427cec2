package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/lumenhq/fable-api/internal/config"
	"github.com/lumenhq/fable-api/internal/generation"
	"github.com/lumenhq/fable-api/internal/platform/logger"
	"github.com/lumenhq/fable-api/internal/retry"
)

// narrativeTemperature keeps story output varied between requests while
// still honoring the JSON contract.
const narrativeTemperature float32 = 0.9

// apiAttempts is the number of calls made for one narrative before giving
// up on transient provider errors.
const apiAttempts = 3

// Response quality floors. Responses below them are rejected as invalid so
// the caller can regenerate.
const (
	minTitleLength     = 5
	minSceneTextLength = 15
)

// textCaller is the seam between the generator and the genai SDK. Tests
// substitute a fake; production uses genaiTextCaller.
type textCaller interface {
	generateText(ctx context.Context, model, system, user string) (*genai.GenerateContentResponse, error)
}

// genaiTextCaller calls the real Gemini API.
type genaiTextCaller struct {
	client *genai.Client
}

func (c *genaiTextCaller) generateText(ctx context.Context, model, system, user string) (*genai.GenerateContentResponse, error) {
	contents := []*genai.Content{
		{Parts: []*genai.Part{{Text: user}}, Role: "user"},
	}
	return c.client.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		Temperature:       genai.Ptr[float32](narrativeTemperature),
		ResponseMIMEType:  "application/json",
	})
}

// NarrativeGenerator implements generation.NarrativeGenerator using a
// Gemini text model.
type NarrativeGenerator struct {
	logger *slog.Logger
	caller textCaller
	model  string
	policy retry.Policy
}

// Ensure NarrativeGenerator implements the generation interface
var _ generation.NarrativeGenerator = (*NarrativeGenerator)(nil)

// NewNarrativeGenerator creates a narrative generator from LLM
// configuration. The context is used only for client initialization.
func NewNarrativeGenerator(ctx context.Context, log *slog.Logger, cfg config.LLMConfig) (*NarrativeGenerator, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.NarrativeModel == "" {
		return nil, fmt.Errorf("%w: narrative model cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return &NarrativeGenerator{
		logger: log.With(slog.String("component", "narrative_generator")),
		caller: &genaiTextCaller{client: client},
		model:  cfg.NarrativeModel,
		policy: retry.NewPolicy(apiAttempts, 2*time.Second, retryableAPIError),
	}, nil
}

// GenerateNarrative implements generation.NarrativeGenerator.
func (g *NarrativeGenerator) GenerateNarrative(ctx context.Context, req generation.NarrativeRequest) (*generation.NarrativeResult, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if req.SceneCount < 1 {
		return nil, fmt.Errorf("%w: scene count must be positive", generation.ErrInvalidConfig)
	}

	system := buildSystemPrompt(req.SceneCount)
	user := buildUserPrompt(req)

	log.Debug("requesting narrative",
		slog.String("model", g.model),
		slog.Int("scene_count", req.SceneCount),
		slog.Int("prompt_length", len(req.Prompt)))

	var resp *genai.GenerateContentResponse
	err := g.policy.Do(ctx, "narrative generation", func(ctx context.Context) error {
		r, callErr := g.caller.generateText(ctx, g.model, system, user)
		if callErr != nil {
			return callErr
		}
		resp = r
		return nil
	})
	if err != nil {
		if retryableAPIError(err) {
			return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
		}
		return nil, fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}

	result, err := parseNarrative(resp, req.SceneCount)
	if err != nil {
		log.Warn("narrative response rejected",
			slog.String("error", err.Error()),
			slog.Int("scene_count", req.SceneCount))
		return nil, err
	}

	log.Info("narrative generated",
		slog.String("title", result.Title),
		slog.Int("scenes", len(result.Scenes)))
	return result, nil
}

// parseNarrative converts a model response into a validated
// generation.NarrativeResult.
func parseNarrative(resp *genai.GenerateContentResponse, expectedScenes int) (*generation.NarrativeResult, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	// A blocked prompt comes back with feedback and no candidates, so the
	// safety checks run before the emptiness check.
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}

	text := stripJSONFences(resp.Text())
	if text == "" {
		return nil, fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var schema narrativeSchema
	if err := json.Unmarshal([]byte(text), &schema); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", generation.ErrInvalidResponse, err)
	}

	title := strings.TrimSpace(schema.Title)
	if len(title) < minTitleLength {
		return nil, fmt.Errorf("%w: title too short", generation.ErrInvalidResponse)
	}

	// Scene numbers come from the model, so trust the ordering field but
	// not the ordering of the array.
	sort.SliceStable(schema.Scenes, func(i, j int) bool {
		return schema.Scenes[i].SceneNumber < schema.Scenes[j].SceneNumber
	})

	scenes := make([]generation.SceneDraft, 0, len(schema.Scenes))
	for i, s := range schema.Scenes {
		text := strings.TrimSpace(s.Text)
		if len(text) < minSceneTextLength {
			return nil, fmt.Errorf("%w: scene %d text too short", generation.ErrInvalidResponse, i+1)
		}
		scenes = append(scenes, generation.SceneDraft{
			Order:       i + 1,
			Text:        text,
			ImagePrompt: strings.TrimSpace(s.ImagePrompt),
		})
	}

	result := &generation.NarrativeResult{
		Title:                title,
		CharacterDescriptor:  strings.TrimSpace(schema.CharacterDesign),
		BackgroundDescriptor: strings.TrimSpace(schema.BackgroundDesign),
		Scenes:               scenes,
	}
	if err := result.Validate(expectedScenes); err != nil {
		return nil, err
	}
	return result, nil
}

// stripJSONFences removes a markdown code fence wrapper that models
// sometimes emit around JSON despite the response MIME type.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// retryableAPIError reports whether a provider error is worth another
// attempt. Rate limits and server-side failures are, everything else
// (bad requests, blocked content, auth) is terminal.
func retryableAPIError(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	return retry.IsTransient(err)
}
