// Package openai implements generation.SpeechSynthesizer using the OpenAI
// text-to-speech and transcription APIs. Narration is best effort: provider
// failures are retried with backoff and then absorbed, so a scene that
// cannot be narrated still completes without audio.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/lumenhq/fable-api/internal/config"
	"github.com/lumenhq/fable-api/internal/domain"
	"github.com/lumenhq/fable-api/internal/generation"
	"github.com/lumenhq/fable-api/internal/platform/logger"
	"github.com/lumenhq/fable-api/internal/retry"
)

// errEmptyAudio marks a response that came back without bytes. Treated as
// retryable since it usually means a truncated body.
var errEmptyAudio = errors.New("speech response carried no audio")

// Narration pacing used to estimate duration when no transcription is
// available: 150 words per minute at roughly 5 characters per word.
const (
	wordsPerMinute = 150
	charsPerWord   = 5
)

// transcriptionPayload is the verbose_json transcription document. Decoded
// from the raw response so the schema stays under our control.
type transcriptionPayload struct {
	Text     string              `json:"text"`
	Duration float64             `json:"duration"`
	Words    []transcriptionWord `json:"words"`
}

// transcriptionWord is one timestamped word of the transcript.
type transcriptionWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// speechAPI is the seam between the synthesizer and the OpenAI SDK. Tests
// substitute a fake; production uses sdkSpeechAPI.
type speechAPI interface {
	speech(ctx context.Context, model, text, voice string) ([]byte, error)
	transcribe(ctx context.Context, model string, audio []byte) (transcriptionPayload, error)
}

// sdkSpeechAPI calls the real OpenAI API.
type sdkSpeechAPI struct {
	client openaigo.Client
}

func (a *sdkSpeechAPI) speech(ctx context.Context, model, text, voice string) ([]byte, error) {
	resp, err := a.client.Audio.Speech.New(ctx, openaigo.AudioSpeechNewParams{
		Input:          text,
		Model:          openaigo.SpeechModel(model),
		Voice:          openaigo.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openaigo.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed reading audio response: %w", err)
	}
	return audio, nil
}

func (a *sdkSpeechAPI) transcribe(ctx context.Context, model string, audio []byte) (transcriptionPayload, error) {
	tr, err := a.client.Audio.Transcriptions.New(ctx, openaigo.AudioTranscriptionNewParams{
		File:                   openaigo.File(bytes.NewReader(audio), "scene.mp3", "audio/mpeg"),
		Model:                  openaigo.AudioModel(model),
		ResponseFormat:         openaigo.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"word"},
	})
	if err != nil {
		return transcriptionPayload{}, err
	}

	var payload transcriptionPayload
	if err := json.Unmarshal([]byte(tr.RawJSON()), &payload); err != nil {
		return transcriptionPayload{}, fmt.Errorf("failed to decode transcription: %w", err)
	}
	return payload, nil
}

// Synthesizer implements generation.SpeechSynthesizer.
type Synthesizer struct {
	logger             *slog.Logger
	api                speechAPI
	model              string
	transcriptionModel string
	defaultVoice       string
	transcripts        bool
	policy             retry.Policy
}

// Ensure Synthesizer implements the generation interface
var _ generation.SpeechSynthesizer = (*Synthesizer)(nil)

// NewSynthesizer creates a speech synthesizer from configuration.
func NewSynthesizer(log *slog.Logger, cfg config.SpeechConfig) (*Synthesizer, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("%w: openai API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: speech model cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.Voice == "" {
		return nil, fmt.Errorf("%w: voice cannot be empty", generation.ErrInvalidConfig)
	}

	client := openaigo.NewClient(option.WithAPIKey(cfg.OpenAIAPIKey))

	return &Synthesizer{
		logger:             log.With(slog.String("component", "speech_synthesizer")),
		api:                &sdkSpeechAPI{client: client},
		model:              cfg.Model,
		transcriptionModel: cfg.TranscriptionModel,
		defaultVoice:       cfg.Voice,
		transcripts:        cfg.EnableTranscripts && cfg.TranscriptionModel != "",
		policy:             retry.NewPolicy(cfg.MaxAttempts, 2*time.Second, retryableSpeechError),
	}, nil
}

// Synthesize implements generation.SpeechSynthesizer. It never returns an
// error: when synthesis fails after retries the zero result signals the
// caller to complete the scene without narration.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voice string) generation.SpeechResult {
	log := logger.FromContextOrDefault(ctx, s.logger)

	text = strings.TrimSpace(text)
	if text == "" {
		log.Warn("empty narration text, skipping synthesis")
		return generation.SpeechResult{}
	}
	if voice == "" {
		voice = s.defaultVoice
	}

	var audio []byte
	err := s.policy.Do(ctx, "speech synthesis", func(ctx context.Context) error {
		data, callErr := s.api.speech(ctx, s.model, text, voice)
		if callErr != nil {
			return callErr
		}
		if len(data) == 0 {
			return errEmptyAudio
		}
		audio = data
		return nil
	})
	if err != nil {
		log.Error("speech synthesis failed, continuing without narration",
			slog.String("voice", voice),
			slog.Int("text_length", len(text)),
			slog.String("error", err.Error()))
		return generation.SpeechResult{}
	}

	result := generation.SpeechResult{
		Audio:    audio,
		Duration: estimateDuration(text),
	}

	if s.transcripts {
		words, duration, trErr := s.transcribeAudio(ctx, audio)
		if trErr != nil {
			log.Warn("transcription failed, keeping narration without transcript",
				slog.String("error", trErr.Error()))
		} else {
			result.Transcript = words
			if duration > 0 {
				result.Duration = duration
			}
		}
	}

	log.Info("narration synthesized",
		slog.Int("audio_bytes", len(result.Audio)),
		slog.Float64("duration_seconds", result.Duration),
		slog.Int("transcript_words", len(result.Transcript)))
	return result
}

// transcribeAudio fetches word-level timestamps for synthesized narration.
// The reported duration is the document's when present, otherwise the end
// of the last word.
func (s *Synthesizer) transcribeAudio(ctx context.Context, audio []byte) ([]domain.TranscriptWord, float64, error) {
	var payload transcriptionPayload
	err := s.policy.Do(ctx, "transcription", func(ctx context.Context) error {
		p, callErr := s.api.transcribe(ctx, s.transcriptionModel, audio)
		if callErr != nil {
			return callErr
		}
		payload = p
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	words := make([]domain.TranscriptWord, 0, len(payload.Words))
	for _, w := range payload.Words {
		words = append(words, domain.TranscriptWord{
			Word:  w.Word,
			Start: w.Start,
			End:   w.End,
		})
	}

	duration := payload.Duration
	if duration <= 0 && len(words) > 0 {
		duration = words[len(words)-1].End
	}
	return words, duration, nil
}

// estimateDuration approximates narration length in seconds from the text
// alone.
func estimateDuration(text string) float64 {
	return float64(len(text)) * 60.0 / float64(wordsPerMinute*charsPerWord)
}

// retryableSpeechError reports whether a provider error is worth another
// attempt. Rate limits, server-side failures, and empty bodies are,
// everything else is terminal.
func retryableSpeechError(err error) bool {
	if errors.Is(err, errEmptyAudio) {
		return true
	}
	var apiErr *openaigo.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return retry.IsTransient(err)
}
