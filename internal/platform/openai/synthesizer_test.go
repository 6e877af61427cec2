package openai

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"testing"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenhq/fable-api/internal/config"
	"github.com/lumenhq/fable-api/internal/generation"
	"github.com/lumenhq/fable-api/internal/retry"
)

// fakeSpeechAPI fails the first speechFailures speech calls with speechErr,
// then returns audio. Transcription succeeds with payload unless
// transcribeErr is set.
type fakeSpeechAPI struct {
	speechFailures int
	speechErr      error
	audio          []byte

	transcribeErr error
	payload       transcriptionPayload

	speechCalls     int
	transcribeCalls int
	lastModel       string
	lastText        string
	lastVoice       string
}

func (f *fakeSpeechAPI) speech(_ context.Context, model, text, voice string) ([]byte, error) {
	f.speechCalls++
	f.lastModel = model
	f.lastText = text
	f.lastVoice = voice
	if f.speechCalls <= f.speechFailures {
		return nil, f.speechErr
	}
	return f.audio, nil
}

func (f *fakeSpeechAPI) transcribe(_ context.Context, _ string, _ []byte) (transcriptionPayload, error) {
	f.transcribeCalls++
	if f.transcribeErr != nil {
		return transcriptionPayload{}, f.transcribeErr
	}
	return f.payload, nil
}

func newTestSynthesizer(api speechAPI, transcripts bool) *Synthesizer {
	return &Synthesizer{
		logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		api:                api,
		model:              "gpt-4o-mini-tts",
		transcriptionModel: "whisper-1",
		defaultVoice:       "nova",
		transcripts:        transcripts,
		policy:             retry.NewPolicy(3, time.Millisecond, retryableSpeechError),
	}
}

func wordPayload() transcriptionPayload {
	return transcriptionPayload{
		Text:     "Once upon a time",
		Duration: 3.5,
		Words: []transcriptionWord{
			{Word: "Once", Start: 0, End: 0.4},
			{Word: "upon", Start: 0.4, End: 0.9},
			{Word: "a", Start: 0.9, End: 1.0},
			{Word: "time", Start: 1.0, End: 1.6},
		},
	}
}

func TestNewSynthesizer(t *testing.T) {
	t.Parallel()

	validConfig := config.SpeechConfig{
		OpenAIAPIKey:       "test-api-key",
		Model:              "gpt-4o-mini-tts",
		Voice:              "nova",
		TranscriptionModel: "whisper-1",
		EnableTranscripts:  true,
		MaxAttempts:        3,
	}

	t.Run("constructs with valid config", func(t *testing.T) {
		t.Parallel()

		synth, err := NewSynthesizer(slog.Default(), validConfig)

		require.NoError(t, err)
		assert.Equal(t, "gpt-4o-mini-tts", synth.model)
		assert.True(t, synth.transcripts)
	})

	t.Run("disables transcripts without a transcription model", func(t *testing.T) {
		t.Parallel()

		cfg := validConfig
		cfg.TranscriptionModel = ""
		synth, err := NewSynthesizer(slog.Default(), cfg)

		require.NoError(t, err)
		assert.False(t, synth.transcripts)
	})

	t.Run("rejects nil logger", func(t *testing.T) {
		t.Parallel()

		_, err := NewSynthesizer(nil, validConfig)

		assert.Error(t, err)
	})

	t.Run("rejects missing api key", func(t *testing.T) {
		t.Parallel()

		cfg := validConfig
		cfg.OpenAIAPIKey = ""
		_, err := NewSynthesizer(slog.Default(), cfg)

		assert.ErrorIs(t, err, generation.ErrInvalidConfig)
	})

	t.Run("rejects missing voice", func(t *testing.T) {
		t.Parallel()

		cfg := validConfig
		cfg.Voice = ""
		_, err := NewSynthesizer(slog.Default(), cfg)

		assert.ErrorIs(t, err, generation.ErrInvalidConfig)
	})
}

func TestSynthesize(t *testing.T) {
	t.Parallel()

	narration := "Once upon a time a little dragon learned to fly."

	t.Run("synthesizes narration with transcript", func(t *testing.T) {
		t.Parallel()

		api := &fakeSpeechAPI{audio: []byte("mp3-bytes"), payload: wordPayload()}
		synth := newTestSynthesizer(api, true)

		result := synth.Synthesize(context.Background(), narration, "nova")

		assert.False(t, result.Degraded())
		assert.Equal(t, []byte("mp3-bytes"), result.Audio)
		assert.InDelta(t, 3.5, result.Duration, 0.001)
		require.Len(t, result.Transcript, 4)
		assert.Equal(t, "Once", result.Transcript[0].Word)
		assert.InDelta(t, 1.6, result.Transcript[3].End, 0.001)
		assert.Equal(t, "gpt-4o-mini-tts", api.lastModel)
		assert.Equal(t, "nova", api.lastVoice)
	})

	t.Run("falls back to last word end for duration", func(t *testing.T) {
		t.Parallel()

		payload := wordPayload()
		payload.Duration = 0
		api := &fakeSpeechAPI{audio: []byte("mp3-bytes"), payload: payload}
		synth := newTestSynthesizer(api, true)

		result := synth.Synthesize(context.Background(), narration, "")

		assert.InDelta(t, 1.6, result.Duration, 0.001)
	})

	t.Run("estimates duration when transcripts disabled", func(t *testing.T) {
		t.Parallel()

		api := &fakeSpeechAPI{audio: []byte("mp3-bytes")}
		synth := newTestSynthesizer(api, false)

		result := synth.Synthesize(context.Background(), narration, "")

		assert.Equal(t, 0, api.transcribeCalls)
		assert.Empty(t, result.Transcript)
		assert.InDelta(t, estimateDuration(narration), result.Duration, 0.001)
		assert.Greater(t, result.Duration, 0.0)
	})

	t.Run("uses default voice when none given", func(t *testing.T) {
		t.Parallel()

		api := &fakeSpeechAPI{audio: []byte("mp3-bytes")}
		synth := newTestSynthesizer(api, false)

		synth.Synthesize(context.Background(), narration, "")

		assert.Equal(t, "nova", api.lastVoice)
	})

	t.Run("skips synthesis for empty text", func(t *testing.T) {
		t.Parallel()

		api := &fakeSpeechAPI{audio: []byte("mp3-bytes")}
		synth := newTestSynthesizer(api, true)

		result := synth.Synthesize(context.Background(), "   ", "nova")

		assert.True(t, result.Degraded())
		assert.Equal(t, 0, api.speechCalls)
	})

	t.Run("retries transient provider errors", func(t *testing.T) {
		t.Parallel()

		api := &fakeSpeechAPI{
			speechFailures: 2,
			speechErr: &openaigo.Error{
				StatusCode: 503,
				Message:    "overloaded",
				Request:    &http.Request{Method: http.MethodPost, URL: &url.URL{Scheme: "https", Host: "api.openai.com", Path: "/v1/audio/speech"}},
				Response:   &http.Response{StatusCode: 503},
			},
			audio: []byte("mp3-bytes"),
		}
		synth := newTestSynthesizer(api, false)

		result := synth.Synthesize(context.Background(), narration, "nova")

		assert.Equal(t, 3, api.speechCalls)
		assert.False(t, result.Degraded())
	})

	t.Run("degrades to zero result after exhausting retries", func(t *testing.T) {
		t.Parallel()

		api := &fakeSpeechAPI{
			speechFailures: 10,
			speechErr: &openaigo.Error{
				StatusCode: 500,
				Message:    "server error",
				Request:    &http.Request{Method: http.MethodPost, URL: &url.URL{Scheme: "https", Host: "api.openai.com", Path: "/v1/audio/speech"}},
				Response:   &http.Response{StatusCode: 500},
			},
		}
		synth := newTestSynthesizer(api, true)

		result := synth.Synthesize(context.Background(), narration, "nova")

		assert.Equal(t, 3, api.speechCalls)
		assert.True(t, result.Degraded())
		assert.Zero(t, result.Duration)
		assert.Empty(t, result.Transcript)
		assert.Equal(t, 0, api.transcribeCalls, "no transcription without audio")
	})

	t.Run("does not retry terminal provider errors", func(t *testing.T) {
		t.Parallel()

		api := &fakeSpeechAPI{
			speechFailures: 10,
			speechErr: &openaigo.Error{
				StatusCode: 401,
				Message:    "invalid key",
				Request:    &http.Request{Method: http.MethodPost, URL: &url.URL{Scheme: "https", Host: "api.openai.com", Path: "/v1/audio/speech"}},
				Response:   &http.Response{StatusCode: 401},
			},
		}
		synth := newTestSynthesizer(api, false)

		result := synth.Synthesize(context.Background(), narration, "nova")

		assert.Equal(t, 1, api.speechCalls)
		assert.True(t, result.Degraded())
	})

	t.Run("retries empty audio responses", func(t *testing.T) {
		t.Parallel()

		api := &fakeSpeechAPI{audio: []byte{}}
		synth := newTestSynthesizer(api, false)

		result := synth.Synthesize(context.Background(), narration, "nova")

		assert.Equal(t, 3, api.speechCalls)
		assert.True(t, result.Degraded())
	})

	t.Run("keeps narration when transcription fails", func(t *testing.T) {
		t.Parallel()

		api := &fakeSpeechAPI{
			audio: []byte("mp3-bytes"),
			transcribeErr: &openaigo.Error{
				StatusCode: 400,
				Message:    "bad audio",
				Request:    &http.Request{Method: http.MethodPost, URL: &url.URL{Scheme: "https", Host: "api.openai.com", Path: "/v1/audio/transcriptions"}},
				Response:   &http.Response{StatusCode: 400},
			},
		}
		synth := newTestSynthesizer(api, true)

		result := synth.Synthesize(context.Background(), narration, "nova")

		assert.False(t, result.Degraded())
		assert.Empty(t, result.Transcript)
		assert.InDelta(t, estimateDuration(narration), result.Duration, 0.001)
	})
}

func TestEstimateDuration(t *testing.T) {
	t.Parallel()

	// 750 characters read at 150 wpm with 5-character words is one minute.
	text := make([]byte, 750)
	for i := range text {
		text[i] = 'a'
	}

	assert.InDelta(t, 60.0, estimateDuration(string(text)), 0.001)
	assert.Zero(t, estimateDuration(""))
}

func TestRetryableSpeechError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "rate limited", err: &openaigo.Error{StatusCode: 429}, want: true},
		{name: "server error", err: &openaigo.Error{StatusCode: 503}, want: true},
		{name: "bad request", err: &openaigo.Error{StatusCode: 400}, want: false},
		{name: "unauthorized", err: &openaigo.Error{StatusCode: 401}, want: false},
		{name: "empty audio", err: errEmptyAudio, want: true},
		{name: "context canceled", err: context.Canceled, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, retryableSpeechError(tt.err))
		})
	}
}
