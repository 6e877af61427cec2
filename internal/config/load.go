package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables with the FABLE_
// prefix. Nested keys map through underscores, so server.port becomes
// FABLE_SERVER_PORT. Returns a populated Config or an error if loading
// or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("FABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key with viper. Keys must be known to viper
// for AutomaticEnv to surface them during Unmarshal, so required settings
// without a sensible default are registered as empty strings and caught by
// validation instead.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.url", "")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("auth.refresh_token_lifetime_minutes", 10080)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.narrative_model", "gemini-2.0-flash")
	v.SetDefault("llm.image_model", "imagen-3.0-generate-002")
	v.SetDefault("llm.max_image_attempts", 3)
	v.SetDefault("llm.max_narrative_attempts", 3)

	v.SetDefault("speech.openai_api_key", "")
	v.SetDefault("speech.model", "gpt-4o-mini-tts")
	v.SetDefault("speech.voice", "nova")
	v.SetDefault("speech.transcription_model", "whisper-1")
	v.SetDefault("speech.enable_transcripts", true)
	v.SetDefault("speech.max_attempts", 3)

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("storage.bucket", "fable-assets")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.max_attempts", 3)
	v.SetDefault("storage.base_delay_seconds", 2)

	v.SetDefault("generation.batch_size", 3)
	v.SetDefault("generation.avg_seconds_per_scene", 15)
}
