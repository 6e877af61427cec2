package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Auth       AuthConfig       `mapstructure:"auth" validate:"required"`
	LLM        LLMConfig        `mapstructure:"llm" validate:"required"`
	Speech     SpeechConfig     `mapstructure:"speech" validate:"required"`
	Storage    StorageConfig    `mapstructure:"storage" validate:"required"`
	Generation GenerationConfig `mapstructure:"generation" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret                   string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes        int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
	RefreshTokenLifetimeMinutes int    `mapstructure:"refresh_token_lifetime_minutes" validate:"required,gt=0"`
	BCryptCost                  int    `mapstructure:"bcrypt_cost" validate:"min=4,max=31"`
}

// LLMConfig contains settings for narrative and image generation.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`
	// NarrativeModel writes the story text, ImageModel illustrates it.
	NarrativeModel       string `mapstructure:"narrative_model" validate:"required"`
	ImageModel           string `mapstructure:"image_model" validate:"required"`
	MaxImageAttempts     int    `mapstructure:"max_image_attempts" validate:"required,min=1"`
	MaxNarrativeAttempts int    `mapstructure:"max_narrative_attempts" validate:"required,min=1"`
}

// SpeechConfig contains settings for narration synthesis and transcription.
type SpeechConfig struct {
	OpenAIAPIKey       string `mapstructure:"openai_api_key" validate:"required"`
	Model              string `mapstructure:"model" validate:"required"`
	Voice              string `mapstructure:"voice" validate:"required"`
	TranscriptionModel string `mapstructure:"transcription_model" validate:"required"`
	EnableTranscripts  bool   `mapstructure:"enable_transcripts"`
	MaxAttempts        int    `mapstructure:"max_attempts" validate:"required,min=1"`
}

// StorageConfig contains object storage connection settings.
type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint" validate:"required"`
	AccessKeyID     string `mapstructure:"access_key_id" validate:"required"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required"`
	Bucket          string `mapstructure:"bucket" validate:"required"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	// PublicBaseURL is prepended to object keys when building asset URLs.
	// Leave empty to derive it from the endpoint and bucket.
	PublicBaseURL    string `mapstructure:"public_base_url"`
	MaxAttempts      int    `mapstructure:"max_attempts" validate:"required,min=1"`
	BaseDelaySeconds int    `mapstructure:"base_delay_seconds" validate:"required,min=1"`
}

// GenerationConfig tunes the scene generation pipeline.
type GenerationConfig struct {
	// BatchSize is the number of scenes processed concurrently per batch.
	BatchSize int `mapstructure:"batch_size" validate:"required,min=1,max=5"`
	// AvgSecondsPerScene feeds the remaining-time estimate on progress polls.
	AvgSecondsPerScene int `mapstructure:"avg_seconds_per_scene" validate:"required,min=1"`
}
