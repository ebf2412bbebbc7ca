// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.studio/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: Generation model selection, temperature
//   - Storage: PostgreSQL connection for the project store
//   - Builder: autosave idle window, duplicate-prompt suppression window
//   - Voice: speech service endpoint, voice identity, audio frame sizing
//   - TTS: text-to-speech endpoint and credentials (API key or service account)
//   - Web: listen address, CORS, rate limiting
//
// Security: Sensitive data (passwords, API keys) are never logged; the config
// directory uses 0750 permissions.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidWindow indicates a debounce window is out of range.
	ErrInvalidWindow = errors.New("invalid debounce window")

	// ErrInvalidListenAddr indicates the web listen address is invalid.
	ErrInvalidListenAddr = errors.New("invalid listen address")

	// ErrInvalidSpeechEndpoint indicates the speech service endpoint is invalid.
	ErrInvalidSpeechEndpoint = errors.New("invalid speech endpoint")

	// ErrMissingTTSCredentials indicates neither a TTS API key nor a service
	// account file is configured.
	ErrMissingTTSCredentials = errors.New("missing TTS credentials")
)

// Default debounce windows. Both are tunable via config; the values mirror the
// behavior the front-end expects (saves coalesce to one write per idle window,
// a re-submitted identical prompt inside the dedup window is a no-op).
const (
	DefaultSaveIdleWindow    = 2 * time.Second
	DefaultPromptDedupWindow = 5 * time.Second
)

// DefaultGenerationModel is the default Gemini model for website generation.
const DefaultGenerationModel = "gemini-2.5-flash"

// Config stores application configuration.
// SECURITY: Sensitive fields must never be logged directly.
type Config struct {
	// Generation model configuration
	ModelName   string  `mapstructure:"model_name"`
	Temperature float32 `mapstructure:"temperature"`

	// Storage configuration (project store)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// Builder configuration
	SaveIdleWindow    time.Duration `mapstructure:"save_idle_window"`
	PromptDedupWindow time.Duration `mapstructure:"prompt_dedup_window"`

	// Voice configuration
	SpeechEndpoint string `mapstructure:"speech_endpoint"` // WebSocket URL of the live speech service
	VoiceName      string `mapstructure:"voice_name"`
	FrameSamples   int    `mapstructure:"frame_samples"`  // Samples per outbound audio frame
	PriceEndpoint  string `mapstructure:"price_endpoint"` // Quote service for the voice price tool

	// TTS configuration. APIKey wins when both are set; otherwise the service
	// account file is used for an OAuth token source.
	TTSEndpoint        string  `mapstructure:"tts_endpoint"`
	TTSAPIKey          string  `mapstructure:"tts_api_key"` // SENSITIVE
	TTSCredentialsFile string  `mapstructure:"tts_credentials_file"`
	TTSSpeakingRate    float64 `mapstructure:"tts_speaking_rate"`

	// Web configuration
	ListenAddr     string   `mapstructure:"listen_addr"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
	TrustProxy     bool     `mapstructure:"trust_proxy"`

	// GeminiAPIKey is bound from GEMINI_API_KEY.
	GeminiAPIKey string `mapstructure:"gemini_api_key"` // SENSITIVE
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".studio")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Also support current directory

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// Generation defaults
	v.SetDefault("model_name", DefaultGenerationModel)
	v.SetDefault("temperature", 0.7)

	// PostgreSQL defaults (local development)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "studio")
	v.SetDefault("postgres_password", "studio_dev_password")
	v.SetDefault("postgres_db_name", "studio")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Builder defaults
	v.SetDefault("save_idle_window", DefaultSaveIdleWindow)
	v.SetDefault("prompt_dedup_window", DefaultPromptDedupWindow)

	// Voice defaults
	v.SetDefault("voice_name", "Aoede")
	v.SetDefault("frame_samples", 4096)

	// TTS defaults
	v.SetDefault("tts_endpoint", "https://texttospeech.googleapis.com/v1/text:synthesize")
	v.SetDefault("tts_speaking_rate", 1.0)

	// Web defaults
	v.SetDefault("listen_addr", "localhost:8080")
	v.SetDefault("cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("rate_limit_rps", 10.0)
	v.SetDefault("rate_limit_burst", 30)
	v.SetDefault("trust_proxy", false)
}

// bindEnvVariables binds environment variables explicitly.
func bindEnvVariables(v *viper.Viper) {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("gemini_api_key", "GEMINI_API_KEY")
	mustBind("tts_api_key", "TTS_API_KEY")
	mustBind("tts_credentials_file", "GOOGLE_APPLICATION_CREDENTIALS")
	mustBind("postgres_password", "STUDIO_POSTGRES_PASSWORD")
	mustBind("listen_addr", "STUDIO_LISTEN_ADDR")
	mustBind("cors_origins", "STUDIO_CORS_ORIGINS")
	mustBind("trust_proxy", "STUDIO_TRUST_PROXY")
	mustBind("model_name", "STUDIO_MODEL_NAME")
	mustBind("speech_endpoint", "STUDIO_SPEECH_ENDPOINT")
	mustBind("price_endpoint", "STUDIO_PRICE_ENDPOINT")
}

// DatabaseURL returns the PostgreSQL connection URL for pgx and golang-migrate.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:   fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:   "/" + c.PostgresDBName,
	}
	q := url.Values{}
	q.Set("sslmode", c.PostgresSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
