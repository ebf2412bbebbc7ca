package config

import (
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. API key validation (required for generation and the voice knowledge tool)
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	// 2. Model configuration validation
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	// Temperature range: 0.0 (deterministic) to 2.0 (maximum creativity)
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	// 3. PostgreSQL configuration validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "studio_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable)
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	// 4. Debounce windows. Upper bounds keep a misconfigured window from making
	// the UI appear to never save or from suppressing legitimate resubmissions.
	if c.SaveIdleWindow < 100*time.Millisecond || c.SaveIdleWindow > time.Minute {
		return fmt.Errorf("%w: save_idle_window must be between 100ms and 1m, got %v",
			ErrInvalidWindow, c.SaveIdleWindow)
	}
	if c.PromptDedupWindow < time.Second || c.PromptDedupWindow > time.Minute {
		return fmt.Errorf("%w: prompt_dedup_window must be between 1s and 1m, got %v",
			ErrInvalidWindow, c.PromptDedupWindow)
	}

	// 5. Web configuration
	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen_addr cannot be empty", ErrInvalidListenAddr)
	}

	return nil
}

// ValidateTTS checks that at least one TTS credential source is configured.
// Called lazily by the TTS client rather than at startup so deployments that
// never use TTS don't need credentials.
func (c *Config) ValidateTTS() error {
	if c.TTSAPIKey == "" && c.TTSCredentialsFile == "" {
		return fmt.Errorf("%w: set TTS_API_KEY or GOOGLE_APPLICATION_CREDENTIALS",
			ErrMissingTTSCredentials)
	}
	return nil
}
