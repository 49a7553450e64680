package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds provider credentials, model choices and server limits.
type Config struct {
	Provider string

	GeminiAPIKey   string
	GeminiModel    string
	GeminiTTSModel string
	GeminiVoice    string

	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string
	OpenAITTSModel string
	OpenAIVoice    string

	OllamaURL   string
	OllamaModel string

	Temperature float64

	Port           string
	MaxSessions    int
	SessionTimeout time.Duration
	MaxUploadBytes int64
}

// Load reads configuration from the environment, after loading a .env file
// if one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Provider:       firstNonEmpty(env("STORY_PROVIDER"), "gemini"),
		GeminiAPIKey:   firstNonEmpty(env("GEMINI_API_KEY"), env("GOOGLE_API_KEY")),
		GeminiModel:    firstNonEmpty(env("GEMINI_MODEL"), "gemini-2.5-flash"),
		GeminiTTSModel: firstNonEmpty(env("GEMINI_TTS_MODEL"), "gemini-2.5-flash-preview-tts"),
		GeminiVoice:    firstNonEmpty(env("GEMINI_VOICE"), "Kore"),
		OpenAIAPIKey:   env("OPENAI_API_KEY"),
		OpenAIBaseURL:  env("OPENAI_BASE_URL"),
		OpenAIModel:    firstNonEmpty(env("OPENAI_MODEL"), "gpt-4o"),
		OpenAITTSModel: firstNonEmpty(env("OPENAI_TTS_MODEL"), "tts-1"),
		OpenAIVoice:    firstNonEmpty(env("OPENAI_TTS_VOICE"), "alloy"),
		OllamaURL:      firstNonEmpty(env("OLLAMA_URL"), env("OLLAMA_HOST"), "http://localhost:11434"),
		OllamaModel:    firstNonEmpty(env("OLLAMA_MODEL"), "mistral-small3.2:24b"),
		Temperature:    0.9,
		Port:           firstNonEmpty(env("PORT"), "8888"),
		MaxSessions:    100,
		SessionTimeout: 30 * time.Minute,
		MaxUploadBytes: 10 * 1024 * 1024,
	}

	if v := env("STORY_TEMPERATURE"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid STORY_TEMPERATURE: %w", err)
		}
		cfg.Temperature = t
	}

	if v := env("MAX_SESSIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_SESSIONS: %w", err)
		}
		cfg.MaxSessions = n
	}

	// SESSION_TIMEOUT is in minutes
	if v := env("SESSION_TIMEOUT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TIMEOUT: %w", err)
		}
		cfg.SessionTimeout = time.Duration(n) * time.Minute
	}

	if v := env("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES: %w", err)
		}
		cfg.MaxUploadBytes = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks limits and the provider name. Credentials are checked when
// a provider is first used, so commands that never call one still work.
func (c *Config) Validate() error {
	switch c.Provider {
	case "gemini", "openai", "ollama":
	default:
		return fmt.Errorf("invalid STORY_PROVIDER %q: must be 'gemini', 'openai', or 'ollama'", c.Provider)
	}
	if c.MaxSessions <= 0 {
		return fmt.Errorf("MAX_SESSIONS must be positive, got %d", c.MaxSessions)
	}
	if c.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive, got %s", c.SessionTimeout)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
