package gateway

import (
	"fmt"
	"log/slog"

	"github.com/moodtales/storyteller/internal/config"
	"github.com/moodtales/storyteller/internal/gemini"
	"github.com/moodtales/storyteller/internal/ollama"
	"github.com/moodtales/storyteller/internal/openai"
	"github.com/moodtales/storyteller/internal/providers"
)

// Service resolves provider names to gateway bundles.
type Service struct {
	cfg *config.Config
}

func NewService(cfg *config.Config) *Service {
	return &Service{cfg: cfg}
}

// Backend returns the generation, narration and chat gateways for provider.
// Empty provider or model fall back to the configured defaults.
func (s *Service) Backend(provider, model string) (*providers.Backend, error) {
	if provider == "" {
		provider = s.cfg.Provider
	}
	if model == "" {
		model = s.getDefaultModel(provider)
	}

	backend := &providers.Backend{Name: provider, Model: model}
	switch provider {
	case "gemini":
		g := gemini.New(providers.Config{
			APIKey:      s.cfg.GeminiAPIKey,
			Model:       model,
			Temperature: s.cfg.Temperature,
		}, s.cfg.GeminiTTSModel, s.cfg.GeminiVoice)
		backend.Generator, backend.Narrator, backend.Chatter = g, g, g
	case "openai":
		o := openai.New(providers.Config{
			APIKey:      s.cfg.OpenAIAPIKey,
			BaseURL:     s.cfg.OpenAIBaseURL,
			Model:       model,
			Temperature: s.cfg.Temperature,
		}, s.cfg.OpenAITTSModel, s.cfg.OpenAIVoice)
		backend.Generator, backend.Narrator, backend.Chatter = o, o, o
	case "ollama":
		o := ollama.New(providers.Config{
			BaseURL:     s.cfg.OllamaURL,
			Model:       model,
			Temperature: s.cfg.Temperature,
		})
		backend.Generator, backend.Narrator, backend.Chatter = o, o, o
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}

	slog.Debug("Resolved provider", "provider", provider, "model", model)
	return backend, nil
}

func (s *Service) getDefaultModel(provider string) string {
	switch provider {
	case "gemini":
		return s.cfg.GeminiModel
	case "openai":
		return s.cfg.OpenAIModel
	case "ollama":
		return s.cfg.OllamaModel
	default:
		return ""
	}
}
