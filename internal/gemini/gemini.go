package gemini

import (
	"context"
	"fmt"

	"github.com/moodtales/storyteller/internal/providers"
	"google.golang.org/genai"
)

const (
	// DefaultTTSModel is the speech model used when none is configured.
	DefaultTTSModel = "gemini-2.5-flash-preview-tts"
	// DefaultVoice is the prebuilt narration voice.
	DefaultVoice = "Kore"
)

// Gemini is a provider for Google Gemini
type Gemini struct {
	config   providers.Config
	ttsModel string
	voice    string
}

// New returns a new Gemini provider. Empty ttsModel or voice fall back to the
// defaults.
func New(config providers.Config, ttsModel, voice string) *Gemini {
	if ttsModel == "" {
		ttsModel = DefaultTTSModel
	}
	if voice == "" {
		voice = DefaultVoice
	}
	return &Gemini{config: config, ttsModel: ttsModel, voice: voice}
}

func (g *Gemini) checkKey() error {
	if g.config.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	return nil
}

func (g *Gemini) client(ctx context.Context) (*genai.Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  g.config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if g.config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.config.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	return client, nil
}

func firstCandidateParts(resp *genai.GenerateContentResponse) ([]*genai.Part, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates returned from Gemini")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("empty content returned from Gemini")
	}
	return candidate.Content.Parts, nil
}
