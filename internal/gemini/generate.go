package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/moodtales/storyteller/internal/providers"
	"github.com/moodtales/storyteller/internal/source"
	"github.com/moodtales/storyteller/internal/storytelling"
	"google.golang.org/genai"
)

// Generate produces a mood analysis and story opening for the payload.
func (g *Gemini) Generate(ctx context.Context, payload source.Payload) (providers.GenerationResult, error) {
	if err := g.checkKey(); err != nil {
		return providers.GenerationResult{}, providers.Fail("gemini", "generate", err)
	}

	client, err := g.client(ctx)
	if err != nil {
		return providers.GenerationResult{}, providers.Fail("gemini", "generate", err)
	}

	contents, config := g.generationRequest(payload)
	resp, err := client.Models.GenerateContent(ctx, g.config.Model, contents, config)
	if err != nil {
		return providers.GenerationResult{}, providers.Fail("gemini", "generate", fmt.Errorf("failed to generate content: %w", err))
	}

	parts, err := firstCandidateParts(resp)
	if err != nil {
		return providers.GenerationResult{}, providers.Fail("gemini", "generate", err)
	}

	var text strings.Builder
	for _, p := range parts {
		if p != nil {
			text.WriteString(p.Text)
		}
	}

	slog.Debug("Gemini generation response", "model", g.config.Model, "kind", payload.Kind(), "length", text.Len())
	return storytelling.ParseResult(text.String())
}

// generationRequest builds the contents and config for one payload. The URL
// context tool cannot be combined with a JSON response type, so URL requests
// rely on the prompt alone for the output shape.
func (g *Gemini) generationRequest(payload source.Payload) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(g.config.Temperature)),
	}

	var parts []*genai.Part
	switch v := payload.(type) {
	case source.Image:
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: v.MediaType, Data: v.Data}})
		config.ResponseMIMEType = "application/json"
	case source.Document:
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: v.MediaType, Data: v.Data}})
		config.ResponseMIMEType = "application/json"
	case source.RemoteURL:
		config.Tools = []*genai.Tool{{URLContext: &genai.URLContext{}}}
	default:
		config.ResponseMIMEType = "application/json"
	}
	parts = append(parts, &genai.Part{Text: storytelling.GenerationPrompt(payload)})

	return []*genai.Content{{Role: "user", Parts: parts}}, config
}
