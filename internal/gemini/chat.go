package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/moodtales/storyteller/internal/providers"
	"github.com/moodtales/storyteller/internal/storytelling"
	"google.golang.org/api/option"
)

// Chat answers one message grounded in the story, the analysis and, when
// present, the source image.
func (g *Gemini) Chat(ctx context.Context, req providers.ChatRequest) (string, error) {
	if err := g.checkKey(); err != nil {
		return "", providers.Fail("gemini", "chat", err)
	}

	opts := []option.ClientOption{option.WithAPIKey(g.config.APIKey)}
	if g.config.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(g.config.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", providers.Fail("gemini", "chat", fmt.Errorf("failed to create new gemini client: %w", err))
	}
	defer client.Close()

	model := client.GenerativeModel(g.config.Model)
	model.SetTemperature(float32(g.config.Temperature))

	var parts []genai.Part
	if req.Image != nil {
		parts = append(parts, genai.Blob{MIMEType: req.Image.MediaType, Data: req.Image.Data})
	}
	parts = append(parts, genai.Text(storytelling.ChatPrompt(req.Message, req.Story, req.Analysis, req.Image != nil)))

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", providers.Fail("gemini", "chat", fmt.Errorf("failed to generate content: %w", err))
	}

	if len(resp.Candidates) == 0 {
		return "", providers.Fail("gemini", "chat", fmt.Errorf("no candidates returned from Gemini"))
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", providers.Fail("gemini", "chat", fmt.Errorf("empty content returned from Gemini"))
	}

	var reply strings.Builder
	for _, p := range candidate.Content.Parts {
		if txt, ok := p.(genai.Text); ok {
			reply.WriteString(string(txt))
		}
	}
	if strings.TrimSpace(reply.String()) == "" {
		return "", providers.Fail("gemini", "chat", fmt.Errorf("unexpected response format from Gemini"))
	}
	return strings.TrimSpace(reply.String()), nil
}
