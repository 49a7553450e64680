package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/moodtales/storyteller/internal/providers"
	"github.com/moodtales/storyteller/internal/source"
	"github.com/moodtales/storyteller/internal/storytelling"
)

// DefaultURL is where a local Ollama listens.
const DefaultURL = "http://localhost:11434"

// Ollama is a provider for a local Ollama server
type Ollama struct {
	config providers.Config
	client *http.Client
}

// New returns a new Ollama provider. config.BaseURL is the server root.
func New(config providers.Config) *Ollama {
	if config.BaseURL == "" {
		config.BaseURL = DefaultURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &Ollama{config: config, client: &http.Client{}}
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Images  []string       `json:"images,omitempty"`
	Format  string         `json:"format,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

// Generate produces a mood analysis and story opening for the payload.
// Ollama cannot read PDFs or fetch URLs; a URL is passed as text.
func (o *Ollama) Generate(ctx context.Context, payload source.Payload) (providers.GenerationResult, error) {
	if _, ok := payload.(source.Document); ok {
		return providers.GenerationResult{}, providers.Fail("ollama", "generate", fmt.Errorf("pdf input: %w", providers.ErrUnsupported))
	}

	body := generateRequest{
		Model:   o.config.Model,
		Prompt:  storytelling.GenerationPrompt(payload),
		Format:  "json",
		Stream:  false,
		Options: map[string]any{"temperature": o.config.Temperature},
	}
	if img, ok := payload.(source.Image); ok {
		body.Images = []string{source.EncodeBase64(img.Data)}
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := o.post(ctx, "/api/generate", body, &response); err != nil {
		return providers.GenerationResult{}, providers.Fail("ollama", "generate", err)
	}

	slog.Debug("Ollama generation response", "model", o.config.Model, "kind", payload.Kind(), "length", len(response.Response))
	return storytelling.ParseResult(response.Response)
}

// Narrate is not available on Ollama.
func (o *Ollama) Narrate(ctx context.Context, text string) (*providers.Audio, error) {
	return nil, fmt.Errorf("ollama narration: %w", providers.ErrUnsupported)
}

// Chat answers one message grounded in the story context.
func (o *Ollama) Chat(ctx context.Context, req providers.ChatRequest) (string, error) {
	msg := chatMessage{
		Role:    "user",
		Content: storytelling.ChatPrompt(req.Message, req.Story, req.Analysis, req.Image != nil),
	}
	if req.Image != nil {
		msg.Images = []string{source.EncodeBase64(req.Image.Data)}
	}

	var response struct {
		Message chatMessage `json:"message"`
	}
	err := o.post(ctx, "/api/chat", chatRequest{
		Model:    o.config.Model,
		Messages: []chatMessage{msg},
		Stream:   false,
		Options:  map[string]any{"temperature": o.config.Temperature},
	}, &response)
	if err != nil {
		return "", providers.Fail("ollama", "chat", err)
	}

	reply := strings.TrimSpace(response.Message.Content)
	if reply == "" {
		return "", providers.Fail("ollama", "chat", fmt.Errorf("empty reply from Ollama"))
	}
	return reply, nil
}

func (o *Ollama) post(ctx context.Context, path string, body, out any) error {
	requestBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.config.BaseURL+path, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
