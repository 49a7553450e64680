package openai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/moodtales/storyteller/internal/providers"
	"github.com/moodtales/storyteller/internal/source"
	"github.com/moodtales/storyteller/internal/storytelling"
	goopenai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultTTSModel is the speech model used when none is configured.
	DefaultTTSModel = "tts-1"
	// DefaultVoice is the narration voice used when none is configured.
	DefaultVoice = "alloy"
)

// OpenAI is a provider for OpenAI and OpenAI-compatible endpoints
type OpenAI struct {
	config   providers.Config
	ttsModel string
	voice    string
}

// New returns a new OpenAI provider
func New(config providers.Config, ttsModel, voice string) *OpenAI {
	if ttsModel == "" {
		ttsModel = DefaultTTSModel
	}
	if voice == "" {
		voice = DefaultVoice
	}
	return &OpenAI{config: config, ttsModel: ttsModel, voice: voice}
}

func (o *OpenAI) client() (*goopenai.Client, error) {
	if o.config.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	cfg := goopenai.DefaultConfig(o.config.APIKey)
	if o.config.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(o.config.BaseURL, "/")
	}
	return goopenai.NewClientWithConfig(cfg), nil
}

// Generate produces a mood analysis and story opening for the payload.
// PDF documents are not accepted by the chat completions endpoint.
func (o *OpenAI) Generate(ctx context.Context, payload source.Payload) (providers.GenerationResult, error) {
	if _, ok := payload.(source.Document); ok {
		return providers.GenerationResult{}, providers.Fail("openai", "generate", fmt.Errorf("pdf input: %w", providers.ErrUnsupported))
	}

	client, err := o.client()
	if err != nil {
		return providers.GenerationResult{}, providers.Fail("openai", "generate", err)
	}

	prompt := storytelling.GenerationPrompt(payload)
	message := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser}
	if img, ok := payload.(source.Image); ok {
		message.MultiContent = []goopenai.ChatMessagePart{
			{Type: goopenai.ChatMessagePartTypeText, Text: prompt},
			{Type: goopenai.ChatMessagePartTypeImageURL, ImageURL: &goopenai.ChatMessageImageURL{
				URL:    source.DataURL(img.MediaType, img.Data),
				Detail: goopenai.ImageURLDetailAuto,
			}},
		}
	} else {
		message.Content = prompt
	}

	resp, err := client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       o.config.Model,
		Messages:    []goopenai.ChatCompletionMessage{message},
		Temperature: float32(o.config.Temperature),
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return providers.GenerationResult{}, providers.Fail("openai", "generate", fmt.Errorf("failed to create chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return providers.GenerationResult{}, providers.Fail("openai", "generate", fmt.Errorf("no choices returned from OpenAI"))
	}

	content := resp.Choices[0].Message.Content
	slog.Debug("OpenAI generation response", "model", o.config.Model, "kind", payload.Kind(), "length", len(content))
	return storytelling.ParseResult(content)
}

// Narrate synthesizes the story as MP3 speech.
func (o *OpenAI) Narrate(ctx context.Context, text string) (*providers.Audio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("nothing to narrate")
	}
	client, err := o.client()
	if err != nil {
		return nil, providers.Fail("openai", "narrate", err)
	}

	resp, err := client.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model:          goopenai.SpeechModel(o.ttsModel),
		Input:          text,
		Voice:          goopenai.SpeechVoice(o.voice),
		ResponseFormat: goopenai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, providers.Fail("openai", "narrate", fmt.Errorf("failed to create speech: %w", err))
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, providers.Fail("openai", "narrate", fmt.Errorf("failed to read speech: %w", err))
	}
	if len(data) == 0 {
		return nil, providers.Fail("openai", "narrate", fmt.Errorf("no audio returned from OpenAI"))
	}
	return &providers.Audio{Data: data, MediaType: "audio/mpeg"}, nil
}

// Chat answers one message grounded in the story context.
func (o *OpenAI) Chat(ctx context.Context, req providers.ChatRequest) (string, error) {
	client, err := o.client()
	if err != nil {
		return "", providers.Fail("openai", "chat", err)
	}

	prompt := storytelling.ChatPrompt(req.Message, req.Story, req.Analysis, req.Image != nil)
	message := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser}
	if req.Image != nil {
		message.MultiContent = []goopenai.ChatMessagePart{
			{Type: goopenai.ChatMessagePartTypeText, Text: prompt},
			{Type: goopenai.ChatMessagePartTypeImageURL, ImageURL: &goopenai.ChatMessageImageURL{
				URL:    source.DataURL(req.Image.MediaType, req.Image.Data),
				Detail: goopenai.ImageURLDetailAuto,
			}},
		}
	} else {
		message.Content = prompt
	}

	resp, err := client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       o.config.Model,
		Messages:    []goopenai.ChatCompletionMessage{message},
		Temperature: float32(o.config.Temperature),
	})
	if err != nil {
		return "", providers.Fail("openai", "chat", fmt.Errorf("failed to create chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", providers.Fail("openai", "chat", fmt.Errorf("no choices returned from OpenAI"))
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", providers.Fail("openai", "chat", fmt.Errorf("empty reply from OpenAI"))
	}
	return reply, nil
}
