package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/moodtales/storyteller/internal/source"
)

var (
	// ErrMalformedResponse is returned when a generation reply is not a JSON
	// object carrying both "analysis" and "story" strings.
	ErrMalformedResponse = errors.New("malformed generation response")

	// ErrUnsupported is returned when a provider lacks a capability
	// (for example narration on a local model).
	ErrUnsupported = errors.New("not supported by provider")
)

// Config represents the configuration for an LLM provider
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
}

// GenerationResult is the mood analysis and story opening for a source.
type GenerationResult struct {
	Analysis string `json:"analysis" yaml:"analysis"`
	Story    string `json:"story" yaml:"story"`
}

// Audio is encoded, playable speech.
type Audio struct {
	Data      []byte
	MediaType string
}

// InlineImage is image content sent alongside a chat message.
type InlineImage struct {
	Data      []byte
	MediaType string
}

// ChatRequest is a single, self-contained chat turn. Continuity comes only
// from the story and analysis; prior turns are not replayed.
type ChatRequest struct {
	Message  string
	Story    string
	Analysis string
	Image    *InlineImage
}

// Generator turns a source payload into an analysis and story opening.
type Generator interface {
	Generate(ctx context.Context, payload source.Payload) (GenerationResult, error)
}

// Narrator synthesizes speech for a story.
type Narrator interface {
	Narrate(ctx context.Context, text string) (*Audio, error)
}

// Chatter answers a message grounded in the story context.
type Chatter interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// Backend bundles the three gateways of one provider.
type Backend struct {
	Name      string
	Model     string
	Generator Generator
	Narrator  Narrator
	Chatter   Chatter
}

// GatewayError wraps a network or provider failure.
type GatewayError struct {
	Provider string
	Op       string
	Err      error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Fail wraps err as a *GatewayError unless it already is one or marks a
// malformed response.
func Fail(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	var ge *GatewayError
	if errors.As(err, &ge) || errors.Is(err, ErrMalformedResponse) {
		return err
	}
	return &GatewayError{Provider: provider, Op: op, Err: err}
}
