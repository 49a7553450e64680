package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/moodtales/storyteller/internal/providers"
	"github.com/moodtales/storyteller/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response": "```json\n{\"analysis\":\"a misty harbor at dawn\",\"story\":\"The fog rolled in...\"}\n```",
			"done":     true,
		})
	}))
	defer srv.Close()

	o := New(providers.Config{BaseURL: srv.URL + "/", Model: "llava", Temperature: 0.9})
	result, err := o.Generate(context.Background(), source.Image{Data: []byte("png-bytes"), MediaType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, providers.GenerationResult{Analysis: "a misty harbor at dawn", Story: "The fog rolled in..."}, result)

	assert.Equal(t, "llava", got.Model)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
	assert.Equal(t, []string{source.EncodeBase64([]byte("png-bytes"))}, got.Images)
}

func TestGenerateNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(providers.Config{BaseURL: srv.URL}).Generate(context.Background(), source.PlainText{Text: "x"})
	var ge *providers.GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Contains(t, ge.Error(), "404")
}

func TestChat(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "The keeper waits.\n"},
			"done":    true,
		})
	}))
	defer srv.Close()

	reply, err := New(providers.Config{BaseURL: srv.URL, Model: "llava"}).Chat(context.Background(), providers.ChatRequest{
		Message: "Who waits?",
		Story:   "The fog rolled in...",
		Image:   &providers.InlineImage{Data: []byte{1, 2, 3}, MediaType: "image/jpeg"},
	})
	require.NoError(t, err)
	assert.Equal(t, "The keeper waits.", reply)
	require.Len(t, got.Messages, 1)
	assert.Len(t, got.Messages[0].Images, 1)
	assert.Contains(t, got.Messages[0].Content, "Who waits?")
}

func TestUnsupported(t *testing.T) {
	o := New(providers.Config{})
	assert.Equal(t, DefaultURL, o.config.BaseURL)

	_, err := o.Narrate(context.Background(), "story")
	assert.True(t, errors.Is(err, providers.ErrUnsupported))

	_, err = o.Generate(context.Background(), source.Document{Data: []byte("%PDF"), MediaType: "application/pdf"})
	assert.True(t, errors.Is(err, providers.ErrUnsupported))
}
