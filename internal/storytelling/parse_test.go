package storytelling

import (
	"errors"
	"strings"
	"testing"

	"github.com/moodtales/storyteller/internal/providers"
	"github.com/moodtales/storyteller/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResult(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     providers.GenerationResult
		wantErr  bool
	}{
		{
			name:     "plain object",
			response: `{"analysis":"a misty harbor at dawn","story":"The fog rolled in..."}`,
			want:     providers.GenerationResult{Analysis: "a misty harbor at dawn", Story: "The fog rolled in..."},
		},
		{
			name:     "fenced",
			response: "```json\n{\"analysis\":\"quiet\",\"story\":\"Once.\"}\n```",
			want:     providers.GenerationResult{Analysis: "quiet", Story: "Once."},
		},
		{
			name:     "empty strings are present",
			response: `{"analysis":"","story":""}`,
			want:     providers.GenerationResult{},
		},
		{name: "missing story", response: `{"analysis":"calm"}`, wantErr: true},
		{name: "missing analysis", response: `{"story":"calm"}`, wantErr: true},
		{name: "wrong type", response: `{"analysis":"calm","story":42}`, wantErr: true},
		{name: "null story", response: `{"analysis":"calm","story":null}`, wantErr: true},
		{
			name:     "surrounding prose",
			response: "Sure! Here is your story:\n{\"analysis\":\"calm\",\"story\":\"Once.\"}\nHope you like it.",
			wantErr:  true,
		},
		{name: "not json", response: "I cannot help with that.", wantErr: true},
		{name: "empty", response: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResult(tt.response)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, providers.ErrMalformedResponse), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerationPromptEmbedsMaterial(t *testing.T) {
	url := GenerationPrompt(source.RemoteURL{URL: " https://example.com/harbor "})
	assert.Contains(t, url, "URL: https://example.com/harbor")

	text := GenerationPrompt(source.PlainText{Text: "Sheet: Budget\nTotal"})
	assert.True(t, strings.HasSuffix(text, "TEXT:\nSheet: Budget\nTotal"))

	img := GenerationPrompt(source.Image{Data: []byte{1}, MediaType: "image/png"})
	assert.Contains(t, img, "attached image")
	assert.NotContains(t, img, "URL:")

	for _, p := range []string{url, text, img} {
		assert.Contains(t, p, `"analysis"`)
		assert.Contains(t, p, "100 and 150 words")
	}
}

func TestChatPrompt(t *testing.T) {
	p := ChatPrompt("  who is she?  ", "The fog rolled in...", "misty", true)
	assert.Contains(t, p, "STORY:\nThe fog rolled in...")
	assert.Contains(t, p, "MOOD ANALYSIS:\nmisty")
	assert.Contains(t, p, "image that inspired")
	assert.True(t, strings.HasSuffix(p, "READER:\nwho is she?"))

	bare := ChatPrompt("hello", "", "", false)
	assert.NotContains(t, bare, "STORY:")
	assert.NotContains(t, bare, "MOOD ANALYSIS:")
	assert.NotContains(t, bare, "image that inspired")
}
