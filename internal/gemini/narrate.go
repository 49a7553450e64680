package gemini

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"

	"github.com/moodtales/storyteller/internal/providers"
	"github.com/moodtales/storyteller/internal/storytelling"
	"google.golang.org/genai"
)

// Speech models return raw 16-bit little-endian mono PCM at 24 kHz.
const (
	pcmSampleRate    = 24000
	pcmChannels      = 1
	pcmBitsPerSample = 16
)

// Narrate synthesizes the story with the configured prebuilt voice and
// returns it as a WAV file.
func (g *Gemini) Narrate(ctx context.Context, text string) (*providers.Audio, error) {
	if err := g.checkKey(); err != nil {
		return nil, providers.Fail("gemini", "narrate", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("nothing to narrate")
	}

	client, err := g.client(ctx)
	if err != nil {
		return nil, providers.Fail("gemini", "narrate", err)
	}

	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: storytelling.NarrationPrompt(text)}},
	}}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.voice},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, g.ttsModel, contents, config)
	if err != nil {
		return nil, providers.Fail("gemini", "narrate", fmt.Errorf("failed to synthesize speech: %w", err))
	}

	parts, err := firstCandidateParts(resp)
	if err != nil {
		return nil, providers.Fail("gemini", "narrate", err)
	}

	var pcm []byte
	for _, p := range parts {
		if p != nil && p.InlineData != nil {
			pcm = append(pcm, p.InlineData.Data...)
		}
	}
	if len(pcm) == 0 {
		return nil, providers.Fail("gemini", "narrate", fmt.Errorf("no audio returned from Gemini"))
	}

	slog.Debug("Gemini narration response", "model", g.ttsModel, "voice", g.voice, "pcm_bytes", len(pcm))
	return &providers.Audio{Data: WAV(pcm, pcmSampleRate, pcmChannels, pcmBitsPerSample), MediaType: "audio/wav"}, nil
}

// WAV wraps little-endian PCM samples in a RIFF/WAVE container.
func WAV(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
