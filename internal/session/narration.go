package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/moodtales/storyteller/internal/providers"
)

// NarrationState is the playback state of the story audio.
type NarrationState string

const (
	NarrationIdle         NarrationState = "idle"
	NarrationSynthesizing NarrationState = "synthesizing"
	NarrationReady        NarrationState = "ready"
	NarrationPlaying      NarrationState = "playing"
	NarrationPaused       NarrationState = "paused"
)

// AudioHandle is synthesized speech for one story text.
type AudioHandle struct {
	ID        string
	Data      []byte
	MediaType string
	Digest    string
}

func storyDigest(story string) string {
	sum := sha256.Sum256([]byte(story))
	return hex.EncodeToString(sum[:])
}

// ToggleNarration plays, pauses or resumes narration. Audio is synthesized
// once per story and reused after that. A failed synthesis leaves the
// session idle and returns the error.
func (s *Session) ToggleNarration(ctx context.Context, narrator providers.Narrator) (NarrationState, error) {
	s.mu.Lock()
	if s.result == nil || strings.TrimSpace(s.result.Story) == "" {
		state := s.narration
		s.mu.Unlock()
		return state, ErrNoStory
	}

	story := s.result.Story
	digest := storyDigest(story)

	switch s.narration {
	case NarrationSynthesizing:
		s.mu.Unlock()
		return NarrationSynthesizing, fmt.Errorf("narration: %w", ErrBusy)
	case NarrationPlaying:
		return s.setNarrationLocked(NarrationPaused), nil
	case NarrationReady, NarrationPaused:
		if s.audio != nil && s.audio.Digest == digest {
			return s.setNarrationLocked(NarrationPlaying), nil
		}
	}

	s.synthesis++
	token := s.synthesis
	s.narration = NarrationSynthesizing
	s.audio = nil
	ev := s.eventLocked(EventNarration, map[string]any{"state": NarrationSynthesizing})
	s.mu.Unlock()
	s.events.publish(ev)

	audio, err := narrator.Narrate(ctx, story)
	if err == nil && (audio == nil || len(audio.Data) == 0) {
		err = errors.New("narration returned no audio")
	}

	s.mu.Lock()
	if !s.synthesisCurrentLocked(token, digest) {
		state := s.narration
		s.mu.Unlock()
		slog.Debug("Discarding stale narration", "session", s.ID, "synthesis", token)
		return state, ErrStale
	}
	if err != nil {
		state := s.setNarrationLocked(NarrationIdle)
		slog.Warn("Narration failed", "session", s.ID, "err", err)
		return state, err
	}

	s.audio = &AudioHandle{
		ID:        uuid.NewString(),
		Data:      audio.Data,
		MediaType: audio.MediaType,
		Digest:    digest,
	}
	slog.Info("Narration ready", "session", s.ID, "audio", s.audio.ID, "bytes", len(audio.Data), "media_type", audio.MediaType)
	return s.setNarrationLocked(NarrationPlaying), nil
}

// synthesisCurrentLocked reports whether the synthesis started with token is
// still the one the session waits for, and the story it read is still shown.
func (s *Session) synthesisCurrentLocked(token uint64, digest string) bool {
	return s.synthesis == token &&
		s.narration == NarrationSynthesizing &&
		s.result != nil &&
		storyDigest(s.result.Story) == digest
}

// StopNarration ends playback. Cached audio stays available.
func (s *Session) StopNarration() NarrationState {
	s.mu.Lock()
	switch s.narration {
	case NarrationPlaying, NarrationPaused:
		return s.setNarrationLocked(NarrationReady)
	}
	state := s.narration
	s.mu.Unlock()
	return state
}

// Audio returns the cached narration, if any.
func (s *Session) Audio() (*AudioHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audio == nil {
		return nil, false
	}
	h := *s.audio
	return &h, true
}

// setNarrationLocked sets the state, releases the lock and publishes.
func (s *Session) setNarrationLocked(state NarrationState) NarrationState {
	s.narration = state
	data := map[string]any{"state": state}
	if s.audio != nil {
		data["audio_id"] = s.audio.ID
	}
	ev := s.eventLocked(EventNarration, data)
	s.mu.Unlock()
	s.events.publish(ev)
	return state
}
