package models

import (
	"time"

	"github.com/moodtales/storyteller/internal/providers"
	"github.com/moodtales/storyteller/internal/session"
	"github.com/moodtales/storyteller/internal/source"
)

// StorySession is the JSON view of a session
type StorySession struct {
	ID           string              `json:"id"`
	CreatedAt    time.Time           `json:"created_at"`
	Epoch        uint64              `json:"epoch"`
	Type         source.Kind         `json:"type"`
	Source       *session.SourceInfo `json:"source,omitempty"`
	Generation   Generation          `json:"generation"`
	Narration    Narration           `json:"narration"`
	Conversation []session.Entry     `json:"conversation"`
	PendingChats int                 `json:"pending_chats"`
}

// Generation is the story generation phase and its latest result
type Generation struct {
	Phase    session.GenerationPhase `json:"phase"`
	Analysis string                  `json:"analysis,omitempty"`
	Story    string                  `json:"story,omitempty"`
	Notice   string                  `json:"notice,omitempty"`
}

// Narration is the playback state. AudioURL is set once audio is cached.
type Narration struct {
	State     session.NarrationState `json:"state"`
	AudioID   string                 `json:"audio_id,omitempty"`
	AudioURL  string                 `json:"audio_url,omitempty"`
	MediaType string                 `json:"media_type,omitempty"`
}

// SessionSummary is a list entry
type SessionSummary struct {
	ID        string      `json:"id"`
	CreatedAt time.Time   `json:"created_at"`
	Type      source.Kind `json:"type"`
	Source    string      `json:"source,omitempty"`
	HasStory  bool        `json:"has_story"`
}

// ChatResponse is returned after a chat send
type ChatResponse struct {
	Turn         session.Turn    `json:"turn"`
	Conversation []session.Entry `json:"conversation"`
}

// GenerateResponse is returned after a generation
type GenerateResponse struct {
	Result  providers.GenerationResult `json:"result"`
	Session StorySession               `json:"session"`
}

// FromSnapshot converts a session snapshot to its JSON view.
func FromSnapshot(snap session.Snapshot) StorySession {
	out := StorySession{
		ID:           snap.ID,
		CreatedAt:    snap.CreatedAt,
		Epoch:        snap.Epoch,
		Type:         snap.Selector,
		Source:       snap.Source,
		Generation:   Generation{Phase: snap.GenerationPhase, Notice: snap.Notice},
		Narration:    Narration{State: snap.Narration},
		Conversation: snap.Conversation,
		PendingChats: snap.PendingChats,
	}
	if out.Conversation == nil {
		out.Conversation = []session.Entry{}
	}
	if snap.Result != nil {
		out.Generation.Analysis = snap.Result.Analysis
		out.Generation.Story = snap.Result.Story
	}
	if snap.AudioID != "" {
		out.Narration.AudioID = snap.AudioID
		out.Narration.AudioURL = "/api/sessions/" + snap.ID + "/audio"
		out.Narration.MediaType = snap.AudioMediaType
	}
	return out
}

// Summarize converts a snapshot to a list entry.
func Summarize(snap session.Snapshot) SessionSummary {
	out := SessionSummary{
		ID:        snap.ID,
		CreatedAt: snap.CreatedAt,
		Type:      snap.Selector,
		HasStory:  snap.Result != nil,
	}
	if snap.Source != nil {
		out.Source = snap.Source.Meta.Name
	}
	return out
}
