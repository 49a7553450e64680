package session

import (
	"time"

	"github.com/moodtales/storyteller/internal/providers"
	"github.com/moodtales/storyteller/internal/source"
)

// SourceInfo describes the active payload without its bytes.
type SourceInfo struct {
	Kind source.Kind `json:"kind"`
	Meta source.Meta `json:"meta"`
	URL  string      `json:"url,omitempty"`
}

// Snapshot is a read-only copy of a session for rendering.
type Snapshot struct {
	ID        string
	CreatedAt time.Time
	Epoch     uint64
	Selector  source.Kind
	Source    *SourceInfo

	GenerationPhase GenerationPhase
	Result          *providers.GenerationResult
	Notice          string

	Narration      NarrationState
	AudioID        string
	AudioMediaType string

	Conversation []Entry
	PendingChats int
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:              s.ID,
		CreatedAt:       s.CreatedAt,
		Epoch:           s.epoch,
		Selector:        s.selector,
		GenerationPhase: s.genPhase,
		Notice:          s.notice,
		Narration:       s.narration,
		Conversation:    append([]Entry(nil), s.conversation.log...),
		PendingChats:    len(s.conversation.pending),
	}
	if s.payload != nil {
		info := sourceInfoOf(s.payload, s.meta)
		snap.Source = &info
	}
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	if s.audio != nil {
		snap.AudioID = s.audio.ID
		snap.AudioMediaType = s.audio.MediaType
	}
	return snap
}

func sourceInfoOf(p source.Payload, meta *source.Meta) SourceInfo {
	info := SourceInfo{Kind: p.Kind()}
	if meta != nil {
		info.Meta = *meta
	}
	if u, ok := p.(source.RemoteURL); ok {
		info.URL = u.URL
	}
	return info
}
