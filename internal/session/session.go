package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/moodtales/storyteller/internal/providers"
	"github.com/moodtales/storyteller/internal/source"
)

// GenerationPhase tracks the story generation call.
type GenerationPhase string

const (
	GenerationIdle      GenerationPhase = "idle"
	GenerationPending   GenerationPhase = "pending"
	GenerationSucceeded GenerationPhase = "succeeded"
	GenerationFailed    GenerationPhase = "failed"
)

// Session is one user's source, story, narration and conversation. All
// mutations go through its methods; provider calls run without the lock held.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu sync.Mutex

	selector source.Kind
	payload  source.Payload
	meta     *source.Meta

	// epoch advances on every source change so late results can be dropped
	epoch uint64

	genPhase GenerationPhase
	result   *providers.GenerationResult
	notice   string

	narration NarrationState
	audio     *AudioHandle
	// synthesis advances whenever a narration call starts or is invalidated
	synthesis uint64

	conversation conversation

	events *broker
}

// New returns an empty session with the given source type selected.
func New(id string, selector source.Kind) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		selector:  selector,
		genPhase:  GenerationIdle,
		narration: NarrationIdle,
		events:    newBroker(),
	}
}

// SelectType switches the source type and clears everything, even when t is
// already selected.
func (s *Session) SelectType(t source.Kind) error {
	kind, err := source.ParseKind(string(t))
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.selector = kind
	s.clearSourceLocked()
	ev := s.eventLocked(EventReset, map[string]any{"selector": kind})
	s.mu.Unlock()

	s.events.publish(ev)
	return nil
}

// Ingest installs a decoded payload. The payload kind must match the
// selected source type. Derived state is reset.
func (s *Session) Ingest(p source.Payload, meta source.Meta) error {
	if p == nil {
		return fmt.Errorf("ingest: %w", ErrNoSource)
	}

	s.mu.Lock()
	if p.Kind() != s.selector {
		selector := s.selector
		s.mu.Unlock()
		return fmt.Errorf("%w: got %s, selected %s", ErrKindMismatch, p.Kind(), selector)
	}
	s.payload = p
	s.meta = &meta
	s.resetDerivedLocked()
	ev := s.eventLocked(EventSource, sourceInfoOf(p, s.meta))
	s.mu.Unlock()

	slog.Info("Source ingested", "session", s.ID, "kind", p.Kind(), "name", meta.Name, "size", meta.Size)
	s.events.publish(ev)
	return nil
}

// SetURL stores a URL source as typed. It is not validated here.
func (s *Session) SetURL(raw string) error {
	s.mu.Lock()
	if s.selector != source.KindURL {
		selector := s.selector
		s.mu.Unlock()
		return fmt.Errorf("%w: url requires the url source type, selected %s", ErrKindMismatch, selector)
	}

	p := source.RemoteURL{URL: raw}
	s.payload = p
	s.meta = &source.Meta{Name: raw, Size: len(raw)}
	s.resetDerivedLocked()
	ev := s.eventLocked(EventSource, sourceInfoOf(p, s.meta))
	s.mu.Unlock()

	s.events.publish(ev)
	return nil
}

// Reset clears the source and everything derived from it. The selector is
// kept.
func (s *Session) Reset() {
	s.mu.Lock()
	s.clearSourceLocked()
	ev := s.eventLocked(EventReset, map[string]any{"selector": s.selector})
	s.mu.Unlock()

	s.events.publish(ev)
}

// Generate runs the generation gateway against the current payload. On
// failure the previous result is left untouched.
func (s *Session) Generate(ctx context.Context, gen providers.Generator) (providers.GenerationResult, error) {
	s.mu.Lock()
	if s.payload == nil {
		s.mu.Unlock()
		return providers.GenerationResult{}, ErrNoSource
	}
	if s.genPhase == GenerationPending {
		s.mu.Unlock()
		return providers.GenerationResult{}, fmt.Errorf("generation: %w", ErrBusy)
	}
	epoch := s.epoch
	payload := s.payload
	s.genPhase = GenerationPending
	s.notice = ""
	ev := s.eventLocked(EventGeneration, map[string]any{"phase": GenerationPending})
	s.mu.Unlock()
	s.events.publish(ev)

	start := time.Now()
	result, err := gen.Generate(ctx, payload)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		slog.Debug("Discarding stale generation result", "session", s.ID, "epoch", epoch)
		return providers.GenerationResult{}, ErrStale
	}
	if err != nil {
		s.genPhase = GenerationFailed
		s.notice = noticeFor(err)
		ev = s.eventLocked(EventGeneration, map[string]any{"phase": GenerationFailed, "notice": s.notice})
		s.mu.Unlock()

		slog.Error("Story generation failed", "session", s.ID, "kind", payload.Kind(), "err", err)
		s.events.publish(ev)
		return providers.GenerationResult{}, err
	}

	s.result = &result
	s.genPhase = GenerationSucceeded
	// a new story invalidates any narration of the old one
	s.narration = NarrationIdle
	s.audio = nil
	s.synthesis++
	ev = s.eventLocked(EventGeneration, map[string]any{"phase": GenerationSucceeded, "result": result})
	s.mu.Unlock()

	slog.Info("Generated story", "session", s.ID, "kind", payload.Kind(), "length", len(result.Story), "duration", time.Since(start))
	s.events.publish(ev)
	return result, nil
}

// Subscribe returns a channel of session events and a function that
// unsubscribes and closes it.
func (s *Session) Subscribe() (<-chan Event, func()) {
	return s.events.subscribe()
}

// Close ends all event subscriptions.
func (s *Session) Close() {
	s.events.close()
}

// Payload returns the active payload, or nil.
func (s *Session) Payload() source.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payload
}

func (s *Session) clearSourceLocked() {
	s.payload = nil
	s.meta = nil
	s.resetDerivedLocked()
}

func (s *Session) resetDerivedLocked() {
	s.epoch++
	s.genPhase = GenerationIdle
	s.result = nil
	s.notice = ""
	s.narration = NarrationIdle
	s.audio = nil
	s.synthesis++
	s.conversation.reset()
}

func (s *Session) eventLocked(t EventType, data any) Event {
	return Event{Type: t, SessionID: s.ID, Epoch: s.epoch, Time: time.Now(), Data: data}
}

func noticeFor(err error) string {
	switch {
	case errors.Is(err, providers.ErrMalformedResponse):
		return "The storyteller replied in an unexpected format. Please try again."
	case errors.Is(err, providers.ErrUnsupported):
		return "This provider cannot read that kind of source."
	default:
		return "The storyteller is unavailable right now. Please try again."
	}
}
