package session

import (
	"context"
	"log/slog"
	"strings"

	"github.com/moodtales/storyteller/internal/providers"
	"github.com/moodtales/storyteller/internal/source"
)

// FallbackReply stands in for the assistant when the chat gateway fails.
const FallbackReply = "I'm sorry, I couldn't come up with a reply just now. Please try again."

// Speaker is who wrote a conversation entry.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Entry is one line of the conversation log.
type Entry struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Turn is the outcome of one chat send.
type Turn struct {
	Seq     uint64 `json:"seq"`
	Message string `json:"message"`
	Reply   string `json:"reply"`
	// Failed is set when Reply is the fallback text.
	Failed bool `json:"failed"`
}

type pendingTurn struct {
	message  string
	reply    string
	resolved bool
}

// conversation is an append-only log fed by sequence-numbered sends. A turn
// is committed as a user and assistant pair only after every earlier turn
// has been committed.
type conversation struct {
	log     []Entry
	nextSeq uint64
	commit  uint64
	pending map[uint64]*pendingTurn
}

func (c *conversation) reset() {
	c.log = nil
	c.pending = nil
	c.commit = c.nextSeq
}

func (c *conversation) begin(message string) uint64 {
	if c.pending == nil {
		c.pending = make(map[uint64]*pendingTurn)
	}
	seq := c.nextSeq
	c.nextSeq++
	c.pending[seq] = &pendingTurn{message: message}
	return seq
}

// resolve records the reply for seq and commits every turn that is now in
// order. It returns the number of turns committed.
func (c *conversation) resolve(seq uint64, reply string) int {
	if t, ok := c.pending[seq]; ok {
		t.reply = reply
		t.resolved = true
	}

	committed := 0
	for {
		t, ok := c.pending[c.commit]
		if !ok || !t.resolved {
			return committed
		}
		c.log = append(c.log,
			Entry{Speaker: SpeakerUser, Text: t.message},
			Entry{Speaker: SpeakerAssistant, Text: t.reply},
		)
		delete(c.pending, c.commit)
		c.commit++
		committed++
	}
}

// SendChat asks the chat gateway about the story. Replies are committed to
// the log in send order. A gateway failure commits FallbackReply and is not
// returned as an error.
func (s *Session) SendChat(ctx context.Context, chatter providers.Chatter, message string) (Turn, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Turn{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.payload == nil {
		s.mu.Unlock()
		return Turn{}, ErrNoSource
	}
	epoch := s.epoch
	seq := s.conversation.begin(message)
	req := providers.ChatRequest{Message: message}
	if s.result != nil {
		req.Story = s.result.Story
		req.Analysis = s.result.Analysis
	}
	if img, ok := s.payload.(source.Image); ok && s.selector == source.KindImage {
		req.Image = &providers.InlineImage{Data: img.Data, MediaType: img.MediaType}
	}
	ev := s.eventLocked(EventChat, map[string]any{"seq": seq, "pending": true, "message": message})
	s.mu.Unlock()
	s.events.publish(ev)

	turn := Turn{Seq: seq, Message: message}
	reply, err := chatter.Chat(ctx, req)
	if err != nil || strings.TrimSpace(reply) == "" {
		slog.Warn("Chat reply failed, using fallback", "session", s.ID, "seq", seq, "err", err)
		reply = FallbackReply
		turn.Failed = true
	}
	turn.Reply = reply

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		slog.Debug("Discarding stale chat reply", "session", s.ID, "seq", seq)
		return turn, ErrStale
	}
	committed := s.conversation.resolve(seq, reply)
	ev = s.eventLocked(EventChat, map[string]any{"seq": seq, "committed": committed, "entries": len(s.conversation.log)})
	s.mu.Unlock()
	s.events.publish(ev)

	return turn, nil
}
