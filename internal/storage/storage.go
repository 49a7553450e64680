package storage

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/moodtales/storyteller/internal/session"
	"github.com/moodtales/storyteller/internal/source"
)

// SessionStore holds live sessions in memory. The least recently used
// session is evicted when the store is full, and sessions idle for longer
// than the timeout expire.
type SessionStore struct {
	sessions *expirable.LRU[string, *session.Session]
}

func New(maxSessions int, idleTimeout time.Duration) *SessionStore {
	onEvict := func(_ string, s *session.Session) {
		s.Close()
	}
	return &SessionStore{
		sessions: expirable.NewLRU[string, *session.Session](maxSessions, onEvict, idleTimeout),
	}
}

// Create starts a session with the given source type selected.
func (s *SessionStore) Create(selector source.Kind) *session.Session {
	sess := session.New(uuid.NewString(), selector)
	s.sessions.Add(sess.ID, sess)
	return sess
}

// Get returns a session and extends its idle timeout.
func (s *SessionStore) Get(sessionID string) (*session.Session, bool) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, false
	}
	s.sessions.Add(sessionID, sess)
	return sess, true
}

// List returns live sessions, oldest first.
func (s *SessionStore) List() []*session.Session {
	list := s.sessions.Values()
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

func (s *SessionStore) Delete(sessionID string) bool {
	return s.sessions.Remove(sessionID)
}

func (s *SessionStore) Len() int {
	return s.sessions.Len()
}
