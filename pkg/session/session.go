package session

import (
	"sync"
	"time"

	"github.com/go-go-golems/moviechat/pkg/turns"
)

// Session is one visitor's conversation. The history is append-only; a chat
// pass holds the pass lock for its whole duration so two messages from the
// same visitor never interleave.
type Session struct {
	ID string

	pass sync.Mutex

	mu           sync.RWMutex
	history      []turns.Turn
	lastActivity time.Time
	busy         bool
}

func newSession(id string, greeting string) *Session {
	s := &Session{ID: id, lastActivity: time.Now()}
	if greeting != "" {
		s.history = append(s.history, turns.NewModelText(greeting))
	}
	return s
}

// Lock starts a chat pass. It blocks while another pass on the same session
// is running.
func (s *Session) Lock() {
	s.pass.Lock()
	s.mu.Lock()
	s.busy = true
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) Unlock() {
	s.mu.Lock()
	s.busy = false
	s.lastActivity = time.Now()
	s.mu.Unlock()
	s.pass.Unlock()
}

// Append adds turns to the end of the history.
func (s *Session) Append(ts ...turns.Turn) {
	if len(ts) == 0 {
		return
	}
	s.mu.Lock()
	s.history = append(s.history, ts...)
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// History returns a copy of the full history, tool turns included.
func (s *Session) History() []turns.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]turns.Turn, len(s.history))
	copy(ret, s.history)
	return ret
}

// Visible returns the user and model text turns only.
func (s *Session) Visible() []turns.Turn {
	return turns.Visible(s.History())
}

func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

func (s *Session) isBusy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}
