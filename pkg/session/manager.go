package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	minSweepInterval = time.Second
	maxSweepInterval = time.Minute
)

// Manager owns all live sessions, keyed by ID.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	greeting string
	idle     time.Duration
	onEvict  func(*Session)
}

type Option func(*Manager)

// WithIdleTimeout makes Run drop sessions untouched for idle. Zero keeps
// sessions forever.
func WithIdleTimeout(idle time.Duration) Option {
	return func(m *Manager) {
		if idle > 0 {
			m.idle = idle
		}
	}
}

// NewManager creates a manager. Every new session starts with greeting as
// its first model turn; an empty greeting starts sessions empty.
func NewManager(greeting string, opts ...Option) *Manager {
	m := &Manager{
		sessions: map[string]*Session{},
		greeting: greeting,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// GetOrCreate returns the session for id, creating it when unknown. An empty
// id is replaced by a fresh one. The bool reports whether it was created.
func (m *Manager) GetOrCreate(id string) (*Session, bool) {
	if id == "" {
		id = NewID()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.Touch()
		return s, false
	}
	s := newSession(id, m.greeting)
	m.sessions[id] = s
	log.Debug().Str("component", "session").Str("session_id", id).Msg("session created")
	return s, true
}

// Get returns the session for id without creating it.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// OnEvict registers a callback run after Run drops a session.
func (m *Manager) OnEvict(fn func(*Session)) {
	m.mu.Lock()
	m.onEvict = fn
	m.mu.Unlock()
}

// SweepInterval is how often Run looks for idle sessions: a quarter of the
// idle timeout, kept between one second and one minute.
func (m *Manager) SweepInterval() time.Duration {
	interval := m.idle / 4
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	if interval > maxSweepInterval {
		interval = maxSweepInterval
	}
	return interval
}

// Run drops idle sessions until ctx is done. It returns at once when no idle
// timeout is configured.
func (m *Manager) Run(ctx context.Context) {
	if m.idle <= 0 {
		return
	}
	ticker := time.NewTicker(m.SweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.sweep(now); n > 0 {
				log.Info().Str("component", "session").Int("evicted", n).Int("remaining", m.Len()).Msg("dropped idle sessions")
			}
		}
	}
}

// sweep removes sessions idle at now, leaving sessions in a pass alone.
func (m *Manager) sweep(now time.Time) int {
	if m.idle <= 0 {
		return 0
	}
	var dropped []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.isBusy() || now.Sub(s.LastActivity()) < m.idle {
			continue
		}
		delete(m.sessions, id)
		dropped = append(dropped, s)
	}
	onEvict := m.onEvict
	m.mu.Unlock()

	if onEvict != nil {
		for _, s := range dropped {
			onEvict(s)
		}
	}
	return len(dropped)
}
