package session

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"memory-pairs-server/config"
	"memory-pairs-server/game"
	"memory-pairs-server/gameerrors"
)

// reapInterval is how often idle sessions are looked for.
const reapInterval = 30 * time.Second

// Manager owns all live sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	config   *config.Config

	// OnGameEnd is handed to every session created after it is set.
	OnGameEnd func(Result)
}

// NewManager creates a new Manager.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		config:   cfg,
	}
}

// Create starts a new session for a player and returns it running.
// send receives every state message; it may be nil for a headless session.
func (m *Manager) Create(name, userID string, send chan []byte) (*Session, error) {
	s := &Session{
		ID:          uuid.NewString(),
		ResumeToken: uuid.NewString(),
		Name:        name,
		UserID:      userID,
		Actions:     make(chan Action, 16),
		Done:        make(chan struct{}),
		OnGameEnd:   m.OnGameEnd,
		send:        send,
		changed:     make(chan struct{}, 1),
	}
	engine, err := game.NewEngine(game.Options{
		Symbols:     m.config.Symbols,
		RevealDelay: time.Duration(m.config.RevealDurationMS) * time.Millisecond,
		OnChange:    s.signalChanged,
	})
	if err != nil {
		return nil, err
	}
	s.Engine = engine
	s.attached.Store(send != nil)
	s.touch()

	m.mu.Lock()
	m.sessions[s.ID] = s
	total := len(m.sessions)
	m.mu.Unlock()

	slog.Info("session created", "tag", "session", "session", s.ID, "name", name, "total", total)

	go func() {
		s.Run()
		m.forget(s)
	}()
	return s, nil
}

// Resume reattaches a connection to an existing session after validating its token.
func (m *Manager) Resume(id, token string, send chan []byte) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, gameerrors.ErrSessionNotFound
	}
	if subtle.ConstantTimeCompare([]byte(s.ResumeToken), []byte(token)) != 1 {
		return nil, gameerrors.ErrInvalidResumeToken
	}
	if err := s.Post(Action{Type: ActionAttach, Send: send}); err != nil {
		return nil, err
	}
	slog.Info("session resumed", "tag", "session", "session", id)
	return s, nil
}

// Get returns a live session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops a session. It is a no-op for unknown IDs.
func (m *Manager) Close(id string) {
	if s, ok := m.Get(id); ok {
		_ = s.Post(Action{Type: ActionClose})
	}
}

// Run reaps idle detached sessions until ctx is cancelled, then closes all
// remaining sessions. Should be run as a goroutine.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case now := <-ticker.C:
			m.reap(now)
		}
	}
}

// reap closes detached sessions that have been idle longer than the timeout.
func (m *Manager) reap(now time.Time) int {
	timeout := time.Duration(m.config.SessionIdleTimeoutSec) * time.Second
	if timeout <= 0 {
		return 0
	}
	m.mu.Lock()
	var idle []*Session
	for _, s := range m.sessions {
		if !s.Attached() && now.Sub(s.LastActive()) > timeout {
			idle = append(idle, s)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		slog.Info("reaping idle session", "tag", "session", "session", s.ID)
		_ = s.Post(Action{Type: ActionClose})
	}
	return len(idle)
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.Unlock()
	for _, s := range all {
		_ = s.Post(Action{Type: ActionClose})
	}
}

func (m *Manager) forget(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.ID)
	m.mu.Unlock()
}
