package conversion

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/amirasaad/fxdate/pkg/preferences"
	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("conversion session not found")

// Limits bounds the sessions a Manager keeps. Zero values disable a limit.
type Limits struct {
	// MaxSessions evicts the least recently used session when exceeded.
	MaxSessions int
	// IdleTimeout evicts sessions not used for this long.
	IdleTimeout time.Duration
}

type managedSession struct {
	session  *Session
	lastUsed time.Time
}

// Manager owns the live sessions of a host process.
type Manager struct {
	rates  RateSource
	prefs  preferences.Store
	limits Limits
	opts   []Option
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*managedSession
}

// NewManager creates a manager whose sessions share rates, prefs and opts.
func NewManager(rates RateSource, prefs preferences.Store, limits Limits, opts ...Option) *Manager {
	return &Manager{
		rates:    rates,
		prefs:    prefs,
		limits:   limits,
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*managedSession),
	}
}

// Create starts a new session with a random id. Idle sessions are swept
// first and the least recently used one is evicted when the manager is
// full.
func (m *Manager) Create(ctx context.Context) (*Session, *Pending) {
	s := NewSession(uuid.NewString(), m.rates, m.prefs, m.opts...)

	m.mu.Lock()
	now := m.now()
	evicted := m.sweepLocked(now)
	if m.limits.MaxSessions > 0 {
		for len(m.sessions) >= m.limits.MaxSessions {
			evicted = append(evicted, m.evictOldestLocked())
		}
	}
	m.sessions[s.ID()] = &managedSession{session: s, lastUsed: now}
	m.mu.Unlock()

	closeAll(evicted)
	return s, s.Start(ctx)
}

// Get returns the session with id and marks it used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.lastUsed = m.now()
	return e.session, nil
}

// Delete closes and forgets a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	e.session.Close()
	return nil
}

// Sweep closes sessions idle for longer than the idle timeout and returns
// how many were removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	evicted := m.sweepLocked(m.now())
	m.mu.Unlock()
	closeAll(evicted)
	return len(evicted)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) sweepLocked(now time.Time) []*Session {
	if m.limits.IdleTimeout <= 0 {
		return nil
	}
	var evicted []*Session
	for id, e := range m.sessions {
		if now.Sub(e.lastUsed) > m.limits.IdleTimeout {
			delete(m.sessions, id)
			evicted = append(evicted, e.session)
		}
	}
	return evicted
}

func (m *Manager) evictOldestLocked() *Session {
	var oldestID string
	var oldest *managedSession
	for id, e := range m.sessions {
		if oldest == nil || e.lastUsed.Before(oldest.lastUsed) {
			oldestID, oldest = id, e
		}
	}
	delete(m.sessions, oldestID)
	return oldest.session
}

func closeAll(sessions []*Session) {
	for _, s := range sessions {
		s.Close()
	}
}
