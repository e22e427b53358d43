package proctor

import (
	"sync"

	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/telemetry"
)

// Manager owns the live monitors, one per in-progress proctored attempt.
// Sessions are never module-level globals; everything hangs off this object.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Monitor

	sink  telemetry.Sink
	locks LockoutWriter
	opts  []MonitorOpt
}

func NewManager(sink telemetry.Sink, locks LockoutWriter, opts ...MonitorOpt) *Manager {
	return &Manager{
		sessions: map[string]*Monitor{},
		sink:     sink,
		locks:    locks,
		opts:     opts,
	}
}

// Arm replaces any prior monitor for the session id with a fresh one.
func (g *Manager) Arm(sess Session) *Monitor {
	g.mu.Lock()
	defer g.mu.Unlock()
	if old, ok := g.sessions[sess.ID]; ok {
		old.Teardown()
	}
	m := Arm(sess, g.sink, g.locks, g.opts...)
	g.sessions[sess.ID] = m
	return m
}

func (g *Manager) Get(sessionID string) (*Monitor, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.sessions[sessionID]
	return m, ok
}

// Release drops the monitor after teardown so stale ids cannot resolve.
func (g *Manager) Release(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if m, ok := g.sessions[sessionID]; ok {
		m.Teardown()
		delete(g.sessions, sessionID)
	}
}
