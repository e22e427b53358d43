package proctor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/course"
	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/telemetry"
)

// MaxWarnings is how many violations a learner gets before lockout.
const MaxWarnings = 3

type State int

const (
	StateInactive State = iota
	StateArmed
	StateWarning
	StateLocked
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateWarning:
		return "warning"
	case StateLocked:
		return "locked"
	case StateSubmitted:
		return "submitted"
	default:
		return "inactive"
	}
}

type EventType string

const (
	EventTabHidden      EventType = "tab_hidden"
	EventWindowBlur     EventType = "window_blur"
	EventFullscreenExit EventType = "fullscreen_exit"
	EventFaceAbsent     EventType = "face_absent"
)

// Event is one integrity signal from the learner's environment. Signals are
// state-machine input, not errors.
type Event struct {
	ID      string    `json:"event_id"`
	Type    EventType `json:"event_type"`
	Details string    `json:"details,omitempty"`
	At      time.Time `json:"timestamp"`
}

func qualifying(t EventType) bool {
	switch t {
	case EventTabHidden, EventWindowBlur, EventFullscreenExit, EventFaceAbsent:
		return true
	}
	return false
}

// Session identifies one proctored attempt. The session id IS the attempt id.
type Session struct {
	ID         string
	StudentID  string
	CourseID   string
	ModuleID   string
	ModuleType course.ModuleType
}

// Transition is the reducer's answer to an inbound event.
type Transition struct {
	State        State
	Violations   int
	WarningsLeft int
	Message      string
	LockedUntil  *time.Time
	JustLocked   bool
}

// LockoutWriter persists the penalty window on the learner's progress record.
type LockoutWriter interface {
	SetLockout(ctx context.Context, studentID, courseID, moduleID string, until time.Time) error
}

// Monitor is the per-session reducer. The originating browser callbacks are
// asynchronous and independently registered; the mutex makes every transition
// strictly sequential so concurrent signal sources cannot double-count.
type Monitor struct {
	mu sync.Mutex

	sess        Session
	state       State
	violations  int
	lockedUntil *time.Time
	detached    bool

	now    func() time.Time
	sink   telemetry.Sink
	locks  LockoutWriter
	onLock func(sess Session, until time.Time)
}

type MonitorOpt func(*Monitor)

func WithClock(now func() time.Time) MonitorOpt { return func(m *Monitor) { m.now = now } }

// WithLockHook runs after a lockout commits; used to abort the in-progress
// attempt and clear session UI state.
func WithLockHook(fn func(sess Session, until time.Time)) MonitorOpt {
	return func(m *Monitor) { m.onLock = fn }
}

// Arm creates a fresh monitor for the session with violationCount zero. This
// is the only way the count ever resets.
func Arm(sess Session, sink telemetry.Sink, locks LockoutWriter, opts ...MonitorOpt) *Monitor {
	m := &Monitor{
		sess:  sess,
		state: StateArmed,
		now:   time.Now,
		sink:  sink,
		locks: locks,
	}
	if m.sink == nil {
		m.sink = telemetry.NopSink{}
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Observe feeds one event through the reducer and returns the resulting
// transition. Events against a detached or already locked session are no-ops;
// the lockout fires exactly once.
func (m *Monitor) Observe(ctx context.Context, ev Event) Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.detached || (m.state != StateArmed && m.state != StateWarning) || !qualifying(ev.Type) {
		return m.transitionLocked()
	}

	m.violations++
	m.emitViolation(ev)

	if m.violations <= MaxWarnings {
		m.state = StateWarning
		t := m.transitionLocked()
		t.Message = fmt.Sprintf("%d warnings remaining", t.WarningsLeft)
		return t
	}

	// Threshold breached: lock exactly once.
	until := m.now().Add(LockoutDuration(m.sess.ModuleType))
	m.state = StateLocked
	m.lockedUntil = &until
	if m.locks != nil {
		if err := m.locks.SetLockout(ctx, m.sess.StudentID, m.sess.CourseID, m.sess.ModuleID, until); err != nil {
			// The lockout stands locally even if the write fails; the next
			// reconcile cycle picks it up.
			log.Printf("proctor: persist lockout for %s: %v", m.sess.ID, err)
		}
	}
	lv := telemetry.NewEvent(telemetry.KindLockout, m.sess.StudentID, m.sess.CourseID, m.sess.ModuleID)
	lv.AttemptID = m.sess.ID
	lv.Details = map[string]any{"locked_until": until.Unix(), "violations": m.violations}
	m.sink.Emit(lv)
	if m.onLock != nil {
		m.onLock(m.sess, until)
	}
	m.detached = true

	t := m.transitionLocked()
	t.Message = fmt.Sprintf("assessment locked until %s", until.Format(time.RFC3339))
	t.JustLocked = true
	return t
}

// Submit tears the session down after a successful submission.
func (m *Monitor) Submit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.detached {
		return
	}
	m.state = StateSubmitted
	ev := telemetry.NewEvent(telemetry.KindSubmit, m.sess.StudentID, m.sess.CourseID, m.sess.ModuleID)
	ev.AttemptID = m.sess.ID
	m.sink.Emit(ev)
	m.state = StateInactive
	m.detached = true
}

// Teardown detaches the session on navigation away; a stale session cannot
// mutate a dead state object afterwards.
func (m *Monitor) Teardown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.detached {
		return
	}
	m.state = StateInactive
	m.detached = true
}

// Session returns the identity this monitor was armed with.
func (m *Monitor) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess
}

func (m *Monitor) Snapshot() Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked()
}

// transitionLocked builds a Transition from current state; callers hold mu.
func (m *Monitor) transitionLocked() Transition {
	left := MaxWarnings - m.violations
	if left < 0 {
		left = 0
	}
	return Transition{
		State:        m.state,
		Violations:   m.violations,
		WarningsLeft: left,
		LockedUntil:  m.lockedUntil,
	}
}

func (m *Monitor) emitViolation(ev Event) {
	tv := telemetry.NewEvent(telemetry.KindViolation, m.sess.StudentID, m.sess.CourseID, m.sess.ModuleID)
	if ev.ID != "" {
		tv.ID = ev.ID
	}
	tv.AttemptID = m.sess.ID
	tv.Details = map[string]any{"event_type": string(ev.Type), "details": ev.Details, "count": m.violations}
	m.sink.Emit(tv)
}
