package proctor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/course"
	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/telemetry"
)

type fakeLocks struct {
	mu    sync.Mutex
	calls []lockCall
}

type lockCall struct {
	studentID, courseID, moduleID string
	until                         time.Time
}

func (f *fakeLocks) SetLockout(_ context.Context, studentID, courseID, moduleID string, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, lockCall{studentID, courseID, moduleID, until})
	return nil
}

type captureSink struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (c *captureSink) Emit(ev telemetry.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureSink) kinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Kind
	}
	return out
}

func testSession(mt course.ModuleType) Session {
	return Session{
		ID:         "attempt-1",
		StudentID:  "s1",
		CourseID:   "c1",
		ModuleID:   "m1",
		ModuleType: mt,
	}
}

func violation(id string, t EventType) Event {
	return Event{ID: id, Type: t, At: time.Now()}
}

func TestLockoutDuration(t *testing.T) {
	assert.Equal(t, 3*time.Hour, LockoutDuration(course.TypeFinalAssessment))
	assert.Equal(t, time.Hour, LockoutDuration(course.TypeQuiz))
	assert.Equal(t, time.Hour, LockoutDuration(course.ModuleType("whatever")))
}

func TestViolationsIncrementAndWarn(t *testing.T) {
	m := Arm(testSession(course.TypeQuiz), nil, &fakeLocks{})

	t1 := m.Observe(context.Background(), violation("e1", EventTabHidden))
	assert.Equal(t, StateWarning, t1.State)
	assert.Equal(t, 1, t1.Violations)
	assert.Equal(t, 2, t1.WarningsLeft)
	assert.Equal(t, "2 warnings remaining", t1.Message)

	t2 := m.Observe(context.Background(), violation("e2", EventWindowBlur))
	assert.Equal(t, 2, t2.Violations)
	assert.Equal(t, "1 warnings remaining", t2.Message)

	t3 := m.Observe(context.Background(), violation("e3", EventFullscreenExit))
	assert.Equal(t, StateWarning, t3.State)
	assert.Equal(t, 0, t3.WarningsLeft, "third violation is the final warning")
}

func TestLockoutFiresExactlyOnce(t *testing.T) {
	locks := &fakeLocks{}
	hooks := 0
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m := Arm(testSession(course.TypeFinalAssessment), nil, locks,
		WithClock(func() time.Time { return now }),
		WithLockHook(func(Session, time.Time) { hooks++ }))

	for i := 0; i < 3; i++ {
		m.Observe(context.Background(), violation("w", EventTabHidden))
	}
	t4 := m.Observe(context.Background(), violation("e4", EventTabHidden))
	assert.Equal(t, StateLocked, t4.State)
	assert.True(t, t4.JustLocked)
	require.NotNil(t, t4.LockedUntil)
	assert.Equal(t, now.Add(3*time.Hour), *t4.LockedUntil)

	// Further signals against the locked session change nothing.
	t5 := m.Observe(context.Background(), violation("e5", EventFaceAbsent))
	assert.Equal(t, StateLocked, t5.State)
	assert.False(t, t5.JustLocked)
	assert.Equal(t, 4, t5.Violations)

	assert.Equal(t, 1, hooks)
	require.Len(t, locks.calls, 1)
	assert.Equal(t, "s1", locks.calls[0].studentID)
	assert.Equal(t, now.Add(3*time.Hour), locks.calls[0].until)
}

// Four rapid tab switches during a final assessment: the third produces the
// final warning, the fourth a 3-hour lockout.
func TestRapidTabSwitchScenario(t *testing.T) {
	locks := &fakeLocks{}
	sink := &captureSink{}
	start := time.Now()
	m := Arm(testSession(course.TypeFinalAssessment), sink, locks)

	var last Transition
	for i := 0; i < 4; i++ {
		last = m.Observe(context.Background(), violation("", EventTabHidden))
	}
	assert.Equal(t, StateLocked, last.State)
	require.NotNil(t, last.LockedUntil)
	assert.True(t, last.LockedUntil.After(start), "lockout is strictly in the future")
	remaining := time.Until(*last.LockedUntil)
	assert.InDelta(t, (3 * time.Hour).Seconds(), remaining.Seconds(), 5)

	kinds := sink.kinds()
	assert.Equal(t, []string{"violation", "violation", "violation", "violation", "lockout"}, kinds)
}

func TestLockoutUntilStrictlyFuture(t *testing.T) {
	locks := &fakeLocks{}
	m := Arm(testSession(course.TypeQuiz), nil, locks)
	before := time.Now()
	for i := 0; i < 4; i++ {
		m.Observe(context.Background(), violation("", EventWindowBlur))
	}
	require.Len(t, locks.calls, 1)
	assert.True(t, locks.calls[0].until.After(before))
}

func TestObserveConcurrentSourcesNoDoubleCount(t *testing.T) {
	m := Arm(testSession(course.TypeQuiz), nil, &fakeLocks{})
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Observe(context.Background(), violation("", EventTabHidden))
		}()
	}
	wg.Wait()
	snap := m.Snapshot()
	assert.Equal(t, StateLocked, snap.State)
	assert.Equal(t, 4, snap.Violations, "counting stops once locked")
}

func TestSubmitDetachesSession(t *testing.T) {
	m := Arm(testSession(course.TypeQuiz), nil, &fakeLocks{})
	m.Observe(context.Background(), violation("", EventTabHidden))
	m.Submit()

	snap := m.Snapshot()
	assert.Equal(t, StateInactive, snap.State)

	after := m.Observe(context.Background(), violation("", EventTabHidden))
	assert.Equal(t, 1, after.Violations, "detached session accepts no events")
}

func TestTeardownStopsStaleEvents(t *testing.T) {
	m := Arm(testSession(course.TypeQuiz), nil, &fakeLocks{})
	m.Teardown()
	after := m.Observe(context.Background(), violation("", EventFaceAbsent))
	assert.Equal(t, StateInactive, after.State)
	assert.Equal(t, 0, after.Violations)
}

func TestNonQualifyingEventsIgnored(t *testing.T) {
	m := Arm(testSession(course.TypeQuiz), nil, &fakeLocks{})
	after := m.Observe(context.Background(), violation("", EventType("mouse_moved")))
	assert.Equal(t, 0, after.Violations)
	assert.Equal(t, StateArmed, after.State)
}

func TestManagerArmResetsViolationCount(t *testing.T) {
	mgr := NewManager(nil, &fakeLocks{})
	m1 := mgr.Arm(testSession(course.TypeQuiz))
	m1.Observe(context.Background(), violation("", EventTabHidden))
	assert.Equal(t, 1, m1.Snapshot().Violations)

	// Re-arming the same session id starts from zero.
	m2 := mgr.Arm(testSession(course.TypeQuiz))
	assert.Equal(t, 0, m2.Snapshot().Violations)

	// The replaced monitor is detached.
	stale := m1.Observe(context.Background(), violation("", EventTabHidden))
	assert.Equal(t, 1, stale.Violations)
}

func TestManagerRelease(t *testing.T) {
	mgr := NewManager(nil, &fakeLocks{})
	mgr.Arm(testSession(course.TypeQuiz))
	mgr.Release("attempt-1")
	_, ok := mgr.Get("attempt-1")
	assert.False(t, ok)
}
