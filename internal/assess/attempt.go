package assess

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrAttemptSubmitted = errors.New("attempt already submitted")
)

const (
	StatusInProgress = "in_progress"
	StatusSubmitted  = "submitted"
	StatusAborted    = "aborted" // integrity lockout or timeout teardown
)

// DefaultTimeLimit bounds an attempt's wall clock; at zero the attempt is
// force-submitted with whatever answers exist.
const DefaultTimeLimit = 10 * time.Minute

type Attempt struct {
	ID          string         `json:"id"`
	ModuleID    string         `json:"module_id"`
	CourseID    string         `json:"course_id"`
	StudentID   string         `json:"student_id"`
	Status      string         `json:"status"`
	Score       int            `json:"score"`
	Passed      bool           `json:"passed"`
	Answers     map[string]int `json:"answers"`
	StartedAt   time.Time      `json:"started_at"`
	Deadline    time.Time      `json:"deadline"`
	SubmittedAt *time.Time     `json:"submitted_at,omitempty"`
}

type AttemptStore interface {
	Create(ctx context.Context, a Attempt) error
	Get(ctx context.Context, id string) (Attempt, error)
	SaveAnswers(ctx context.Context, id string, answers map[string]int) (Attempt, error)
	Finish(ctx context.Context, id string, status string, score int, passed bool) (Attempt, error)
}

// Countdown runs per-attempt wall-clock timers. The expiry callback fires at
// most once per attempt; Stop wins if it races the timer.
type Countdown struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewCountdown() *Countdown {
	return &Countdown{timers: map[string]*time.Timer{}}
}

// Start schedules expire(attemptID) after d. Restarting an attempt id
// replaces its timer.
func (c *Countdown) Start(attemptID string, d time.Duration, expire func(attemptID string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.timers[attemptID]; ok {
		t.Stop()
	}
	c.timers[attemptID] = time.AfterFunc(d, func() {
		c.mu.Lock()
		_, live := c.timers[attemptID]
		delete(c.timers, attemptID)
		c.mu.Unlock()
		if live {
			expire(attemptID)
		}
	})
}

// Stop cancels the attempt's timer, if any.
func (c *Countdown) Stop(attemptID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.timers[attemptID]; ok {
		t.Stop()
		delete(c.timers, attemptID)
	}
}
