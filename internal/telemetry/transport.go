package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	KindHeartbeat = "heartbeat"
	KindViolation = "violation"
	KindLockout   = "lockout"
	KindSubmit    = "submit"
)

// Event is one discrete telemetry datum. IDs make at-least-once delivery safe:
// the collector dedupes violations by event id and upserts heartbeats by
// student+module+time bucket.
type Event struct {
	ID        string         `json:"event_id"`
	Kind      string         `json:"kind"`
	StudentID string         `json:"student_id"`
	CourseID  string         `json:"course_id"`
	ModuleID  string         `json:"module_id"`
	AttemptID string         `json:"attempt_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	At        time.Time      `json:"timestamp"`
}

func NewEvent(kind, studentID, courseID, moduleID string) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		StudentID: studentID,
		CourseID:  courseID,
		ModuleID:  moduleID,
		At:        time.Now(),
	}
}

// Sink accepts events without ever blocking or failing the caller.
type Sink interface {
	Emit(ev Event)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// Transport ships events to a collector endpoint. Emit never blocks and never
// returns an error: a full buffer drops the event, a closed transport falls
// back to one best-effort direct POST, and every network or HTTP failure is
// swallowed.
type Transport struct {
	url    string
	client *http.Client

	ch     chan Event
	done   chan struct{}
	closed bool
	mu     sync.Mutex
}

const defaultBuffer = 256

func NewTransport(collectorURL string) *Transport {
	t := &Transport{
		url:    collectorURL,
		client: &http.Client{Timeout: 5 * time.Second},
		ch:     make(chan Event, defaultBuffer),
		done:   make(chan struct{}),
	}
	go t.run()
	return t
}

// Emit holds the mutex across the send so Close cannot close the channel
// between the flag check and the send; the select never blocks, so the
// critical section stays short.
func (t *Transport) Emit(ev Event) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		// Teardown path: one direct attempt, no retry.
		go t.post(ev)
		return
	}
	select {
	case t.ch <- ev:
	default:
		// Buffer full: dropping beats blocking the interactive flow.
		log.Printf("telemetry: buffer full, dropped %s event %s", ev.Kind, ev.ID)
	}
	t.mu.Unlock()
}

func (t *Transport) run() {
	for ev := range t.ch {
		t.post(ev)
	}
	close(t.done)
}

func (t *Transport) post(ev Event) {
	if t.url == "" {
		return
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return
	}
	resp, err := t.client.Post(t.url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("telemetry: deliver %s: %v", ev.ID, err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		log.Printf("telemetry: collector returned %d for %s", resp.StatusCode, ev.ID)
	}
}

// Close drains buffered events (the final flush) and stops the worker.
// Events emitted after Close use the single-attempt fallback.
func (t *Transport) Close(ctx context.Context) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()
	close(t.ch)
	select {
	case <-t.done:
	case <-ctx.Done():
	}
}

// HeartbeatInterval is the fixed engagement reporting cadence.
const HeartbeatInterval = 30 * time.Second

// EngagementSample is what a heartbeat reports about the learner's current
// module: wall time accumulated and how far they scrolled.
type EngagementSample struct {
	TimeSpent   time.Duration
	ScrollDepth float64
}

// Heartbeater emits one engagement heartbeat per interval until its context
// is cancelled, plus a final flush event on the way out.
type Heartbeater struct {
	Sink     Sink
	Interval time.Duration
	Sample   func() EngagementSample

	StudentID string
	CourseID  string
	ModuleID  string
}

func (h *Heartbeater) Run(ctx context.Context) {
	interval := h.Interval
	if interval <= 0 {
		interval = HeartbeatInterval
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			h.beat() // final flush
			return
		case <-tick.C:
			h.beat()
		}
	}
}

func (h *Heartbeater) beat() {
	s := h.Sample()
	ev := NewEvent(KindHeartbeat, h.StudentID, h.CourseID, h.ModuleID)
	ev.Details = map[string]any{
		"time_spent_sec": int(s.TimeSpent.Seconds()),
		"scroll_depth":   s.ScrollDepth,
	}
	h.Sink.Emit(ev)
}
