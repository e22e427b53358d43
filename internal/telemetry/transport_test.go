package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu     sync.Mutex
	events []Event
	status int
}

func (c *collector) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		c.mu.Lock()
		c.events = append(c.events, ev)
		c.mu.Unlock()
		if c.status != 0 {
			w.WriteHeader(c.status)
		}
	}
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestTransportDelivers(t *testing.T) {
	col := &collector{}
	srv := httptest.NewServer(col.handler())
	defer srv.Close()

	tr := NewTransport(srv.URL)
	ev := NewEvent(KindViolation, "s1", "c1", "m1")
	tr.Emit(ev)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tr.Close(ctx)

	require.Equal(t, 1, col.count())
	col.mu.Lock()
	assert.Equal(t, ev.ID, col.events[0].ID)
	assert.Equal(t, KindViolation, col.events[0].Kind)
	col.mu.Unlock()
}

func TestEmitNeverFailsCaller(t *testing.T) {
	// Collector answers 500; caller must not notice.
	col := &collector{status: http.StatusInternalServerError}
	srv := httptest.NewServer(col.handler())
	defer srv.Close()

	tr := NewTransport(srv.URL)
	tr.Emit(NewEvent(KindHeartbeat, "s1", "c1", "m1"))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tr.Close(ctx)
	assert.Equal(t, 1, col.count())
}

func TestEmitOfflineCollectorSwallowed(t *testing.T) {
	tr := NewTransport("http://127.0.0.1:1") // nothing listens here
	tr.Emit(NewEvent(KindHeartbeat, "s1", "c1", "m1"))
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	tr.Close(ctx) // drains without error
}

func TestCloseFlushesBuffered(t *testing.T) {
	col := &collector{}
	srv := httptest.NewServer(col.handler())
	defer srv.Close()

	tr := NewTransport(srv.URL)
	for i := 0; i < 20; i++ {
		tr.Emit(NewEvent(KindHeartbeat, "s1", "c1", "m1"))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tr.Close(ctx)
	assert.Equal(t, 20, col.count())
}

func TestEmitAfterCloseUsesFallback(t *testing.T) {
	col := &collector{}
	srv := httptest.NewServer(col.handler())
	defer srv.Close()

	tr := NewTransport(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tr.Close(ctx)

	tr.Emit(NewEvent(KindViolation, "s1", "c1", "m1"))
	assert.Eventually(t, func() bool { return col.count() == 1 },
		2*time.Second, 10*time.Millisecond, "teardown fallback still ships the event")
}

func TestEmitRacingCloseDoesNotPanic(t *testing.T) {
	// Emitters racing Close must land on the worker channel or the teardown
	// fallback, never on a closed channel.
	for i := 0; i < 50; i++ {
		tr := NewTransport("") // no collector; delivery itself is a no-op
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					tr.Emit(NewEvent(KindHeartbeat, "s1", "c1", "m1"))
				}
			}()
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		tr.Close(ctx)
		cancel()
		wg.Wait()
	}
}

func TestHeartbeaterEmitsAndFlushes(t *testing.T) {
	sink := &memorySink{}
	h := &Heartbeater{
		Sink:      sink,
		Interval:  10 * time.Millisecond,
		StudentID: "s1", CourseID: "c1", ModuleID: "m1",
		Sample: func() EngagementSample {
			return EngagementSample{TimeSpent: 45 * time.Second, ScrollDepth: 0.8}
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { h.Run(ctx); close(done) }()

	assert.Eventually(t, func() bool { return sink.count() >= 2 },
		time.Second, 5*time.Millisecond)
	cancel()
	<-done

	// Cancellation produced the final flush beat.
	n := sink.count()
	assert.GreaterOrEqual(t, n, 3)
	last := sink.last()
	assert.Equal(t, KindHeartbeat, last.Kind)
	assert.Equal(t, 45, last.Details["time_spent_sec"])
}

type memorySink struct {
	mu     sync.Mutex
	events []Event
}

func (m *memorySink) Emit(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *memorySink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *memorySink) last() Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[len(m.events)-1]
}
