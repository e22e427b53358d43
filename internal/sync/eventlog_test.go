package syncx

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/db"
)

func newTestDB(t *testing.T) *EventRepo {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewEventRepo(conn)
}

func TestAppendDedupesByEventID(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()

	ev := Event{EventID: "ev-1", Type: "violation", Key: "attempt-1", DataJSON: `{"event_type":"tab_hidden"}`}

	inserted, err := repo.Append(ctx, ev)
	require.NoError(t, err)
	assert.True(t, inserted)

	// At-least-once delivery: the repeat is a no-op.
	inserted, err = repo.Append(ctx, ev)
	require.NoError(t, err)
	assert.False(t, inserted)

	n, err := repo.Count(ctx, "violation", "attempt-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAppendDistinctEvents(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := repo.Append(ctx, Event{
			EventID: fmt.Sprintf("ev-%d", i), Type: "violation", Key: "attempt-1", DataJSON: "{}",
		})
		require.NoError(t, err)
	}
	n, err := repo.Count(ctx, "violation", "attempt-1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestStatsAccumulateIdempotentPerBucket(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	defer conn.Close()
	repo := NewStatsRepo(conn)
	ctx := context.Background()

	at := time.Unix(1_900_000_000, 0)
	s := ModuleStats{ModuleID: "m1", TimeSpent: 30, ScrollDepth: 0.5}

	require.NoError(t, repo.Accumulate(ctx, "s1", "c1", s, at))
	// duplicate heartbeat in the same bucket: no double counting
	require.NoError(t, repo.Accumulate(ctx, "s1", "c1", s, at))
	// deeper scroll in the same bucket wins
	s.ScrollDepth = 0.9
	require.NoError(t, repo.Accumulate(ctx, "s1", "c1", s, at))

	total, err := repo.TotalTime(ctx, "s1", "c1", "m1")
	require.NoError(t, err)
	assert.Equal(t, 30, total)

	// next bucket accumulates separately
	require.NoError(t, repo.Accumulate(ctx, "s1", "c1", ModuleStats{ModuleID: "m1", TimeSpent: 25}, at.Add(HeartbeatBucket)))
	total, err = repo.TotalTime(ctx, "s1", "c1", "m1")
	require.NoError(t, err)
	assert.Equal(t, 55, total)
}
