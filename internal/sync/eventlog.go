package syncx

import (
	"context"
	"database/sql"
	"time"
)

// Event is one durable row in the collector's log. The event id is the
// dedupe key: upstream delivery is at-least-once, so Append must tolerate
// repeats.
type Event struct {
	Seq       int64
	EventID   string
	Type      string // violation|lockout|submit|heartbeat
	Key       string // natural key: attempt id or student|course|module
	DataJSON  string
	CreatedAt int64
}

type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// Append inserts the event once. A repeated event id is a no-op and reports
// inserted=false so callers can skip side effects on duplicates.
func (r *EventRepo) Append(ctx context.Context, e Event) (inserted bool, err error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (event_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (event_id) DO NOTHING`,
		e.EventID, e.Type, e.Key, e.DataJSON, time.Now().Unix())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Count reports how many events of a type exist for a key; used by admin
// views and tests.
func (r *EventRepo) Count(ctx context.Context, typ, key string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM event_log WHERE typ=$1 AND key=$2`, typ, key).Scan(&n)
	return n, err
}
