package syncx

import (
	"context"
	"database/sql"
	"time"
)

// HeartbeatBucket is the idempotency window for engagement heartbeats:
// repeats inside the same student+module+bucket upsert rather than duplicate.
const HeartbeatBucket = 30 * time.Second

// ModuleStats is one heartbeat's engagement payload.
type ModuleStats struct {
	ModuleID    string  `json:"module_id"`
	TimeSpent   int     `json:"time_spent"` // seconds
	ScrollDepth float64 `json:"scroll_depth"`
}

// StatsRepo accumulates engagement stats server-side.
type StatsRepo struct{ db *sql.DB }

func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

// Accumulate upserts one heartbeat keyed by (student, course, module, time
// bucket). Repeats inside a bucket keep the max of each metric, so duplicate
// delivery never double-counts; totals across buckets come from SUM.
func (r *StatsRepo) Accumulate(ctx context.Context, studentID, courseID string, s ModuleStats, at time.Time) error {
	bucket := at.Unix() / int64(HeartbeatBucket.Seconds())
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO experience_stats (student_id,course_id,module_id,bucket,time_spent_sec,scroll_depth,updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (student_id,course_id,module_id,bucket) DO UPDATE SET
		   time_spent_sec=MAX(experience_stats.time_spent_sec,EXCLUDED.time_spent_sec),
		   scroll_depth=MAX(experience_stats.scroll_depth,EXCLUDED.scroll_depth),
		   updated_at=EXCLUDED.updated_at`,
		studentID, courseID, s.ModuleID, bucket, s.TimeSpent, s.ScrollDepth, time.Now().Unix())
	return err
}

// TotalTime sums accumulated module time for display.
func (r *StatsRepo) TotalTime(ctx context.Context, studentID, courseID, moduleID string) (int, error) {
	var total sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT SUM(time_spent_sec) FROM experience_stats
		 WHERE student_id=$1 AND course_id=$2 AND module_id=$3`,
		studentID, courseID, moduleID).Scan(&total)
	if err != nil {
		return 0, err
	}
	return int(total.Int64), nil
}
