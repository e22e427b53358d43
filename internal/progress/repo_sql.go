package progress

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RelationalRepo is the UUID-keyed Postgres target. Callers route around it
// for non-UUID module ids; the repo itself also refuses them so a routing bug
// cannot write junk keys.
type RelationalRepo struct {
	db *sql.DB
}

func NewRelationalRepo(db *sql.DB) *RelationalRepo { return &RelationalRepo{db: db} }

func (r *RelationalRepo) Upsert(ctx context.Context, rec Record) error {
	if _, err := uuid.Parse(rec.ModuleID); err != nil {
		return fmt.Errorf("relational progress: module id %q is not a uuid: %w", rec.ModuleID, err)
	}
	topics, err := json.Marshal(rec.CompletedTopics)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO progress (student_id,course_id,module_id,completed,quiz_score,topics_json,locked_until,updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (student_id,module_id) DO UPDATE SET
		   completed=EXCLUDED.completed,
		   quiz_score=EXCLUDED.quiz_score,
		   topics_json=EXCLUDED.topics_json,
		   locked_until=GREATEST(COALESCE(progress.locked_until,0),COALESCE(EXCLUDED.locked_until,0)),
		   updated_at=EXCLUDED.updated_at`,
		rec.StudentID, rec.CourseID, rec.ModuleID, rec.Completed, nullInt(rec.QuizScore),
		string(topics), nullTime(rec.LockedUntil), time.Now().Unix())
	return err
}

func (r *RelationalRepo) List(ctx context.Context, studentID, courseID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT student_id,course_id,module_id,completed,quiz_score,topics_json,locked_until
		 FROM progress WHERE student_id=$1 AND course_id=$2`, studentID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *RelationalRepo) SetLockout(ctx context.Context, studentID, courseID, moduleID string, until time.Time) error {
	if _, err := uuid.Parse(moduleID); err != nil {
		return fmt.Errorf("relational progress: module id %q is not a uuid: %w", moduleID, err)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO progress (student_id,course_id,module_id,completed,quiz_score,topics_json,locked_until,updated_at)
		 VALUES ($1,$2,$3,FALSE,NULL,'[]',$4,$5)
		 ON CONFLICT (student_id,module_id) DO UPDATE SET
		   locked_until=GREATEST(COALESCE(progress.locked_until,0),EXCLUDED.locked_until),
		   updated_at=EXCLUDED.updated_at`,
		studentID, courseID, moduleID, until.Unix(), time.Now().Unix())
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec         Record
		score       sql.NullInt64
		topicsJSON  string
		lockedUntil sql.NullInt64
	)
	if err := row.Scan(&rec.StudentID, &rec.CourseID, &rec.ModuleID, &rec.Completed,
		&score, &topicsJSON, &lockedUntil); err != nil {
		return Record{}, err
	}
	if score.Valid {
		v := int(score.Int64)
		rec.QuizScore = &v
	}
	if lockedUntil.Valid && lockedUntil.Int64 > 0 {
		t := time.Unix(lockedUntil.Int64, 0)
		rec.LockedUntil = &t
	}
	if err := json.Unmarshal([]byte(topicsJSON), &rec.CompletedTopics); err != nil {
		rec.CompletedTopics = nil
	}
	return rec, nil
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.Unix()
}
