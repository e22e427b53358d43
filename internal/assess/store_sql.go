package assess

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// SQLAttemptStore persists attempts with answers as a JSON column, the same
// layout for both sqlite and postgres.
type SQLAttemptStore struct {
	db *sql.DB
}

func NewSQLAttemptStore(db *sql.DB) *SQLAttemptStore {
	return &SQLAttemptStore{db: db}
}

func (s *SQLAttemptStore) Create(ctx context.Context, a Attempt) error {
	if a.Answers == nil {
		a.Answers = map[string]int{}
	}
	buf, err := json.Marshal(a.Answers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO attempts (id,module_id,course_id,student_id,status,score,passed,answers_json,started_at,deadline)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.ModuleID, a.CourseID, a.StudentID, a.Status, a.Score, boolInt(a.Passed),
		string(buf), a.StartedAt.Unix(), a.Deadline.Unix())
	return err
}

func (s *SQLAttemptStore) Get(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,module_id,course_id,student_id,status,score,passed,answers_json,started_at,deadline,submitted_at
		 FROM attempts WHERE id=$1`, id)
	var (
		a           Attempt
		passed      int
		ajson       string
		startedAt   int64
		deadline    int64
		submittedAt sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.ModuleID, &a.CourseID, &a.StudentID, &a.Status, &a.Score,
		&passed, &ajson, &startedAt, &deadline, &submittedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrAttemptNotFound
		}
		return Attempt{}, err
	}
	a.Passed = passed != 0
	a.StartedAt = time.Unix(startedAt, 0)
	a.Deadline = time.Unix(deadline, 0)
	if submittedAt.Valid {
		t := time.Unix(submittedAt.Int64, 0)
		a.SubmittedAt = &t
	}
	if err := json.Unmarshal([]byte(ajson), &a.Answers); err != nil {
		a.Answers = map[string]int{}
	}
	return a, nil
}

func (s *SQLAttemptStore) SaveAnswers(ctx context.Context, id string, answers map[string]int) (Attempt, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status != StatusInProgress {
		return Attempt{}, ErrAttemptSubmitted
	}
	if a.Answers == nil {
		a.Answers = map[string]int{}
	}
	for k, v := range answers {
		a.Answers[k] = v
	}
	buf, _ := json.Marshal(a.Answers)
	if _, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET answers_json=$1 WHERE id=$2`, string(buf), id); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLAttemptStore) Finish(ctx context.Context, id string, status string, score int, passed bool) (Attempt, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status != StatusInProgress {
		// Finish is idempotent: a locked-out or already submitted attempt
		// stays as it is.
		return a, nil
	}
	now := time.Now()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET status=$1, score=$2, passed=$3, submitted_at=$4 WHERE id=$5`,
		status, score, boolInt(passed), now.Unix(), id); err != nil {
		return Attempt{}, err
	}
	return s.Get(ctx, id)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
