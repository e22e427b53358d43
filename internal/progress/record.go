package progress

import (
	"context"
	"time"
)

// Record is the authoritative per-learner, per-module progress row. Records
// are created on first access and only ever upserted, never deleted.
type Record struct {
	StudentID       string     `json:"student_id"`
	CourseID        string     `json:"course_id"`
	ModuleID        string     `json:"module_id"`
	Completed       bool       `json:"completed"`
	QuizScore       *int       `json:"quiz_score,omitempty"`
	CompletedTopics []string   `json:"completed_topics,omitempty"`
	LockedUntil     *time.Time `json:"locked_until,omitempty"`
	LastSyncedAt    time.Time  `json:"last_synced_at,omitempty"`
}

// Repository is one backend target for progress rows. All writes are upserts
// keyed by (student, module) so concurrent sessions never lose updates.
type Repository interface {
	Upsert(ctx context.Context, rec Record) error
	List(ctx context.Context, studentID, courseID string) ([]Record, error)
	SetLockout(ctx context.Context, studentID, courseID, moduleID string, until time.Time) error
}

// merge folds a lockout into a record keeping the window monotonically
// non-decreasing.
func mergeLockout(existing *time.Time, until time.Time) *time.Time {
	if existing != nil && existing.After(until) {
		return existing
	}
	return &until
}
