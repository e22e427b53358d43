package progress

import (
	"context"
	"sort"
	"sync"

	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/course"
)

// NextStepRecommender recomputes the learner's recommended next module from
// the course layout and the current progress snapshot. Recommendations are
// advisory: they feed the UI, they never gate anything.
type NextStepRecommender struct {
	Content  course.ContentStore
	Snapshot func(studentID, courseID string) map[string]Record

	mu   sync.RWMutex
	next map[[2]string]string // (student, course) -> module id
}

func NewNextStepRecommender(content course.ContentStore, snapshot func(studentID, courseID string) map[string]Record) *NextStepRecommender {
	return &NextStepRecommender{
		Content:  content,
		Snapshot: snapshot,
		next:     map[[2]string]string{},
	}
}

func (r *NextStepRecommender) Rebalance(ctx context.Context, studentID, courseID string) error {
	c, err := r.Content.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}
	mods := c.Sorted()
	sort.SliceStable(mods, func(i, j int) bool { return mods[i].Order < mods[j].Order })

	mods = Overlay(mods, r.Snapshot(studentID, courseID))

	var rec string
	for i, m := range mods {
		if m.Completed {
			continue
		}
		if course.CanAccess(mods, i, "student") {
			rec = m.ID
		}
		break
	}

	r.mu.Lock()
	r.next[[2]string{studentID, courseID}] = rec
	r.mu.Unlock()
	return nil
}

// Recommended returns the last computed next step, empty if none.
func (r *NextStepRecommender) Recommended(studentID, courseID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.next[[2]string{studentID, courseID}]
}

// Overlay folds persisted progress onto authored modules so the pure gate
// can decide over one consistent view.
func Overlay(mods []course.Module, recs map[string]Record) []course.Module {
	out := make([]course.Module, len(mods))
	copy(out, mods)
	for i, m := range out {
		rec, ok := recs[m.ID]
		if !ok {
			continue
		}
		m.Completed = rec.Completed
		if rec.QuizScore != nil {
			v := *rec.QuizScore
			m.Score = &v
		}
		m.CompletedTopics = rec.CompletedTopics
		out[i] = m
	}
	return out
}
