package http

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	auth "github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/auth/middleware"
	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/course"
	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/progress"
	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/rbac"
)

// PUT /progress/{courseID}/{moduleID}
// Idempotent upsert of the caller's own progress for one module. The cache is
// updated synchronously; the backend write is best-effort and retried on the
// next reconcile cycle, so this never fails on network trouble.
func ProgressPutHandler(store *progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Completed       bool     `json:"completed"`
			QuizScore       *int     `json:"quizScore" validate:"omitempty,min=0,max=100"`
			CompletedTopics []string `json:"completedTopics"`
		}
		if !decodeValid(w, r, &req) {
			return
		}
		rec := progress.Record{
			StudentID:       auth.SubjectFromContext(r.Context()),
			CourseID:        chi.URLParam(r, "courseID"),
			ModuleID:        chi.URLParam(r, "moduleID"),
			Completed:       req.Completed,
			QuizScore:       req.QuizScore,
			CompletedTopics: req.CompletedTopics,
		}
		if rec.StudentID == "" || rec.CourseID == "" || rec.ModuleID == "" {
			http.Error(w, "missing ids", http.StatusBadRequest)
			return
		}
		out := store.Upsert(r.Context(), rec)
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /progress/{courseID}
// Server state wins on a successful read; on backend failure the last-known
// cached snapshot is served instead of an error.
func ProgressGetHandler(store *progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := auth.SubjectFromContext(r.Context())
		courseID := chi.URLParam(r, "courseID")
		recs, err := store.Refresh(r.Context(), studentID, courseID)
		if err != nil {
			log.Printf("progress: refresh %s/%s: %v", studentID, courseID, err)
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

// GET /courses/{courseID}/modules
// The rendering layer consumes these gate decisions to enable or disable
// navigation; decisions come from the cached snapshot, never a round-trip.
func CourseModulesHandler(content course.ContentStore, store *progress.Store, reb *progress.NextStepRecommender) http.HandlerFunc {
	type moduleView struct {
		course.Module
		Accessible      bool `json:"accessible"`
		RetakeRequired  bool `json:"retake_required"`
		LockedRemaining int  `json:"locked_remaining_sec,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		studentID := auth.SubjectFromContext(ctx)
		role := rbac.RoleFromContext(ctx)
		courseID := chi.URLParam(r, "courseID")

		c, err := content.GetCourse(ctx, courseID)
		if err != nil {
			fail(w, err)
			return
		}
		recs := store.Snapshot(studentID, courseID)
		mods := progress.Overlay(c.Sorted(), recs)

		now := time.Now()
		views := make([]moduleView, len(mods))
		for i, m := range mods {
			v := moduleView{
				Module:     m,
				Accessible: course.CanAccess(mods, i, role),
			}
			if m.Completed && m.Graded() && m.Type != course.TypeInitialAssessment && *m.Score < m.Threshold() {
				v.RetakeRequired = true
			}
			if rec, ok := recs[m.ID]; ok {
				if remain := course.LockoutRemaining(rec.LockedUntil, now); remain > 0 {
					v.LockedRemaining = int(remain.Seconds())
				}
			}
			views[i] = v
		}
		resp := map[string]any{"course_id": c.ID, "modules": views}
		if reb != nil {
			resp["recommended_next"] = reb.Recommended(studentID, courseID)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
