package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/assess"
	auth "github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/auth/middleware"
	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/course"
	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/proctor"
	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/progress"
	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/rbac"
	syncx "github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/sync"
)

// Assessments wires the assessment lifecycle: entry gating, attempt creation
// with its wall-clock countdown, scoring, and proctor-session teardown.
type Assessments struct {
	Content   course.ContentStore
	Bank      assess.QuestionBank
	Attempts  assess.AttemptStore
	Progress  *progress.Store
	Proctor   *proctor.Manager
	Countdown *assess.Countdown
	Events    *syncx.EventRepo
	TimeLimit time.Duration
}

func (a *Assessments) timeLimit() time.Duration {
	if a.TimeLimit > 0 {
		return a.TimeLimit
	}
	return assess.DefaultTimeLimit
}

// POST /assessment/start  { "courseId": "...", "moduleId": "..." }
// Checks the gate and any lockout window, creates the attempt, arms the
// proctoring session for proctored modules, and starts the countdown that
// force-submits at zero.
func (a *Assessments) StartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CourseID string `json:"courseId" validate:"required"`
			ModuleID string `json:"moduleId" validate:"required"`
		}
		if !decodeValid(w, r, &req) {
			return
		}
		ctx := r.Context()
		studentID := auth.SubjectFromContext(ctx)
		role := rbac.RoleFromContext(ctx)

		c, err := a.Content.GetCourse(ctx, req.CourseID)
		if err != nil {
			fail(w, err)
			return
		}
		mods := progress.Overlay(c.Sorted(), a.Progress.Snapshot(studentID, req.CourseID))
		idx := -1
		for i, m := range mods {
			if m.ID == req.ModuleID {
				idx = i
				break
			}
		}
		if idx < 0 {
			http.Error(w, "module not found in course", http.StatusNotFound)
			return
		}
		mod := mods[idx]

		// Lockout first: an active penalty window rejects entry with the
		// remaining time, regardless of gating.
		if rec, ok := a.Progress.Get(studentID, req.CourseID, req.ModuleID); ok {
			if remain := course.LockoutRemaining(rec.LockedUntil, time.Now()); remain > 0 {
				writeJSON(w, http.StatusForbidden, map[string]any{
					"error":         "assessment locked",
					"severity":      lockSeverity(mod.Type),
					"remaining_sec": int(remain.Seconds()),
					"message":       fmt.Sprintf("locked for another %s", remain.Round(time.Second)),
				})
				return
			}
		}
		if !course.CanAccess(mods, idx, role) {
			http.Error(w, "previous module requirements not met", http.StatusForbidden)
			return
		}

		att := assess.Attempt{
			ID:        uuid.NewString(),
			ModuleID:  req.ModuleID,
			CourseID:  req.CourseID,
			StudentID: studentID,
			Status:    assess.StatusInProgress,
			Answers:   map[string]int{},
			StartedAt: time.Now(),
			Deadline:  time.Now().Add(a.timeLimit()),
		}
		if err := a.Attempts.Create(ctx, att); err != nil {
			fail(w, err)
			return
		}

		resp := map[string]any{"attempt": att}
		if mod.Proctored {
			a.Proctor.Arm(proctor.Session{
				ID:         att.ID,
				StudentID:  studentID,
				CourseID:   req.CourseID,
				ModuleID:   req.ModuleID,
				ModuleType: mod.Type,
			})
			resp["proctoring_session_id"] = att.ID
		}
		a.Countdown.Start(att.ID, a.timeLimit(), func(attemptID string) {
			// Wall clock hit zero: submit whatever answers exist.
			if _, _, err := a.finalize(context.Background(), attemptID, mod.Type, assess.StatusSubmitted); err != nil {
				log.Printf("assessment: timeout submit %s: %v", attemptID, err)
			}
		})
		writeJSON(w, http.StatusCreated, resp)
	}
}

// POST /assessment/attempts/{attemptID}/answers  { "questionId": index, ... }
func (a *Assessments) SaveAnswersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		var answers map[string]int
		if err := json.NewDecoder(r.Body).Decode(&answers); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		att, err := a.Attempts.Get(r.Context(), id)
		if err != nil {
			fail(w, err)
			return
		}
		// Ownership before mutation: a forbidden request must not commit.
		if att.StudentID != auth.SubjectFromContext(r.Context()) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		att, err = a.Attempts.SaveAnswers(r.Context(), id, answers)
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, att)
	}
}

// POST /assessment/submit
// body { "moduleId": "...", "answers": {questionId: index}, "proctoringSessionId": "..." }
// The proctoring session id doubles as the attempt id. Resubmitting an
// already submitted attempt returns the stored result.
func (a *Assessments) SubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ModuleID            string         `json:"moduleId" validate:"required"`
			Answers             map[string]int `json:"answers"`
			ProctoringSessionID string         `json:"proctoringSessionId"`
			AttemptID           string         `json:"attemptId"`
		}
		if !decodeValid(w, r, &req) {
			return
		}
		attemptID := req.AttemptID
		if attemptID == "" {
			attemptID = req.ProctoringSessionID
		}
		if attemptID == "" {
			http.Error(w, "attemptId or proctoringSessionId required", http.StatusBadRequest)
			return
		}
		ctx := r.Context()
		att, err := a.Attempts.Get(ctx, attemptID)
		if err != nil {
			fail(w, err)
			return
		}
		if att.StudentID != auth.SubjectFromContext(ctx) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if att.Status == assess.StatusAborted {
			http.Error(w, "attempt aborted by integrity lockout", http.StatusForbidden)
			return
		}
		if len(req.Answers) > 0 && att.Status == assess.StatusInProgress {
			if _, err := a.Attempts.SaveAnswers(ctx, attemptID, req.Answers); err != nil {
				fail(w, err)
				return
			}
		}
		modType, err := a.moduleType(ctx, att.CourseID, att.ModuleID)
		if err != nil {
			fail(w, err)
			return
		}
		att, res, err := a.finalize(ctx, attemptID, modType, assess.StatusSubmitted)
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"score":     res.Score,
			"passed":    res.Passed,
			"breakdown": res.Breakdown,
			"attempt":   att,
		})
	}
}

// finalize scores an attempt with whatever answers exist, persists the
// result, updates progress optimistically, and tears the session down. Safe
// to call twice; the second call returns the stored outcome.
func (a *Assessments) finalize(ctx context.Context, attemptID string, modType course.ModuleType, status string) (assess.Attempt, assess.Result, error) {
	att, err := a.Attempts.Get(ctx, attemptID)
	if err != nil {
		return assess.Attempt{}, assess.Result{}, err
	}
	if att.Status != assess.StatusInProgress {
		return att, assess.Result{Score: att.Score, Passed: att.Passed}, nil
	}
	questions, err := a.Bank.Questions(ctx, att.ModuleID)
	if err != nil {
		return assess.Attempt{}, assess.Result{}, err
	}
	res := assess.Score(modType, questions, att.Answers)

	att, err = a.Attempts.Finish(ctx, attemptID, status, res.Score, res.Passed)
	if err != nil {
		return assess.Attempt{}, assess.Result{}, err
	}
	a.Countdown.Stop(attemptID)
	if m, ok := a.Proctor.Get(attemptID); ok {
		m.Submit()
		a.Proctor.Release(attemptID)
	}

	score := res.Score
	a.Progress.Upsert(ctx, progress.Record{
		StudentID: att.StudentID,
		CourseID:  att.CourseID,
		ModuleID:  att.ModuleID,
		Completed: true,
		QuizScore: &score,
	})
	if a.Events != nil {
		data, _ := json.Marshal(map[string]any{"score": res.Score, "passed": res.Passed})
		if _, err := a.Events.Append(ctx, syncx.Event{
			EventID:  uuid.NewString(),
			Type:     "submit",
			Key:      attemptID,
			DataJSON: string(data),
		}); err != nil {
			log.Printf("assessment: event log append %s: %v", attemptID, err)
		}
	}
	return att, res, nil
}

// AbortForLockout is the proctor lock hook: it aborts the in-progress attempt
// and clears its timers so the countdown cannot resurrect a dead session.
func (a *Assessments) AbortForLockout(sess proctor.Session, until time.Time) {
	ctx := context.Background()
	a.Countdown.Stop(sess.ID)
	if _, err := a.Attempts.Finish(ctx, sess.ID, assess.StatusAborted, 0, false); err != nil {
		log.Printf("assessment: abort %s: %v", sess.ID, err)
	}
}

func (a *Assessments) moduleType(ctx context.Context, courseID, moduleID string) (course.ModuleType, error) {
	c, err := a.Content.GetCourse(ctx, courseID)
	if err != nil {
		return "", err
	}
	for _, m := range c.Modules {
		if m.ID == moduleID {
			return m.Type, nil
		}
	}
	return "", assess.ErrModuleNotFound
}

func lockSeverity(t course.ModuleType) string {
	if t == course.TypeFinalAssessment {
		return "final"
	}
	return "standard"
}
