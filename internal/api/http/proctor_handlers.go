package http

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	auth "github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/auth/middleware"
	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/proctor"
	syncx "github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/sync"
)

// POST /proctor/ingest
// Fire-and-forget violation intake. Duplicate event ids are acknowledged and
// dropped before they reach the session reducer, so at-least-once clients
// never double-count a violation.
func ProctorIngestHandler(mgr *proctor.Manager, events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			EventID   string `json:"eventId"`
			StudentID string `json:"studentId" validate:"required"`
			CourseID  string `json:"courseId" validate:"required"`
			AttemptID string `json:"attemptId" validate:"required"`
			EventType string `json:"eventType" validate:"required"`
			Details   string `json:"details"`
			Timestamp int64  `json:"timestamp"`
		}
		if !decodeValid(w, r, &req) {
			return
		}
		// Reports drive the session toward lockout, so the reporter must be
		// the learner who owns the attempt. Checked before any logging or
		// state mutation.
		subject := auth.SubjectFromContext(r.Context())
		if req.StudentID != subject {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		m, live := mgr.Get(req.AttemptID)
		if live && m.Session().StudentID != subject {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if req.EventID == "" {
			req.EventID = uuid.NewString()
		}
		at := time.Now()
		if req.Timestamp > 0 {
			at = time.Unix(req.Timestamp, 0)
		}

		data, _ := json.Marshal(map[string]any{
			"student_id": req.StudentID,
			"course_id":  req.CourseID,
			"event_type": req.EventType,
			"details":    req.Details,
		})
		inserted, err := events.Append(r.Context(), syncx.Event{
			EventID:  req.EventID,
			Type:     "violation",
			Key:      req.AttemptID,
			DataJSON: string(data),
		})
		if err != nil {
			// Durable log trouble must not surface to the client; the event
			// still drives the in-memory session below.
			log.Printf("proctor: event log append %s: %v", req.EventID, err)
			inserted = true
		}
		if !inserted {
			writeJSON(w, http.StatusAccepted, map[string]any{"duplicate": true})
			return
		}

		if !live {
			// Stale or unknown session: acknowledged, no state mutated.
			writeJSON(w, http.StatusAccepted, map[string]any{"session": "inactive"})
			return
		}
		t := m.Observe(r.Context(), proctor.Event{
			ID:      req.EventID,
			Type:    proctor.EventType(req.EventType),
			Details: req.Details,
			At:      at,
		})
		resp := map[string]any{
			"state":              t.State.String(),
			"violations":         t.Violations,
			"warnings_remaining": t.WarningsLeft,
		}
		if t.Message != "" {
			resp["message"] = t.Message
		}
		if t.LockedUntil != nil {
			resp["locked_until"] = t.LockedUntil.Unix()
		}
		writeJSON(w, http.StatusAccepted, resp)
	}
}
