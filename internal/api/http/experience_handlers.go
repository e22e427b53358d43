package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/progress"
	syncx "github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/sync"
)

// POST /experience/sync
// Heartbeat intake: the server accumulates engagement per time bucket, and
// each beat doubles as the opportunistic trigger for progress reconciliation.
func ExperienceSyncHandler(stats *syncx.StatsRepo, store *progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StudentID   string            `json:"studentId" validate:"required"`
			CourseID    string            `json:"courseId" validate:"required"`
			ModuleStats syncx.ModuleStats `json:"moduleStats" validate:"required"`
		}
		if !decodeValid(w, r, &req) {
			return
		}
		if req.ModuleStats.ModuleID == "" {
			http.Error(w, "moduleStats.module_id required", http.StatusBadRequest)
			return
		}
		if err := stats.Accumulate(r.Context(), req.StudentID, req.CourseID, req.ModuleStats, time.Now()); err != nil {
			log.Printf("experience: accumulate %s/%s: %v", req.StudentID, req.ModuleStats.ModuleID, err)
		}
		if store != nil {
			go store.Reconcile(context.Background())
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
	}
}
