package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/config"
	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/db"
	syncx "github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/sync"
	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/telemetry"
)

// The collector is the durable end of the fire-and-forget telemetry channel.
// Gateways POST events here; the collector appends them to the event log with
// event-id dedupe and folds heartbeats into the engagement stats table. Losing
// a POST is acceptable, double-applying one is not.
func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	ctx := context.Background()
	conn, err := db.Open(ctx, db.Driver(cfg.DocDriver), cfg.DocDSN)
	if err != nil {
		log.Fatalf("collector: open db: %v", err)
	}
	defer conn.Close()

	events := syncx.NewEventRepo(conn)
	stats := syncx.NewStatsRepo(conn)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Post("/collect", collectHandler(events, stats))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	log.Printf("collector: listening on %s", cfg.CollectorAddr)
	s := &http.Server{
		Addr:              cfg.CollectorAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Fatal(s.ListenAndServe())
}

func collectHandler(events *syncx.EventRepo, stats *syncx.StatsRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev telemetry.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil || ev.ID == "" {
			http.Error(w, "bad event", http.StatusBadRequest)
			return
		}
		data, _ := json.Marshal(ev)
		inserted, err := events.Append(r.Context(), syncx.Event{
			EventID:  ev.ID,
			Type:     ev.Kind,
			Key:      eventKey(ev),
			DataJSON: string(data),
		})
		if err != nil {
			http.Error(w, "log append failed", http.StatusInternalServerError)
			return
		}
		if !inserted {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		if ev.Kind == telemetry.KindHeartbeat {
			// Bucketed upsert keeps redelivered beats from double-counting.
			if err := stats.Accumulate(r.Context(), ev.StudentID, ev.CourseID, heartbeatStats(ev), ev.At); err != nil {
				log.Printf("collector: accumulate %s: %v", ev.ID, err)
			}
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func eventKey(ev telemetry.Event) string {
	if ev.AttemptID != "" {
		return ev.AttemptID
	}
	return ev.StudentID + "|" + ev.CourseID + "|" + ev.ModuleID
}

func heartbeatStats(ev telemetry.Event) syncx.ModuleStats {
	s := syncx.ModuleStats{ModuleID: ev.ModuleID}
	if v, ok := ev.Details["time_spent_sec"].(float64); ok {
		s.TimeSpent = int(v)
	}
	if v, ok := ev.Details["scroll_depth"].(float64); ok {
		s.ScrollDepth = v
	}
	return s
}
