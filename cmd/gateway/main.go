package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	api "github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/api/http"
	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/assess"
	auth "github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/auth/middleware"
	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/config"
	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/course"
	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/db"
	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/proctor"
	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/progress"
	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/rbac"
	syncx "github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/sync"
	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/telemetry"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	// --- DB targets ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	docDB, err := db.Open(ctx, db.Driver(cfg.DocDriver), cfg.DocDSN)
	if err != nil {
		log.Fatalf("document db open failed: %v", err)
	}
	var rel progress.Repository
	if cfg.RelationalDSN != "" {
		relDB, err := db.Open(ctx, db.DriverPostgres, cfg.RelationalDSN)
		if err != nil {
			log.Fatalf("relational db open failed: %v", err)
		}
		rel = progress.NewRelationalRepo(relDB)
	}

	// --- Stores ---
	content := course.NewSQLContentStore(docDB)
	bank := assess.NewSQLQuestionBank(docDB)
	attempts := assess.NewSQLAttemptStore(docDB)
	events := syncx.NewEventRepo(docDB)
	stats := syncx.NewStatsRepo(docDB)

	store := progress.NewStore(progress.NewDocRepo(docDB), rel)
	recommender := progress.NewNextStepRecommender(content, store.Snapshot)
	store.SetRebalancer(recommender)

	// --- Telemetry ---
	transport := telemetry.NewTransport(cfg.CollectorURL)
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		transport.Close(flushCtx)
	}()

	// --- Assessment + proctoring wiring ---
	assessments := &api.Assessments{
		Content:   content,
		Bank:      bank,
		Attempts:  attempts,
		Progress:  store,
		Countdown: assess.NewCountdown(),
		Events:    events,
		TimeLimit: cfg.AttemptTimeLimit,
	}
	mgr := proctor.NewManager(transport, store,
		proctor.WithLockHook(assessments.AbortForLockout))
	assessments.Proctor = mgr

	// Opportunistic reconcile cycle for failed progress writes.
	go store.Run(context.Background(), cfg.ReconcileInterval)

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, auth.LoginCreds{
		AdminUser:     cfg.AdminUser,
		AdminPassHash: cfg.AdminPassHash,
	}))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(rbac.Require("progress:write-own")).
			Put("/progress/{courseID}/{moduleID}", api.ProgressPutHandler(store))
		pr.With(rbac.Require("progress:read-own")).
			Get("/progress/{courseID}", api.ProgressGetHandler(store))
		pr.With(rbac.RequireAny("progress:read-own", "progress:read-all")).
			Get("/courses/{courseID}/modules", api.CourseModulesHandler(content, store, recommender))

		pr.With(rbac.Require("assessment:start")).
			Post("/assessment/start", assessments.StartHandler())
		pr.With(rbac.Require("assessment:save")).
			Post("/assessment/attempts/{attemptID}/answers", assessments.SaveAnswersHandler())
		pr.With(rbac.Require("assessment:submit")).
			Post("/assessment/submit", assessments.SubmitHandler())

		pr.With(rbac.Require("proctor:report")).
			Post("/proctor/ingest", api.ProctorIngestHandler(mgr, events))
		pr.With(rbac.Require("experience:report")).
			Post("/experience/sync", api.ExperienceSyncHandler(stats, store))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (mode=%s, doc=%s, relational=%v)",
		cfg.HTTPAddr, cfg.Mode, cfg.DocDriver, rel != nil)

	// Serve off the main goroutine so a shutdown signal drains the server and
	// lets the deferred telemetry flush run before exit.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case err := <-errCh:
		log.Printf("server: %v", err)
	case <-sigCtx.Done():
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutCancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}
}
