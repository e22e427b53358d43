package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	// Document/offline target (always on).
	DocDriver string
	DocDSN    string

	// Relational target (UUID-keyed); empty DSN disables it.
	RelationalDSN string

	// External telemetry collector; empty means events stay in the local log.
	CollectorURL string

	// Listen address for the standalone collector daemon.
	CollectorAddr string

	AuthSecret    string
	AdminUser     string
	AdminPassHash string // bcrypt

	ReconcileInterval time.Duration
	AttemptTimeLimit  time.Duration

	CORSOriginsOnline  []string
	CORSOriginsOffline []string
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		Mode:     mode,
		HTTPAddr: addr,

		DocDriver:     envOr("DOC_DB_DRIVER", "sqlite"),
		DocDSN:        envOr("DOC_DB_DSN", ""),
		RelationalDSN: envOr("RELATIONAL_DSN", ""),

		CollectorURL:  envOr("COLLECTOR_URL", ""),
		CollectorAddr: envOr("COLLECTOR_ADDR", ":8090"),

		AuthSecret:    envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		AdminUser:     envOr("ADMIN_USER", "admin"),
		AdminPassHash: envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),

		ReconcileInterval: envDuration("RECONCILE_INTERVAL", 30*time.Second),
		AttemptTimeLimit:  envDuration("ATTEMPT_TIME_LIMIT", 10*time.Minute),

		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://coach.cybercoach.app"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:5173"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
