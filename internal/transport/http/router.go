// Package httptransport assembles the service's HTTP surface: middleware
// chain, API routes, health and metrics endpoints, and static file serving
// for the stored images.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cardmill/internal/platform/metrics"
	"cardmill/internal/platform/middleware"
	"cardmill/pkg/platform/httputil"
)

// Registrar mounts a feature's endpoints on the router.
type Registrar interface {
	Register(r chi.Router)
}

// Config parameterizes the router.
type Config struct {
	Logger    *slog.Logger
	PublicDir string

	// RequestTimeout bounds each request; image generation needs generous
	// room for the upstream round trip.
	RequestTimeout time.Duration

	// HealthCheck pings the counter store. nil means always healthy.
	HealthCheck func(ctx context.Context) error

	// Metrics records per-route request metrics when set.
	Metrics *metrics.Metrics
}

// NewRouter builds the full HTTP handler tree.
func NewRouter(cfg Config, registrars ...Registrar) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 3 * time.Minute
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Metadata)
	r.Use(middleware.Logger(logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(middleware.Timeout(timeout))

	r.Get("/healthz", healthHandler(cfg.HealthCheck))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, reg := range registrars {
		reg.Register(r)
	}

	if cfg.PublicDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.PublicDir)))
	}

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
