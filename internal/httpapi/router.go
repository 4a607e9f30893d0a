// Package httpapi maps the content pipeline operations onto HTTP routes.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/p-n-ai/pai-content/internal/pipeline"
)

// Checker reports whether a dependency is reachable.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Options configures the router.
type Options struct {
	// CORSOrigins lists allowed browser origins. CORS is disabled when empty.
	CORSOrigins []string
	// Ready is checked by /readyz, keyed by dependency name.
	Ready map[string]Checker
	// MaxUploadBytes bounds request bodies. Defaults to 32 MiB.
	MaxUploadBytes int64
	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration
}

type api struct {
	svc      *pipeline.Service
	maxBytes int64
}

// NewRouter creates the HTTP handler.
func NewRouter(svc *pipeline.Service, opts Options) http.Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	a := &api{svc: svc, maxBytes: opts.MaxUploadBytes}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger, middleware.Recoverer)
	r.Use(middleware.Timeout(opts.Timeout))
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			ExposedHeaders: []string{"Content-Length", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", readyz(opts.Ready))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/context/resolve", a.resolve)

		r.Route("/periods", func(r chi.Router) {
			r.Get("/", a.listPeriods)
			r.Get("/check", a.checkPeriod)
			r.Delete("/", a.deletePeriod)
			r.Post("/upload", a.uploadPeriod)
			r.Put("/", a.replacePeriod)
		})

		r.Post("/topics/validate", a.validateTopics)
		r.Get("/topics/{topicID}/questions", a.questionsForTopic)

		r.Post("/assignments", a.assignTopics)
		r.Get("/assignments", a.topicsForPeriod)

		r.Get("/content/grouped", a.group)

		r.Patch("/items/{name}", a.updateItem)
		r.Delete("/items/{name}", a.deleteItem)
	})

	return r
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func readyz(checks map[string]Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failed := map[string]string{}
		for name, c := range checks {
			if err := c.HealthCheck(ctx); err != nil {
				slog.Warn("readiness check failed", "dependency", name, "error", err)
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			respondJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// requestLogger logs each request with slog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
