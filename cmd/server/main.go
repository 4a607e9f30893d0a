package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-content/internal/content"
	"github.com/p-n-ai/pai-content/internal/curriculum"
	"github.com/p-n-ai/pai-content/internal/hierarchy"
	"github.com/p-n-ai/pai-content/internal/httpapi"
	"github.com/p-n-ai/pai-content/internal/pipeline"
	"github.com/p-n-ai/pai-content/internal/platform/cache"
	"github.com/p-n-ai/pai-content/internal/platform/config"
	"github.com/p-n-ai/pai-content/internal/platform/database"
	"github.com/p-n-ai/pai-content/internal/topic"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Server.RequestLimit + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "store", cfg.Content.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// newLogger builds the process logger from the log settings.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// app is the wired service with the resources it must release on exit.
type app struct {
	handler http.Handler
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type hierarchyStore interface {
	hierarchy.Repository
	hierarchy.Writer
}

type topicStore interface {
	topic.Repository
	topic.Writer
}

type stores struct {
	hierarchy   hierarchyStore
	topics      topicStore
	assignments topic.AssignmentStore
	content     content.Store
}

// newApp connects the configured stores, applies the seed curriculum and
// builds the HTTP handler.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	ready := map[string]httpapi.Checker{}

	var s stores
	switch cfg.Content.Store {
	case config.StorePostgres:
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		ready["database"] = db

		if err := db.Migrate(ctx); err != nil {
			a.close()
			return nil, err
		}
		if s, err = postgresStores(db); err != nil {
			a.close()
			return nil, err
		}
		slog.Info("database connected")
	default:
		ts := topic.NewMemoryStore()
		s = stores{
			hierarchy:   hierarchy.NewMemoryStore(),
			topics:      ts,
			assignments: ts,
			content:     content.NewMemoryStore(),
		}
	}

	if cfg.Cache.Enabled {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			slog.Warn("cache unavailable, serving topic vocabularies uncached", "error", err)
		} else {
			a.closers = append(a.closers, func() { _ = c.Close() })
			ready["cache"] = c
			s.topics = topic.NewCachedRepository(s.topics, c, cfg.Content.VocabularyTTL)
			slog.Info("cache connected")
		}
	}

	if err := seed(ctx, cfg.Content.SeedPath, s); err != nil {
		a.close()
		return nil, err
	}

	svc, err := pipeline.New(pipeline.Deps{
		Hierarchy:   s.hierarchy,
		Topics:      s.topics,
		Assignments: s.assignments,
		Content:     s.content,
	}, pipeline.Config{YearWindow: cfg.Content.YearWindow})
	if err != nil {
		a.close()
		return nil, err
	}

	a.handler = httpapi.NewRouter(svc, httpapi.Options{
		CORSOrigins:    cfg.Server.CORSOrigins,
		Ready:          ready,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		Timeout:        cfg.Server.RequestLimit,
	})
	return a, nil
}

func postgresStores(db *database.DB) (stores, error) {
	hs, err := hierarchy.NewPostgresStore(db.Pool)
	if err != nil {
		return stores{}, err
	}
	ts, err := topic.NewPostgresStore(db.Pool)
	if err != nil {
		return stores{}, err
	}
	cs, err := content.NewPostgresStore(db.Pool)
	if err != nil {
		return stores{}, err
	}
	return stores{hierarchy: hs, topics: ts, assignments: ts, content: cs}, nil
}

// seed applies the exam seed files under dir. A missing directory is skipped.
func seed(ctx context.Context, dir string, s stores) error {
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Warn("seed directory not found, skipping", "path", dir)
		return nil
	}
	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		return err
	}
	if _, err := loader.Apply(ctx, s.hierarchy, s.topics); err != nil {
		return fmt.Errorf("applying seed: %w", err)
	}
	return nil
}
