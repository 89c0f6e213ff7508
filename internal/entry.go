// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/tessera/internal/api"
	"github.com/starford/tessera/internal/backup"
	"github.com/starford/tessera/internal/index"
	"github.com/starford/tessera/internal/noteservice"
	"github.com/starford/tessera/internal/render"
	"github.com/starford/tessera/internal/sse"
	"github.com/starford/tessera/internal/storage"
)

// Runtime holds the wired components for one notes root.
type Runtime struct {
	Config  *Config
	Layout  Layout
	Logger  *slog.Logger
	Service *noteservice.Service
	Broker  *sse.Broker

	app   *application
	level *slog.LevelVar
	db    *index.DB
}

// Open wires storage, backups, the index and the note service for the
// configured notes root. Close must be called to release them.
func Open(opts ...Option) (*Runtime, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	level := new(slog.LevelVar)
	level.Set(cfg.App.LogLevel)
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	layout, err := NewLayout(cfg.Data.Dir, cfg.Notes.Path)
	if err != nil {
		return nil, err
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("notes_root", layout.NotesRoot),
		slog.String("index_path", layout.IndexPath),
		slog.String("backup_dir", layout.BackupDir),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(layout.NotesRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create notes dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(layout.IndexPath), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	backups, err := backup.NewManager(layout.BackupDir, layout.NotesRoot, logger, backup.WithKeep(cfg.Backup.Keep))
	if err != nil {
		return nil, fmt.Errorf("init backups: %w", err)
	}
	store, err := storage.NewFS(layout.NotesRoot, backups, logger)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.OpenOrReset(layout.IndexPath, logger)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	engine := index.NewEngine(db, store, render.Markdown, logger,
		index.WithHotSet(cfg.Index.HotSet),
		index.WithQuickCheckSample(cfg.Index.QuickCheckSample))
	broker := sse.NewBroker(2 * time.Second)
	svc := noteservice.NewService(store, backups, engine, logger,
		noteservice.WithEvents(broker),
		noteservice.WithSelfWriteWindow(cfg.Watcher.SelfWriteWindow),
		noteservice.WithMaxCandidates(cfg.Index.MaxCandidates))

	return &Runtime{
		Config:  cfg,
		Layout:  layout,
		Logger:  logger,
		Service: svc,
		Broker:  broker,
		app:     app,
		level:   level,
		db:      db,
	}, nil
}

// Close stops background work and releases the index.
func (rt *Runtime) Close() {
	if err := rt.Service.Close(); err != nil {
		rt.Logger.Warn("background work ended with error", slog.String("error", err.Error()))
	}
	rt.Broker.Close()
	if err := rt.db.Close(); err != nil {
		rt.Logger.Warn("index close failed", slog.String("error", err.Error()))
	}
}

// reload re-reads a reloadable configuration and applies the log level.
func (rt *Runtime) reload() {
	h := rt.app.holder
	if h == nil {
		rt.Logger.Info("config reload requested but config is not reloadable")
		return
	}
	if err := h.Reload(); err != nil {
		rt.Logger.Error("config reload failed", slog.String("error", err.Error()))
		return
	}
	next := h.Get()
	rt.level.Set(next.App.LogLevel)
	rt.Logger.Info("config reloaded", slog.String("log_level", next.App.LogLevel.String()))
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	rt, err := Open(opts...)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := rt.Config
	logger := rt.Logger
	svc := rt.Service

	svc.Startup(ctx)

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, rt.Broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := svc.List(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	// stop ends the watcher once the HTTP server has shut down.
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	// Start file watcher; external edits schedule a background resync.
	if cfg.Watcher.Enabled {
		g.Go(func() error {
			err := index.Watch(gCtx, rt.Layout.NotesRoot, logger, index.WatchOptions{
				Debounce: cfg.Watcher.Debounce,
				Suppress: svc.SelfWriting,
			}, svc.ExternalChange)
			if err != nil {
				logger.Warn("file watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown and reload signals.
	g.Go(func() error {
		defer stop()
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(quit)

	wait:
		for {
			select {
			case sig := <-quit:
				if sig == syscall.SIGHUP {
					rt.reload()
					continue
				}
				logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
				break wait
			case <-gCtx.Done():
				logger.Info("Context cancelled, initiating shutdown")
				break wait
			}
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
