// Package api serves the sync engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/tmplsync/internal/engine"
	"github.com/leapstack-labs/tmplsync/internal/notifier"
	"github.com/leapstack-labs/tmplsync/internal/watch"
	"github.com/leapstack-labs/tmplsync/pkg/core"
)

// Server is the HTTP API server.
type Server struct {
	engine   *engine.Engine
	port     int
	watch    bool
	jobsDir  string
	debounce time.Duration
	logger   *slog.Logger
	notifier *notifier.Notifier
}

// Config holds configuration for the API server.
type Config struct {
	Engine *engine.Engine
	Port   int
	// Watch also runs a watcher over JobsDir
	Watch    bool
	JobsDir  string
	Debounce time.Duration
	Logger   *slog.Logger
}

// NewServer creates a new API server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		engine:   cfg.Engine,
		port:     cfg.Port,
		watch:    cfg.Watch,
		jobsDir:  cfg.JobsDir,
		debounce: cfg.Debounce,
		logger:   logger,
		notifier: notifier.New(),
	}
}

// Notifier returns the server's event notifier.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		s.requestLogger,
		middleware.Recoverer,
	)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/events", s.handleEvents)

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleListTemplates)
			r.Get("/{name}/variables", s.handleTemplateVariables)
			r.Get("/{name}/validate", s.handleValidateTemplate)
			r.Post("/{name}/sync", s.handleSyncTemplate)
		})

		r.Put("/implementations/{name}", s.handlePutImplementation)
		r.Post("/items/{name}/rename", s.handleRename)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Get("/{id}", s.handleGetRun)
		})
	})

	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting API server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch {
		w := watch.New(watch.Config{
			Dir:      s.jobsDir,
			Registry: s.engine.Registry(),
			Syncer:   s.engine,
			Debounce: s.debounce,
			OnSync: func(_ string, report *engine.SyncReport, _ error) {
				s.publish(report)
			},
			Logger: s.logger,
		})
		eg.Go(func() error {
			return w.Run(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// requestLogger logs each request through slog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// publish announces a finished run to event subscribers.
func (s *Server) publish(report *engine.SyncReport) {
	if report == nil || report.RunID == "" {
		return
	}
	status := core.RunStatusCompleted
	if run, err := s.engine.Store().GetSyncRun(report.RunID); err == nil {
		status = run.Status
	}
	s.notifier.Publish(notifier.Event{
		Template: report.Template,
		RunID:    report.RunID,
		Status:   status,
		Synced:   len(report.Synced),
		Failed:   len(report.Failed),
	})
}
