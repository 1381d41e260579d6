// Package api exposes the exhibit's HTTP surface: the kiosk-facing session
// and dialogue endpoints, the shared installation state, and the operator's
// admin endpoints.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/atelier-anima/anima/internal/dialogue"
	"github.com/atelier-anima/anima/internal/lifecycle"
	"github.com/atelier-anima/anima/internal/models"
	"github.com/atelier-anima/anima/internal/policy"
	"github.com/atelier-anima/anima/internal/store"
)

// DefaultAddr is the default listen address.
const DefaultAddr = ":8080"

// Opts holds server configuration options.
type Opts struct {
	Addr       string
	AdminToken string
}

// Option configures server creation.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithAdminToken guards the /admin routes with a bearer token. Empty leaves
// them open, which is acceptable only on an isolated exhibit network.
func WithAdminToken(token string) Option {
	return func(o *Opts) { o.AdminToken = token }
}

// Server wires the exhibit components behind HTTP handlers.
type Server struct {
	store     store.Store
	lifecycle *lifecycle.Manager
	dialogue  *dialogue.Orchestrator
	policy    *policy.Engine
	watcher   *dialogue.InactivityWatcher
	opts      Opts
	httpSrv   *http.Server
}

// NewServer creates the API server. The watcher may be nil when inactivity
// nudges are disabled.
func NewServer(st store.Store, lm *lifecycle.Manager, orch *dialogue.Orchestrator, pe *policy.Engine, watcher *dialogue.InactivityWatcher, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{store: st, lifecycle: lm, dialogue: orch, policy: pe, watcher: watcher, opts: cfg}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.healthHandler)
	r.Get("/state", s.stateHandler)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSessionHandler)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/question", s.currentQuestionHandler)
			r.Post("/answers", s.submitAnswerHandler)
			r.Post("/end", s.endSessionHandler)
			r.Route("/dialogue", func(r chi.Router) {
				r.Post("/start", s.dialogueStartHandler)
				r.Post("/turn", s.dialogueTurnHandler)
				r.Post("/nudge", s.dialogueNudgeHandler)
			})
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.adminAuth)
		r.Post("/persona/synthesize", s.synthesizeHandler)
		r.Post("/cycle/reset", s.cycleResetHandler)
		r.Post("/policy/cache/clear", s.policyCacheClearHandler)
	})

	return r
}

// Start runs the HTTP server until the context is canceled, then shuts it
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.opts.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("shutting down API server")
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

// requestLogger emits one structured log line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// adminAuth enforces the bearer token on admin routes when configured.
func (s *Server) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AdminToken != "" && r.Header.Get("Authorization") != "Bearer "+s.opts.AdminToken {
			slog.Warn("Server.adminAuth: rejected admin request", "path", r.URL.Path)
			writeJSONResponse(w, http.StatusUnauthorized, models.Error("Unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
