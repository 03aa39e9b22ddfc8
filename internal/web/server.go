// Package web serves the ingestion API and run reports over HTTP.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/LoanIngest/internal/config"
	"github.com/JonMunkholm/LoanIngest/internal/ingest"
	"github.com/JonMunkholm/LoanIngest/internal/web/middleware"
)

// uploadSlack is allowed on top of the file size limit for multipart framing.
const uploadSlack = 1 << 20

// Server is the HTTP server for the ingestion service.
type Server struct {
	service *ingest.Service
	cfg     config.ServerConfig
	maxFile int64
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a server for svc. maxFile is the largest accepted upload
// in bytes, 0 for unlimited.
func NewServer(svc *ingest.Service, cfg config.ServerConfig, maxFile int64) *Server {
	s := &Server{
		service: svc,
		cfg:     cfg,
		maxFile: maxFile,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.RequestTimeout))
	}
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	// Pages
	s.router.Get("/runs/{ingestionID}", s.handleRunReport)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/clients", s.handleListClients)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{ingestionID}", s.handleGetRun)

		r.With(middleware.APIKeyAuth(s.cfg.APIKeys)).Post("/ingest/{client}", s.handleIngest)
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ingestions.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	return errors.Join(err, s.service.Drain(ctx))
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status     string               `json:"status"`
	Time       time.Time            `json:"time"`
	Ingestions ingest.LimiterStatus `json:"ingestions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Time:       time.Now().UTC(),
		Ingestions: s.service.Limiter().Status(),
	})
}

// writeJSON encodes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
