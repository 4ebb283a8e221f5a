package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/docury/internal/backend"
	"github.com/MikeSquared-Agency/docury/internal/events"
	"github.com/MikeSquared-Agency/docury/internal/store"
)

// Backend is the RAG service the gateway forwards to.
type Backend interface {
	Chat(ctx context.Context, question, sessionID string) (*backend.Relay, error)
	Upload(ctx context.Context, contentType string, body io.Reader) (*backend.Relay, error)
	IndexURL(ctx context.Context, url, sessionID string) (*backend.Relay, error)
}

// Publisher receives one activity per forwarded request.
type Publisher interface {
	PublishActivity(a events.Activity) error
}

// ExchangeLog persists forwarded requests.
type ExchangeLog interface {
	RecordExchange(ctx context.Context, ex store.Exchange) (uuid.UUID, error)
	ListExchanges(ctx context.Context, sessionID string, limit int) ([]store.Exchange, error)
}

type Server struct {
	router    *chi.Mux
	backend   Backend
	events    Publisher
	exchanges ExchangeLog
	apiToken  string
	logger    *slog.Logger

	httpServer *http.Server
}

type Option func(*Server)

// WithEvents publishes gateway activity through p.
func WithEvents(p Publisher) Option {
	return func(s *Server) { s.events = p }
}

// WithExchangeLog records every forwarded request and exposes the
// bearer-protected exchanges endpoint.
func WithExchangeLog(l ExchangeLog, apiToken string) Option {
	return func(s *Server) {
		s.exchanges = l
		s.apiToken = apiToken
	}
}

func NewServer(port int, b Backend, logger *slog.Logger, opts ...Option) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:  router,
		backend: b,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.httpServer = &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: router}

	router.Get("/health", s.health)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.chat)
		r.Post("/upload", s.upload)
		r.Post("/url", s.indexURL)

		if s.exchanges != nil {
			r.With(BearerAuthMiddleware(s.apiToken)).Get("/sessions/{sessionID}/exchanges", s.listExchanges)
		}
	})

	return s
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called, in which case it returns nil.
func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones, which may be
// long-running backend calls, until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
