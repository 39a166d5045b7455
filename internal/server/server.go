// Package server assembles the HTTP surface: routing, CORS, rate limits,
// and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/3leaps/commundetect/internal/config"
	"github.com/3leaps/commundetect/internal/metrics"
	"github.com/3leaps/commundetect/internal/server/handlers"
	"github.com/3leaps/commundetect/internal/server/middleware"
)

// BasePath is the service namespace all task routes live under.
const BasePath = "/cd"

// Server is the HTTP front end.
type Server struct {
	httpServer *http.Server
	router     chi.Router
	logger     *zap.Logger
}

// New wires the routes. m may be nil to disable the metrics endpoint.
func New(cfg *config.Config, h *handlers.Handler, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS", "HEAD", "PUT", "POST", "DELETE"},
		AllowedHeaders: []string{"Origin", "payload", "Content-Type",
			"Access-Control-Allow-Headers", "Authorization", "X-Requested-With"},
		ExposedHeaders: []string{"Location"},
	}))

	submitLimit := middleware.NewLimiter(cfg.Limits.SubmitPerSecond, cfg.Limits.SubmitBurst)
	pollLimit := middleware.NewLimiter(cfg.Limits.PollPerSecond, cfg.Limits.PollBurst)

	r.Route(BasePath+"/v1", func(r chi.Router) {
		r.With(submitLimit.Middleware).Post("/", h.Submit)
		r.Options("/", allowMethods("POST, OPTIONS"))

		// Literal route; must not be captured by the {id} pattern.
		r.With(pollLimit.Middleware).Get("/status", h.ServerStatus)
		r.Options("/status", allowMethods("GET, OPTIONS"))

		r.With(pollLimit.Middleware).Get("/{id}", h.TaskStatus)
		r.With(pollLimit.Middleware).Delete("/{id}", h.TaskDelete)
		r.Options("/{id}", allowMethods("GET, OPTIONS, DELETE"))
	})

	if m != nil {
		r.Handle("/metrics", m.Handler())
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      r,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		router: r,
		logger: logger,
	}
}

// allowMethods answers a CORS preflight with the route's supported verbs.
func allowMethods(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
