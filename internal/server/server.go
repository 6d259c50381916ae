// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	docerr "github.com/docent-dev/docent/pkg/errors"
)

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr   string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// ChatLimit throttles POST /api/v1/chat per client IP.
	ChatLimit RateLimitConfig
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Version string
}

// Server wraps a chi router with huma API and HTTP server.
type Server struct {
	router   chi.Router
	api      huma.API
	cfg      Config
	services *Services
	limiter  *rateLimiter
	done     chan struct{}
}

// New creates a Server with the health, metrics and document routes.
func New(cfg Config, svc *Services) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, docerr.New(docerr.CodeServerConfigInvalid, "listen address is required")
	}
	if svc == nil {
		return nil, docerr.New(docerr.CodeServerConfigInvalid, "services are required")
	}
	if err := cfg.ChatLimit.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	// Answers wait on up to two generator calls.
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 120 * time.Second
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(corsMiddleware(cfg.CORSOrigins))

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	humaConfig := huma.DefaultConfig("Docent", cfg.Version)
	humaConfig.Info.Description = "Question answering grounded in ingested documents"
	api := humachi.New(r, humaConfig)

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*HealthResponse, error) {
		return &HealthResponse{Body: HealthBody{Status: "ok"}}, nil
	})

	srv := &Server{
		router:   r,
		api:      api,
		cfg:      cfg,
		services: svc,
		done:     make(chan struct{}),
	}
	srv.limiter = newRateLimiter(cfg.ChatLimit)
	srv.registerRoutes()

	return srv, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API, e.g. for OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return docerr.Wrapf(err, docerr.CodeServerStartFailure, "listening on %s", s.cfg.ListenAddr)
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	if s.limiter != nil {
		go s.limiter.cleanupLoop(s.done)
	}
	defer close(s.done)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	slog.Info("http server listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return docerr.Wrap(err, docerr.CodeServerStartFailure, "serving http")
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return docerr.Wrap(err, docerr.CodeServerShutdownFailure, "shutting down")
	}
	return <-errCh
}

// HealthBody is the JSON body of the health endpoint response.
type HealthBody struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

// HealthResponse wraps the health check response.
type HealthResponse struct {
	Body HealthBody
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
