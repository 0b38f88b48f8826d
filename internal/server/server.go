// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr   string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RateLimit    RateLimitConfig
	Logger       *slog.Logger
}

// Server wraps a chi router with huma API and HTTP server.
type Server struct {
	router    chi.Router
	api       huma.API
	cfg       Config
	logger    *slog.Logger
	services  *Services
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Server with chi router, huma API, health endpoint, and CORS.
func New(cfg Config) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, mmerr.New(mmerr.CodeServerConfigInvalid, "listen address is required")
	}
	if err := cfg.RateLimit.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 120 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	done := make(chan struct{})
	r := chi.NewRouter()

	// Middleware
	r.Use(recoverJSON(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(cfg.Logger))
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(preflight(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware(cfg.RateLimit, done))

	// Huma API with OpenAPI spec
	humaConfig := huma.DefaultConfig("Magic Matching API", "0.1.0")
	humaConfig.Info.Description = "Person profile ingestion and semantic matching"
	// Response bodies keep the plain wire shape, without $schema links.
	humaConfig.CreateHooks = nil
	api := humachi.New(r, humaConfig)

	// Health endpoint
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*HealthResponse, error) {
		return &HealthResponse{Body: HealthBody{Status: "ok"}}, nil
	})

	return &Server{
		router: r,
		api:    api,
		cfg:    cfg,
		logger: cfg.Logger,
		done:   done,
	}, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API for registering additional operations.
func (s *Server) API() huma.API {
	return s.api
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return mmerr.Errorf(mmerr.CodeServerStartFailure, "listening on %s: %w", s.cfg.ListenAddr, err)
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.Info("server listening", slog.String("addr", ln.Addr().String()))

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return mmerr.Errorf(mmerr.CodeServerStartFailure, "serving: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return mmerr.Errorf(mmerr.CodeServerShutdownFailure, "shutting down: %w", err)
	}

	return <-errCh
}

// Close stops background goroutines owned by the server.
func (s *Server) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// HealthBody is the JSON body of the health endpoint response.
type HealthBody struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

// HealthResponse wraps the health check response.
type HealthResponse struct {
	Body HealthBody
}

// corsHeaders are the request headers browsers may send cross-origin.
var corsHeaders = []string{"Accept", "Authorization", "Content-Type", "apikey", "x-client-info"}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: corsHeaders,
		ExposedHeaders: []string{"Link"},
		MaxAge:         300,
	})
}
