// Package server exposes the retrieval service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/knakagawa/retrieval/internal/auth"
	"github.com/knakagawa/retrieval/internal/cache"
	"github.com/knakagawa/retrieval/internal/ingestion"
	"github.com/knakagawa/retrieval/internal/service"
)

// HTTPServer wraps an HTTP server exposing the search API
type HTTPServer struct {
	server *http.Server
	router *chi.Mux
	logger *slog.Logger
}

// HTTPServerConfig holds configuration for the HTTP server
type HTTPServerConfig struct {
	Port           int
	Logger         *slog.Logger
	AllowedOrigins []string
	AdminAPIKey    string
	JWTManager     *auth.JWTManager

	Search    *service.SearchService
	Knowledge *service.KnowledgeBaseService
	Analytics *service.AnalyticsService
	Cache     *cache.ResponseCache
	Defaults  service.SearchRequest
}

// NewHTTPServer creates a new HTTP server with all API routes mounted
func NewHTTPServer(cfg HTTPServerConfig) (*HTTPServer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLoggingMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(corsMiddleware(cfg.AllowedOrigins))

	router.Get("/healthz", healthCheckHandler())
	router.Get("/readyz", readinessCheckHandler())

	h := &handlers{
		search:    cfg.Search,
		knowledge: cfg.Knowledge,
		analytics: cfg.Analytics,
		cache:     cfg.Cache,
		chunker:   ingestion.NewChunker(ingestion.Config{}),
		defaults:  cfg.Defaults,
		logger:    logger,
	}

	router.Route("/api", func(r chi.Router) {
		r.Use(auth.OptionalJWT(cfg.JWTManager))

		r.Post("/search", h.handleSearch)
		r.Get("/search/strategies", h.handleListStrategies)
		r.Post("/feedback", h.handleFeedback)
		r.Get("/settings", h.handleSettings)

		r.Get("/knowledge-bases", h.handleListKnowledgeBases)
		r.Get("/knowledge-bases/{id}", h.handleGetKnowledgeBase)

		r.Get("/analytics/metrics", h.handleMetrics)
		r.Get("/analytics/strategies", h.handleStrategyDistribution)
		r.Get("/analytics/top-queries", h.handleTopQueries)

		// Mutating routes require the admin key
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdminKey(cfg.AdminAPIKey))

			r.Post("/knowledge-bases", h.handleCreateKnowledgeBase)
			r.Delete("/knowledge-bases/{id}", h.handleDeleteKnowledgeBase)
			r.Post("/knowledge-bases/{id}/documents", h.handleIndexDocument)

			r.Get("/cache/stats", h.handleCacheStats)
			r.Delete("/cache", h.handlePurgeCache)
		})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &HTTPServer{
		server: server,
		router: router,
		logger: logger,
	}, nil
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", "address", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// requestLoggingMiddleware logs HTTP requests
func requestLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)

			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", duration,
				"remote_addr", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// corsMiddleware handles CORS headers
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 {
				// If no origins specified, allow all in development
				allowed = true
				origin = "*"
			} else {
				for _, o := range allowedOrigins {
					if o == "*" || o == origin {
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token, X-Request-ID, X-API-Key")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// healthCheckHandler returns a handler for the /healthz endpoint
func healthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

// readinessCheckHandler returns a handler for the /readyz endpoint
func readinessCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ready",
		})
	}
}
