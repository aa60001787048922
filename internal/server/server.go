// Package server exposes the HTTP API: content unlocking, summarization,
// chat, the saved-article library, usage, discover, billing, and admin
// cache control.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"nook/internal/auth"
	"nook/internal/billing"
	"nook/internal/config"
	"nook/internal/feeds"
	"nook/internal/llm"
	"nook/internal/logger"
	"nook/internal/resolve"
	"nook/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Deps carries the services the server routes to.
type Deps struct {
	Store    *store.Store
	Resolver *resolve.Resolver
	Chain    *llm.Chain
	Verifier auth.Verifier
	Quota    *auth.Quota
	Billing  *billing.Service
	Feeds    *feeds.Aggregator
	CacheTTL time.Duration
}

// Server is the HTTP server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	config     config.Server
	deps       Deps
	log        *slog.Logger
}

// New creates a new HTTP server instance.
func New(cfg config.Server, deps Deps) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		deps:   deps,
		log:    logger.Get(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Signature"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/status", s.handleStatus)

	// Payment events authenticate by signature, not bearer token.
	s.router.Post("/api/payments/verify", s.handlePaymentEvent)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(s.deps.Verifier, s.deps.Store))

		r.Post("/unlock", s.handleUnlock)
		r.Post("/summarize", s.handleSummarize)
		r.Post("/chat", s.handleChat)

		r.Route("/articles", func(r chi.Router) {
			r.Get("/", s.handleListArticles)
			r.Post("/", s.handleSaveArticle)
			r.Delete("/{id}", s.handleDeleteArticle)
		})

		r.Get("/usage", s.handleUsage)
		r.Get("/discover", s.handleDiscover)

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Post("/cache/flush", s.handleCacheFlush)
		})
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server",
		"addr", s.httpServer.Addr,
		"read_timeout", s.config.ReadTimeout,
		"write_timeout", s.config.WriteTimeout,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server gracefully...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing).
func (s *Server) Router() *chi.Mux {
	return s.router
}
