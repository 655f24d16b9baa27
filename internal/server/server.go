package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lexisync/lexisync/internal/config"
	"github.com/lexisync/lexisync/internal/services"
)

// Server wires the HTTP surface: account lifecycle, sync operations and the
// server info endpoint.
type Server struct {
	config   *config.Config
	logger   *slog.Logger
	router   *chi.Mux
	accounts *services.AccountService
	sessions *services.SessionService
	sync     *services.SyncService
}

func NewServer(cfg *config.Config, logger *slog.Logger, accounts *services.AccountService, sessions *services.SessionService, sync *services.SyncService) *Server {
	s := &Server{
		config:   cfg,
		logger:   logger,
		router:   chi.NewRouter(),
		accounts: accounts,
		sessions: sessions,
		sync:     sync,
	}
	s.setupMiddleware()
	s.registerRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(rateLimit(s.config.RateLimitRPS))
}

func (s *Server) registerRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/server/info", s.handleServerInfo)

		r.Route("/account", func(r chi.Router) {
			r.Post("/register/new", s.handleRegister)
			r.Post("/login/key", s.handleLoginKey)
			r.Post("/login/password", s.handleLoginPassword)

			r.Group(func(r chi.Router) {
				r.Use(s.requireSession)
				r.Post("/register/password", s.handleBindPassword)
				r.Post("/logout", s.handleLogout)
				r.Get("/info", s.handleAccountInfo)
			})
		})

		r.Route("/sync", func(r chi.Router) {
			r.Use(s.requireSession)
			r.Post("/lists/changed", s.handleListsChanged)
			r.Post("/lists/deleted", s.handleListsDeleted)
			r.Post("/entries/changed", s.handleEntriesChanged)
			r.Post("/entries/deleted", s.handleEntriesDeleted)
		})
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", s.config.ServerPort),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "port", s.config.ServerPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
