// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/robsonsouzans/listans/internal/auth"
	"github.com/robsonsouzans/listans/internal/config"
	"github.com/robsonsouzans/listans/internal/handler"
	"github.com/robsonsouzans/listans/internal/middleware"
	"github.com/robsonsouzans/listans/internal/model"
	"github.com/robsonsouzans/listans/internal/shopping"
	"github.com/robsonsouzans/listans/internal/store"
)

// Server represents the HTTP server.
type Server struct {
	httpServer  *http.Server
	probeServer *http.Server
	router      *mux.Router
	config      *config.Config
	logger      *zap.Logger
	wsHandler   *handler.WebSocketHandler
}

// New creates a new Server instance.
func New(
	cfg *config.Config,
	logger *zap.Logger,
	st store.Store,
	service *shopping.Service,
	gateway *auth.Gateway,
	sessions *auth.SessionRegistry,
) *Server {
	router := mux.NewRouter()

	s := &Server{
		router: router,
		config: cfg,
		logger: logger,
	}

	s.setupMiddleware(st, sessions)
	s.setupRoutes(st, service, gateway, sessions)
	s.setupHTTPServer()
	s.setupProbeServer()

	return s
}

// setupMiddleware configures the middleware chain.
func (s *Server) setupMiddleware(st store.Store, sessions *auth.SessionRegistry) {
	allowedOrigins := []string{"*"}
	allowedMethods := []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
	}
	allowedHeaders := []string{
		"Content-Type",
		"Authorization",
		middleware.RequestIDHeader,
	}

	// Apply middleware in order (first applied = outermost)
	s.router.Use(mux.MiddlewareFunc(middleware.Recovery(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.RequestID()))

	// Add metrics middleware if enabled
	if s.config.MetricsEnabled {
		s.router.Use(mux.MiddlewareFunc(middleware.Metrics()))
	}

	s.router.Use(mux.MiddlewareFunc(middleware.Logging(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.CORS(allowedOrigins, allowedMethods, allowedHeaders)))

	authenticator := auth.NewSessionAuthenticator(st, sessions)
	s.router.Use(mux.MiddlewareFunc(middleware.Auth(authenticator, s.logger)))
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes(
	st store.Store,
	service *shopping.Service,
	gateway *auth.Gateway,
	sessions *auth.SessionRegistry,
) {
	s.router.HandleFunc("/health", s.healthCheck).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.readyCheck).Methods(http.MethodGet)

	authHandler := handler.NewAuthHandler(gateway, s.logger)
	authHandler.RegisterRoutes(s.router)

	shoppingHandler := handler.NewShoppingHandler(service, st, s.logger)
	shoppingHandler.RegisterRoutes(s.router)

	s.wsHandler = handler.NewWebSocketHandler(service, sessions, st, s.logger)
	s.wsHandler.RegisterRoutes(s.router)

	// Metrics endpoint
	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
}

// healthCheck handles GET /health requests.
func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	response := handler.HealthResponse{
		Status:  "healthy",
		Version: handler.Version,
	}
	s.writeJSON(w, http.StatusOK, model.NewSuccessResponse(response))
}

// readyCheck handles GET /ready requests.
func (s *Server) readyCheck(w http.ResponseWriter, _ *http.Request) {
	response := handler.ReadyResponse{
		Status: "ready",
	}
	s.writeJSON(w, http.StatusOK, model.NewSuccessResponse(response))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

// setupHTTPServer configures the HTTP server.
func (s *Server) setupHTTPServer() {
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}
}

// setupProbeServer configures the dedicated probe listener when enabled.
// Probes bypass the main middleware chain so a wedged API surface does not
// take the liveness endpoint down with it.
func (s *Server) setupProbeServer() {
	if s.config.ProbePort == 0 {
		return
	}

	probeRouter := mux.NewRouter()
	probeRouter.HandleFunc("/health", s.healthCheck).Methods(http.MethodGet)
	probeRouter.HandleFunc("/ready", s.readyCheck).Methods(http.MethodGet)

	s.probeServer = &http.Server{
		Addr:              s.config.ProbeAddress(),
		Handler:           probeRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
}

// Start starts the HTTP server and, when configured, the probe server.
// It blocks until the main server stops.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		zap.String("address", s.config.Address()),
		zap.Bool("metrics_enabled", s.config.MetricsEnabled),
		zap.String("store_backend", s.config.StoreBackend),
	)

	if s.probeServer != nil {
		go func() {
			s.logger.Info("starting probe server", zap.String("address", s.config.ProbeAddress()))
			if err := s.probeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("probe server error", zap.Error(err))
			}
		}()
	}

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	// Close all WebSocket connections first
	if s.wsHandler != nil {
		s.wsHandler.CloseAllConnections()
	}

	if s.probeServer != nil {
		if err := s.probeServer.Shutdown(ctx); err != nil {
			s.logger.Warn("probe server shutdown failed", zap.Error(err))
		}
	}

	// Shutdown HTTP server
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Router returns the server's router for testing purposes.
func (s *Server) Router() *mux.Router {
	return s.router
}
