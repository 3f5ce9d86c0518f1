// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/inventory-store/internal/auth"
	"github.com/vyrodovalexey/inventory-store/internal/config"
	"github.com/vyrodovalexey/inventory-store/internal/handler"
	"github.com/vyrodovalexey/inventory-store/internal/metrics"
	"github.com/vyrodovalexey/inventory-store/internal/middleware"
)

// maxBodyBytes caps request bodies; quantity requests are tiny.
const maxBodyBytes = 1 << 16

// Server represents the HTTP server.
type Server struct {
	httpServer    *http.Server
	router        *mux.Router
	config        *config.Config
	logger        *zap.Logger
	inventory     handler.Inventory
	authenticator auth.Authenticator
	restHandler   *handler.RESTHandler
	feed          *handler.StockFeed
}

// New creates a new Server instance. A nil authenticator leaves the API
// open; a nil recorder disables inventory metrics.
func New(
	cfg *config.Config,
	logger *zap.Logger,
	inv handler.Inventory,
	authenticator auth.Authenticator,
	recorder *metrics.Recorder,
) *Server {
	router := mux.NewRouter()

	s := &Server{
		router:        router,
		config:        cfg,
		logger:        logger,
		inventory:     inv,
		authenticator: authenticator,
	}

	s.setupMiddleware(recorder)
	s.setupRoutes(recorder)
	s.setupHTTPServer()

	return s
}

// setupMiddleware configures the middleware chain.
func (s *Server) setupMiddleware(recorder *metrics.Recorder) {
	allowedOrigins := []string{"*"}
	allowedMethods := []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodOptions,
	}
	allowedHeaders := []string{
		"Content-Type",
		"Authorization",
		auth.APIKeyHeader,
		middleware.RequestIDHeader,
	}

	// First in the chain = outermost.
	chain := []middleware.Middleware{
		middleware.Recovery(s.logger),
		middleware.RequestID(),
	}
	if s.config.MetricsEnabled && recorder != nil {
		chain = append(chain, middleware.Metrics(recorder))
	}
	chain = append(chain,
		middleware.Logging(s.logger),
		middleware.CORS(allowedOrigins, allowedMethods, allowedHeaders),
		middleware.BodyLimit(maxBodyBytes),
	)
	if s.authenticator != nil {
		s.logger.Info("authentication enabled", zap.String("method", string(s.authenticator.Method())))
		chain = append(chain, middleware.Auth(s.authenticator, s.logger))
	}

	s.router.Use(mux.MiddlewareFunc(middleware.Chain(chain...)))
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes(recorder *metrics.Recorder) {
	s.feed = handler.NewStockFeed(s.logger)
	s.feed.RegisterRoutes(s.router)

	s.restHandler = handler.NewRESTHandler(s.inventory, s.logger, handler.Options{
		Path:              s.config.InventoryFile,
		LowStockThreshold: s.config.LowStockThreshold,
		AutoSave:          s.config.AutoSave,
		Recorder:          recorder,
		Publisher:         s.feed,
	})
	s.restHandler.RegisterRoutes(s.router)

	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", recorder.Handler()).Methods(http.MethodGet)
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

// SetReady toggles the readiness probe.
func (s *Server) SetReady(ready bool) {
	s.restHandler.SetReady(ready)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		zap.String("address", s.config.Address()),
		zap.String("inventory_file", s.config.InventoryFile),
		zap.Bool("metrics_enabled", s.config.MetricsEnabled),
		zap.Bool("autosave", s.config.AutoSave),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server listen and serve: %w", err)
	}

	return nil
}

// Shutdown stops accepting traffic, drains the server and writes the
// inventory file one last time.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	s.SetReady(false)

	s.feed.CloseAllConnections()

	shutdownErr := s.httpServer.Shutdown(ctx)
	if shutdownErr != nil {
		shutdownErr = fmt.Errorf("server shutdown: %w", shutdownErr)
	}

	// Persist even when draining timed out.
	if err := s.inventory.Save(s.config.InventoryFile); err != nil {
		s.logger.Error("failed to save inventory on shutdown",
			zap.String("path", s.config.InventoryFile),
			zap.Error(err),
		)
		return errors.Join(shutdownErr, fmt.Errorf("final save: %w", err))
	}
	s.logger.Info("inventory saved", zap.String("path", s.config.InventoryFile))

	if shutdownErr != nil {
		return shutdownErr
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Router returns the server's router for testing purposes.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Feed returns the stock event feed.
func (s *Server) Feed() *handler.StockFeed {
	return s.feed
}
