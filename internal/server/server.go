// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/gamestore/internal/auth"
	"github.com/vyrodovalexey/gamestore/internal/config"
	"github.com/vyrodovalexey/gamestore/internal/handler"
	"github.com/vyrodovalexey/gamestore/internal/middleware"
	"github.com/vyrodovalexey/gamestore/internal/telemetry"
)

// API route prefixes.
const (
	apiPrefix   = "/api/v1"
	adminPrefix = "/admin"
)

// Handlers are the route groups mounted by the server. Nil groups are
// skipped.
type Handlers struct {
	Health  *handler.HealthHandler
	Cart    *handler.CartHandler
	Session *handler.SessionHandler
	Catalog *handler.CatalogHandler
	Admin   *handler.AdminHandler
	Events  *handler.WebSocketHandler
}

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	config     *config.Config
	logger     *zap.Logger
	wsHandler  *handler.WebSocketHandler
}

// New creates a new Server instance. sess is the storefront session: it
// guards the admin routes and names the acting user in request logs. With
// a nil session the admin routes are not mounted.
func New(cfg *config.Config, logger *zap.Logger, handlers Handlers, sess auth.SessionSource) *Server {
	router := mux.NewRouter()

	s := &Server{
		router:    router,
		config:    cfg,
		logger:    logger,
		wsHandler: handlers.Events,
	}

	var adminGuard auth.Authenticator
	if sess != nil {
		adminGuard = auth.NewSessionAuthenticator(sess)
	}

	s.setupMiddleware(sess)
	s.setupRoutes(handlers, adminGuard)
	s.setupHTTPServer()

	return s
}

// corsPolicy allows the configured origins to call the API with the headers
// the storefront views send.
func (s *Server) corsPolicy() middleware.CORSPolicy {
	return middleware.CORSPolicy{
		Origins: s.config.CORSOrigins,
		Methods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
		},
		Headers: []string{
			"Content-Type",
			middleware.RequestIDHeader,
		},
		MaxAge: 10 * time.Minute,
	}
}

// setupMiddleware configures the middleware chain run on matched routes.
func (s *Server) setupMiddleware(sess auth.SessionSource) {
	var users middleware.UserSource
	if sess != nil {
		users = sess
	}

	// First applied is outermost.
	s.router.Use(mux.MiddlewareFunc(middleware.Recovery(s.logger)))
	s.router.Use(otelmux.Middleware(telemetry.ServiceName))
	s.router.Use(mux.MiddlewareFunc(middleware.RequestID()))

	if s.config.MetricsEnabled {
		s.router.Use(mux.MiddlewareFunc(middleware.Metrics()))
	}

	s.router.Use(mux.MiddlewareFunc(middleware.Logging(s.logger, users)))
}

// setupRoutes mounts the health routes, the API, the guarded admin API, the event
// stream and the metrics endpoint.
func (s *Server) setupRoutes(handlers Handlers, adminGuard auth.Authenticator) {
	if handlers.Health != nil {
		handlers.Health.RegisterRoutes(s.router)
	}

	api := s.router.PathPrefix(apiPrefix).Subrouter()

	if handlers.Cart != nil {
		handlers.Cart.RegisterRoutes(api)
	}
	if handlers.Session != nil {
		handlers.Session.RegisterRoutes(api)
	}
	if handlers.Catalog != nil {
		handlers.Catalog.RegisterRoutes(api)
	}

	if handlers.Admin != nil && adminGuard != nil {
		admin := api.PathPrefix(adminPrefix).Subrouter()
		admin.Use(mux.MiddlewareFunc(middleware.Auth(adminGuard, s.logger)))
		handlers.Admin.RegisterRoutes(admin)
	}

	if handlers.Events != nil {
		handlers.Events.RegisterRoutes(s.router)
	}

	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
}

// setupHTTPServer configures the HTTP server. CORS wraps the whole router
// so preflights are answered even for routes registered without OPTIONS.
func (s *Server) setupHTTPServer() {
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           middleware.CORS(s.corsPolicy())(s.router),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		zap.String("address", s.config.Address()),
		zap.String("api_base_url", s.config.APIBaseURL),
		zap.Strings("cors_origins", s.config.CORSOrigins),
		zap.Bool("metrics_enabled", s.config.MetricsEnabled),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server listen and serve: %w", err)
	}

	return nil
}

// Shutdown closes the event streams, then gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if s.wsHandler != nil {
		s.wsHandler.CloseAllConnections()
	}

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
