package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"github.com/danghamo/rescueme/internal/api/handlers"
	"github.com/danghamo/rescueme/internal/api/jsonrpcx"
	"github.com/danghamo/rescueme/internal/api/middleware"
	"github.com/danghamo/rescueme/internal/app"
	"github.com/danghamo/rescueme/internal/events"
	"github.com/danghamo/rescueme/pkg/autorouter"
	"github.com/danghamo/rescueme/pkg/config"
	"github.com/danghamo/rescueme/pkg/logger"
	"github.com/danghamo/rescueme/pkg/sse"

	_ "github.com/danghamo/rescueme/docs"
)

// APIPrefix is the path prefix of every JSON-RPC method
const APIPrefix = "/api/v1/"

// Server represents the HTTP server
type Server struct {
	httpServer     *http.Server
	logger         *logger.Logger
	app            *app.App
	mux            *http.ServeMux
	router         *autorouter.AutoRouter
	authMiddleware *middleware.AuthMiddleware
	sseBroadcaster *sse.SSEBroadcaster
}

// NewServer creates the HTTP server on top of an assembled App
func NewServer(cfg *config.Config, a *app.App, log *logger.Logger) (*Server, error) {
	mux := http.NewServeMux()
	apiLogger := log.WithComponent("api")

	sseBroadcaster := sse.NewSSEBroadcaster(apiLogger, middleware.GetDeviceID,
		sse.WithSnapshot(func() jsonrpcx.Notification {
			return jsonrpcx.NewNotification(events.MethodStatusSnapshot, a.Emergency.Status())
		}))

	if err := a.Bus.RegisterSSEHandlers(events.NewSSEEventHandler(sseBroadcaster, apiLogger)); err != nil {
		return nil, fmt.Errorf("failed to register event handlers: %w", err)
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:         cfg.Server.GetServerAddr(),
			Handler:      mux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		logger:         apiLogger,
		app:            a,
		mux:            mux,
		router:         autorouter.NewAutoRouter(mux, autorouter.RegistrationOptions{Prefix: APIPrefix, Logger: apiLogger}),
		authMiddleware: middleware.NewAuthMiddleware(a.Pairer, cfg.Auth.Disabled, apiLogger),
		sseBroadcaster: sseBroadcaster,
	}

	if err := s.setupRoutes(cfg); err != nil {
		return nil, err
	}
	s.setupMiddleware(cfg)

	return s, nil
}

// setupRoutes configures the server routes
func (s *Server) setupRoutes(cfg *config.Config) error {
	// Health check endpoint (pure REST)
	s.mux.HandleFunc("/health", s.healthCheckHandler)

	// Swagger documentation endpoint
	s.mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	a := s.app
	requireAuth := s.authMiddleware.RequireAuth

	groups := []struct {
		name    string
		handler interface{}
		public  bool
	}{
		{"server", handlers.NewServerHandler(cfg.Server, cfg.Storage.Driver), true},
		{"auth", handlers.NewAuthHandler(s.logger, a.Pairer), true},
		{"emergency", handlers.NewEmergencyHandler(s.logger, a.Emergency), false},
		{"location", handlers.NewLocationHandler(s.logger, a.Provider, a.Locations), false},
		{"tracking", handlers.NewTrackingHandler(s.logger, a, a.Tracker, a.Emergency), false},
		{"contact", handlers.NewContactHandler(s.logger, a.Contacts, a.Gateway), false},
		{"route", handlers.NewRouteHandler(s.logger, a.Routes), false},
		{"permission", handlers.NewPermissionHandler(s.logger, a.Permissions), false},
	}

	for _, g := range groups {
		var extra []autorouter.Middleware
		if !g.public {
			extra = append(extra, requireAuth)
		}
		if err := s.router.Register(g.name, g.handler, extra...); err != nil {
			return fmt.Errorf("failed to register %s handlers: %w", g.name, err)
		}
	}

	// SSE endpoint for status updates (uses dedicated SSE auth middleware)
	s.mux.Handle(APIPrefix+"stream/status", s.authMiddleware.RequireSSEAuth(http.HandlerFunc(s.sseBroadcaster.HandleSSE)))

	s.logger.Info("Routes registered", zap.Strings("methods", s.router.Routes()))
	return nil
}

// setupMiddleware applies middleware to all routes
func (s *Server) setupMiddleware(cfg *config.Config) {
	middlewareChain := middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.ErrorAdapter(s.logger),
		middleware.CORS(),
		middleware.RateLimit(s.logger, cfg.Server.RateLimit, cfg.Server.RateBurst),
		middleware.Logging(s.logger),
	)

	s.httpServer.Handler = middlewareChain(s.mux)
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the event router and the HTTP server until ctx is done
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("address", s.httpServer.Addr))

	// Start Watermill router first
	go func() {
		if err := s.app.Bus.Run(ctx); err != nil {
			s.logger.Error("Watermill router error", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		_ = s.Shutdown()
		return err
	}

	return s.Shutdown()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down HTTP server")

	// Shutdown SSE broadcaster first to close client connections
	if s.sseBroadcaster != nil {
		s.logger.Debug("Closing SSE broadcaster")
		s.sseBroadcaster.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// GetAddr returns the server address
func (s *Server) GetAddr() string {
	return s.httpServer.Addr
}

type healthCheck struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]healthCheck `json:"checks"`
}

// healthCheckHandler handles health check requests
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", Checks: map[string]healthCheck{}}
	code := http.StatusOK

	if s.app.Redis != nil {
		if err := s.app.Redis.HealthCheck(r.Context()); err != nil {
			s.logger.Error("Redis health check failed", zap.Error(err))
			resp.Status = "unhealthy"
			resp.Checks["redis"] = healthCheck{Status: "down", Error: err.Error()}
			code = http.StatusServiceUnavailable
		} else {
			resp.Checks["redis"] = healthCheck{Status: "up"}
		}
	} else {
		resp.Checks["storage"] = healthCheck{Status: "memory"}
	}

	resp.Checks["tracking"] = healthCheck{Status: s.app.Tracker.State().String()}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
