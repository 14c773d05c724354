// Package api provides the HTTP status and audit surface for Door Sentinel.
//
// It exposes the live authentication and door state, the recent access
// event log, and aggregate statistics to local monitoring tools. The
// service is designed to bind a loopback or trusted LAN address; there
// is no authentication layer.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/door-sentinel/internal/authflow"
	"github.com/nerrad567/door-sentinel/internal/door"
	"github.com/nerrad567/door-sentinel/internal/identity"
	"github.com/nerrad567/door-sentinel/internal/infrastructure/config"
	"github.com/nerrad567/door-sentinel/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// healthProbeTimeout bounds each dependency probe made by /healthz.
const healthProbeTimeout = 2 * time.Second

// AuthSource reports the current authentication session state.
// Satisfied by *authflow.Engine.
type AuthSource interface {
	Snapshot() authflow.Snapshot
}

// DoorSource reports the current door state.
// Satisfied by *door.Controller.
type DoorSource interface {
	Status() door.Status
}

// HealthChecker is implemented by infrastructure components that can
// verify their own liveness (database, fingerprint sensor, MQTT broker).
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Check pairs a health checker with the component name reported by /healthz.
type Check struct {
	Name    string
	Checker HealthChecker
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Auth    AuthSource
	Door    DoorSource
	Events  identity.EventStore
	Checks  []Check
	Version string
}

// Server is the HTTP API server for Door Sentinel.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	auth    AuthSource
	door    DoorSource
	events  identity.EventStore
	checks  []Check
	version string
	server  *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("auth source is required")
	}
	if deps.Door == nil {
		return nil, fmt.Errorf("door source is required")
	}
	if deps.Events == nil {
		return nil, fmt.Errorf("event store is required")
	}

	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		auth:    deps.Auth,
		door:    deps.Door,
		events:  deps.Events,
		checks:  deps.Checks,
		version: deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
