package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/indicator-core/internal/auth"
	"github.com/nerrad567/indicator-core/internal/device"
	"github.com/nerrad567/indicator-core/internal/infrastructure/config"
	"github.com/nerrad567/indicator-core/internal/infrastructure/database"
	"github.com/nerrad567/indicator-core/internal/infrastructure/logging"
	"github.com/nerrad567/indicator-core/internal/mode"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// StateReader is the read side of the mode controller.
type StateReader interface {
	Snapshot() device.State
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	DeviceID string
	Version  string

	// Auth validates tokens and handles operator login. Required.
	Auth *auth.Authenticator

	// State is read by GET /state. Required.
	State StateReader

	// Input receives mode commands and WebSocket presses. Required.
	Input TouchSink

	Thresholds mode.Thresholds

	// History backs GET /history. Optional.
	History device.StateHistoryRepository

	// DB adds pool statistics to GET /metrics. Optional.
	DB *database.DB

	Metrics MetricsSources

	// Hub, when set, is used instead of a server-owned hub. It must be run
	// by the caller. This is how the hub doubles as the panel display.
	Hub *Hub
}

// Server is the HTTP API server for the indicator.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	deviceID   string
	version    string
	auth       *auth.Authenticator
	state      StateReader
	input      TouchSink
	thresholds mode.Thresholds
	history    device.StateHistoryRepository
	db         *database.DB
	metrics    MetricsSources
	tickets    *ticketStore
	startTime  time.Time

	hub         *Hub
	externalHub bool

	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
	mu       sync.Mutex
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Server dependencies; Logger, Auth, State and Input are required
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if deps.State == nil {
		return nil, fmt.Errorf("state reader is required")
	}
	if deps.Input == nil {
		return nil, fmt.Errorf("touch input is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		deviceID:   deps.DeviceID,
		version:    deps.Version,
		auth:       deps.Auth,
		state:      deps.State,
		input:      deps.Input,
		thresholds: deps.Thresholds,
		history:    deps.History,
		db:         deps.DB,
		metrics:    deps.Metrics,
		tickets:    newTicketStore(),
		startTime:  time.Now(),
	}

	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.WS, deps.Logger)
	}
	s.hub.SetTouchSink(deps.Input)
	s.hub.SetSnapshot(func() any { return s.currentState() })

	return s, nil
}

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// The listener is bound before Start returns, so a port conflict is
// reported here; requests are served on a background goroutine until
// Close.
//
// Parameters:
//   - ctx: Parent context for background goroutines (hub, ticket cleanup)
//
// Returns:
//   - error: If the listener cannot be bound
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("binding API listener: %w", err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}
	go s.cleanTicketsLoop(srvCtx)

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	srv := s.server
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS", "address", ln.Addr().String(), "cert", s.cfg.TLS.CertFile)
			err = srv.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)
	s.server = nil
	s.listener = nil
	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
