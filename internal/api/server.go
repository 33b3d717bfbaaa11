package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-tvbridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-tvbridge/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-tvbridge/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-tvbridge/internal/remote"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// TVController is the remote surface the API drives. *remote.Remote satisfies it.
type TVController interface {
	Control(ctx context.Context, key string) bool
	InputText(ctx context.Context, text string) bool
	Power(ctx context.Context) bool
	SetPower(ctx context.Context, on bool) (bool, error)
	Open(ctx context.Context) (bool, error)
	Close() error
	Status() remote.Status
}

// PinSubmitter accepts a PIN for a pairing in progress.
type PinSubmitter interface {
	Submit(ctx context.Context, pin string) error
	Waiting() bool
}

// MessageBus is the MQTT surface used by the WebSocket relay.
type MessageBus interface {
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Remote   TVController

	// Optional.
	Pins    PinSubmitter
	MQTT    MessageBus
	Metrics *metrics.Metrics
	Version string
}

// Server is the HTTP API server.
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	secCfg  config.SecurityConfig
	logger  *logging.Logger
	remote  TVController
	pins    PinSubmitter
	mqtt    MessageBus
	metrics *metrics.Metrics
	version string

	limiter *clientLimiter
	tickets *ticketStore
	hub     *Hub
	opener  opener

	server *http.Server
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Remote == nil {
		return nil, fmt.Errorf("remote is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}

	s := &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		secCfg:  deps.Security,
		logger:  deps.Logger,
		remote:  deps.Remote,
		pins:    deps.Pins,
		mqtt:    deps.MQTT,
		metrics: deps.Metrics,
		version: deps.Version,
		tickets: newTicketStore(),
		hub:     NewHub(deps.WS, deps.Logger),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if deps.Security.RateLimit.Enabled {
		s.limiter = newClientLimiter(deps.Security.RateLimit.RequestsPerMinute, deps.Security.RateLimit.Burst)
	}
	return s, nil
}

// Start subscribes the WebSocket relay and begins listening for HTTP
// connections in a background goroutine. Stop it with Close().
func (s *Server) Start(ctx context.Context) error {
	context.AfterFunc(ctx, s.cancel)
	s.startBackground(s.ctx)

	if err := s.subscribeEvents(); err != nil {
		s.logger.Warn("failed to subscribe to TV events for WebSocket", "error", err)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// startBackground runs the hub, ticket cleanup and limiter cleanup until
// ctx is cancelled.
func (s *Server) startBackground(ctx context.Context) {
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.hub.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.cleanupLoop(ctx)
	}()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then cancels background work including any pairing in progress.
func (s *Server) Close() error {
	s.cancel()

	var err error
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		s.logger.Info("API server shutting down")
		if shutdownErr := s.server.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("shutting down API server: %w", shutdownErr)
		}
	}

	s.opener.wait()
	s.wg.Wait()
	return err
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// HealthCheck verifies the API server is running.
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

// cleanupLoop expires stale WebSocket tickets and idle rate limiters.
func (s *Server) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickets.cleanExpired()
			if s.limiter != nil {
				s.limiter.cleanIdle(limiterIdleTTL)
			}
		}
	}
}
