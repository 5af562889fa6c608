package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/muurk/greeac/internal/climate"
	"github.com/muurk/greeac/internal/logging"
	"github.com/muurk/greeac/internal/metrics"
	"github.com/muurk/greeac/internal/protocol"
)

// Controller is what the API needs from climate.Controller.
type Controller interface {
	State() climate.State
	Control(req protocol.Request) (climate.State, error)
	Traits() climate.Traits
	Subscribe() (<-chan climate.State, func())
	LastFrameAge() (time.Duration, bool)
}

// Config holds the server configuration
type Config struct {
	Listen       string
	CertFile     string // TLS is enabled when both files are set
	KeyFile      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// ControlRate caps control requests per second across REST and
	// WebSocket; zero disables the limit. ControlBurst defaults to twice
	// the rate, at least one.
	ControlRate  float64
	ControlBurst int

	// Registry is served on /metrics when non-nil
	Registry *prometheus.Registry
	Metrics  *metrics.AppMetrics
}

// Server serves the HTTP and WebSocket API of one bridge
type Server struct {
	config    Config
	ctrl      Controller
	engine    *gin.Engine
	srv       *http.Server
	tlsConfig *tls.Config
	upgrader  websocket.Upgrader
	limiter   *rate.Limiter

	wg      sync.WaitGroup
	mu      sync.Mutex
	clients map[string]*wsClient
}

// New creates a new Server instance
func New(config Config, ctrl Controller) (*Server, error) {
	var tlsConfig *tls.Config
	if config.CertFile != "" || config.KeyFile != "" {
		var err error
		tlsConfig, err = NewTLSConfig(config.CertFile, config.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	s := &Server{
		config:    config,
		ctrl:      ctrl,
		tlsConfig: tlsConfig,
		clients:   make(map[string]*wsClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API is meant for the LAN; browsers on other origins may connect
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	if config.ControlRate > 0 {
		burst := config.ControlBurst
		if burst <= 0 {
			burst = max(1, int(config.ControlRate*2))
		}
		s.limiter = rate.NewLimiter(rate.Limit(config.ControlRate), burst)
	}
	s.engine = s.routes()
	s.srv = &http.Server{
		Addr:         config.Listen,
		Handler:      s.engine,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		TLSConfig:    tlsConfig,
	}
	return s, nil
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// TLS reports whether the server serves over TLS.
func (s *Server) TLS() bool {
	return s.tlsConfig != nil
}

// Start listens and serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.tlsConfig != nil {
		logging.Info("TLS Configuration", zap.Any("tls_info", GetTLSInfo(s.tlsConfig)))
		ln = tls.NewListener(ln, s.tlsConfig)
	}

	logging.Info("API server listening",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("tls", s.tlsConfig != nil),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server...")

	err := s.srv.Shutdown(ctx)

	// Hijacked WebSocket connections are not tracked by http.Server
	s.mu.Lock()
	for id, c := range s.clients {
		logging.Info("Closing WebSocket client", zap.String("client_id", id))
		c.close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	return err
}

// ActiveClients returns the number of connected WebSocket clients
func (s *Server) ActiveClients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
