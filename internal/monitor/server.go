package monitor

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/muurk/ssdp/internal/engine"
	"github.com/muurk/ssdp/internal/logging"
	"github.com/muurk/ssdp/internal/metrics"
	"github.com/muurk/ssdp/internal/protocol"
)

// shutdownTimeout bounds Start's graceful shutdown after ctx ends.
const shutdownTimeout = 10 * time.Second

// Config holds the monitor configuration
type Config struct {
	Listen        string // host:port to listen on
	WebSocketPath string // event stream path (default /events)
	ServicesPath  string // cache snapshot path (default /services)
	MetricsPath   string // Prometheus path (default /metrics); ignored without metrics
	CertPath      string // TLS certificate; TLS is enabled when set with KeyPath
	KeyPath       string
}

// Source is the engine surface the monitor reads from.
type Source interface {
	Subscribe(l engine.Listener) (unsubscribe func())
	ActiveNotifications() []*protocol.Notification
	OwnedNotifications() []*protocol.Notification
}

// Server serves engine state and events over HTTP
type Server struct {
	config    Config
	source    Source
	metrics   *metrics.Metrics
	tlsConfig *tls.Config
	clock     func() time.Time

	httpServer *http.Server
	listener   net.Listener

	unsubscribe func()
	wg          sync.WaitGroup
	mu          sync.Mutex
	clients     map[*client]struct{}
	closed      bool
}

// New creates a Server and subscribes it to the source's events. Metrics may
// be nil.
func New(config Config, source Source, m *metrics.Metrics) (*Server, error) {
	if source == nil {
		return nil, errors.New("monitor requires an event source")
	}
	if config.WebSocketPath == "" {
		config.WebSocketPath = "/events"
	}
	if config.ServicesPath == "" {
		config.ServicesPath = "/services"
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}

	s := &Server{
		config:  config,
		source:  source,
		metrics: m,
		clock:   time.Now,
		clients: make(map[*client]struct{}),
	}

	if config.CertPath != "" || config.KeyPath != "" {
		tlsConfig, err := NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		s.tlsConfig = tlsConfig
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		TLSConfig:         s.tlsConfig,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.unsubscribe = source.Subscribe(s.broadcast)
	return s, nil
}

// Handler returns the monitor's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.config.WebSocketPath, s.handleEvents)
	mux.HandleFunc(s.config.ServicesPath, s.handleServices)
	if s.metrics != nil {
		mux.Handle(s.config.MetricsPath, s.metrics.Handler())
	}
	return logRequests(mux)
}

// Listen binds the listening socket. Start calls it when needed.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	l, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	if s.tlsConfig != nil {
		l = tls.NewListener(l, s.tlsConfig)
	}
	s.listener = l
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	logging.Info("Starting SSDP monitor",
		zap.Stringer("addr", s.listener.Addr()),
		zap.Bool("tls", s.tlsConfig != nil),
		zap.String("events", s.config.WebSocketPath),
		zap.String("services", s.config.ServicesPath),
		zap.Bool("metrics", s.metrics != nil),
	)
	if s.tlsConfig != nil {
		logging.Debug("TLS configuration", zap.Any("tls_info", GetTLSInfo(s.tlsConfig)))
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutdown requested, stopping monitor...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("monitor server failed: %w", err)
	}
}

// Shutdown unsubscribes from the source, stops accepting requests and closes
// every event stream.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	s.unsubscribe()

	err := s.httpServer.Shutdown(ctx)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	// Hijacked websocket connections are not tracked by http.Server
	for _, c := range clients {
		logging.Info("Closing event stream", zap.String("remote_addr", c.remoteAddr))
		c.close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All event streams closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
		err = multierr.Append(err, ctx.Err())
	}

	return err
}

// GetActiveConnections returns the number of open event streams
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) addClient(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if ok {
		s.wg.Done()
	}
}

// broadcast is the engine listener. It never blocks: a client whose queue is
// full loses the event.
func (s *Server) broadcast(n *protocol.Notification, reason engine.Reason) {
	ev := NewEvent(n, reason, s.clock())

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- ev:
		default:
			logging.Warn("Event stream queue full, dropping event",
				zap.String("remote_addr", c.remoteAddr),
				zap.String("usn", ev.USN),
			)
		}
	}
}
