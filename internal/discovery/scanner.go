package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ssdp/internal/engine"
	"github.com/muurk/ssdp/internal/logging"
	"github.com/muurk/ssdp/internal/protocol"
	"github.com/muurk/ssdp/internal/version"
)

const (
	// DefaultScanTimeout is the default timeout for service discovery
	DefaultScanTimeout = 5 * time.Second
)

// Endpoint is the part of an engine the scanner needs.
type Endpoint interface {
	Subscribe(l engine.Listener) (unsubscribe func())
	SearchSubject(subject string, handler engine.Listener) error
}

// Scanner handles SSDP service discovery
type Scanner struct {
	// Timeout is the maximum time to wait for responses
	Timeout time.Duration

	// Subject is the search target, ssdp:all when empty
	Subject string

	// Endpoint is a running engine to search with. When nil the scanner
	// starts its own engine from Config for the duration of the scan.
	Endpoint Endpoint

	// Config configures the scanner's own engine
	Config engine.Config
}

// NewScanner creates a new SSDP scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
		Subject: protocol.SearchAll,
	}
}

// Scan discovers all services matching the scanner's subject
func (s *Scanner) Scan() ([]*Service, error) {
	return s.ScanWithContext(context.Background())
}

// ScanWithContext discovers services until the timeout or ctx ends.
// Services that leave the network during the scan are not returned.
func (s *Scanner) ScanWithContext(ctx context.Context) ([]*Service, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	var mu sync.Mutex
	services := make(map[string]*Service)

	listener := func(n *protocol.Notification, reason engine.Reason) {
		if !s.matches(n) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		switch reason {
		case engine.Added, engine.Updated:
			svc := NewService(n, time.Now())
			if prev, ok := services[svc.USN]; ok {
				svc.DiscoveredAt = prev.DiscoveredAt
			}
			services[svc.USN] = svc
		case engine.Removed, engine.Expired:
			delete(services, n.USN())
		}
	}

	stop, err := s.run(listener)
	if err != nil {
		return nil, err
	}
	<-ctx.Done()
	stop()

	mu.Lock()
	defer mu.Unlock()
	out := make([]*Service, 0, len(services))
	for _, svc := range services {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].USN < out[j].USN })

	logging.Info("SSDP scan complete",
		zap.String("subject", s.subject()),
		zap.Int("services", len(out)),
	)
	return out, nil
}

// WaitForService waits for a specific service by USN
// Returns the service or an error if not found within timeout
func (s *Scanner) WaitForService(usn string) (*Service, error) {
	return s.WaitForServiceWithContext(context.Background(), usn)
}

// WaitForServiceWithContext waits for a specific service with a custom context
func (s *Scanner) WaitForServiceWithContext(ctx context.Context, usn string) (*Service, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	found := make(chan *Service, 1)
	listener := func(n *protocol.Notification, reason engine.Reason) {
		if n.USN() != usn || (reason != engine.Added && reason != engine.Updated) {
			return
		}
		select {
		case found <- NewService(n, time.Now()):
		default:
		}
	}

	stop, err := s.run(listener)
	if err != nil {
		return nil, err
	}
	defer stop()

	select {
	case svc := <-found:
		return svc, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("service %s not found within timeout", usn)
	}
}

// run subscribes listener and sends the search. The returned stop function
// undoes both.
func (s *Scanner) run(listener engine.Listener) (stop func(), err error) {
	ep := s.Endpoint
	var own *engine.Engine
	if ep == nil {
		cfg := s.Config
		cfg.Options |= engine.ImmediateProcessing | engine.NotifyAll
		if cfg.Signature == "" {
			cfg.Signature = version.Signature()
		}
		e, err := engine.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create engine: %w", err)
		}
		own, ep = e, e
	}

	unsubscribe := ep.Subscribe(listener)

	if own != nil {
		if err := own.Start(); err != nil {
			unsubscribe()
			return nil, fmt.Errorf("failed to start engine: %w", err)
		}
	}

	if err := ep.SearchSubject(s.subject(), listener); err != nil {
		logging.Warn("Search request failed", zap.Error(err))
	}

	return func() {
		unsubscribe()
		if own != nil {
			if err := own.Stop(false); err != nil {
				logging.Warn("Failed to stop scanner engine", zap.Error(err))
			}
		}
	}, nil
}

func (s *Scanner) matches(n *protocol.Notification) bool {
	subject := s.subject()
	return subject == protocol.SearchAll || n.Subject() == subject
}

func (s *Scanner) subject() string {
	if s.Subject == "" {
		return protocol.SearchAll
	}
	return s.Subject
}

func (s *Scanner) timeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultScanTimeout
	}
	return s.Timeout
}

// Scan is a convenience function to scan for all services with a custom timeout
func Scan(timeout time.Duration) ([]*Service, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.Scan()
}

// QuickScan performs a fast scan with a 2-second timeout
func QuickScan() ([]*Service, error) {
	return Scan(2 * time.Second)
}

// FindService searches for a specific service by USN with default timeout
func FindService(usn string) (*Service, error) {
	return NewScanner().WaitForService(usn)
}
