package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/muurk/ssdp/internal/cache"
	"github.com/muurk/ssdp/internal/logging"
	"github.com/muurk/ssdp/internal/metrics"
	"github.com/muurk/ssdp/internal/protocol"
	"github.com/muurk/ssdp/internal/transport"
)

// DefaultLeeway is the margin applied before renewal and after expiry.
const DefaultLeeway = 5 * time.Second

// Transport sends datagrams. It is opened by Start and closed by Stop.
type Transport interface {
	Send(data []byte, to *net.UDPAddr) error
	Close() error
}

// Dialer opens a transport that feeds received messages to h.
type Dialer func(ctx context.Context, h transport.Handler) (Transport, error)

// Config holds engine settings. The zero value announces on the standard
// SSDP group with the default leeway and the system clock.
type Config struct {
	// Group is the multicast endpoint (default 239.255.255.250:1900)
	Group *net.UDPAddr

	// Interface selects the multicast interface; nil lets the system choose
	Interface *net.Interface

	// Options are the initial behaviour flags
	Options Options

	// Leeway is the renewal and expiry margin (default 5s)
	Leeway time.Duration

	// Signature is the SERVER / USER-AGENT value of built messages
	Signature string

	// Clock is the time source (default: system clock)
	Clock clock.Clock

	// Dial opens the transport (default: the dual UDP sockets)
	Dial Dialer

	// Metrics records engine activity; nil disables metrics
	Metrics *metrics.Metrics

	// OnError receives transport failures that are not caused by Stop
	OnError func(error)
}

type pendingNotification struct {
	n       *protocol.Notification
	persist bool
}

// Engine is an SSDP endpoint. It announces owned notifications, tracks
// notifications observed on the network and answers searches. All state is
// guarded by a single mutex shared by the public API and the receive loops.
type Engine struct {
	config  Config
	builder *protocol.Builder
	clock   clock.Clock
	metrics *metrics.Metrics

	mu        sync.Mutex
	started   bool
	options   Options
	transport Transport
	owned     *cache.Table
	active    *cache.Table
	pending   []pendingNotification
	searches  []*protocol.SearchRequest
	deferred  []protocol.Message

	listenersMu  sync.RWMutex
	listeners    []subscription
	nextListener int
}

// New creates a stopped engine.
func New(config Config) (*Engine, error) {
	if config.Group == nil {
		config.Group = transport.DefaultGroup()
	}
	if config.Group.IP.To4() == nil || !config.Group.IP.IsMulticast() {
		return nil, fmt.Errorf("group address %s is not an IPv4 multicast address", config.Group.IP)
	}
	if config.Group.Port <= 0 || config.Group.Port > 65535 {
		return nil, fmt.Errorf("invalid group port %d", config.Group.Port)
	}
	if config.Leeway < 0 {
		return nil, errors.New("leeway must not be negative")
	}
	if config.Leeway == 0 {
		config.Leeway = DefaultLeeway
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}

	e := &Engine{
		config:  config,
		builder: protocol.NewBuilder(config.Group, config.Signature),
		clock:   config.Clock,
		metrics: config.Metrics,
		options: config.Options,
		owned:   cache.NewTable(),
		active:  cache.NewTable(),
	}
	if e.config.Dial == nil {
		e.config.Dial = e.dialUDP
	}
	return e, nil
}

func (e *Engine) dialUDP(ctx context.Context, h transport.Handler) (Transport, error) {
	tc := transport.Config{
		Group:     e.config.Group,
		Interface: e.config.Interface,
		OnDiscard: func(s transport.Socket, _ error) {
			e.metrics.Discarded(s.String())
		},
	}
	udp, err := transport.Open(ctx, tc, h)
	if err != nil {
		return nil, err
	}
	return udp, nil
}

// Group returns the multicast endpoint the engine announces to.
func (e *Engine) Group() *net.UDPAddr {
	return e.config.Group
}

// Leeway returns the renewal and expiry margin.
func (e *Engine) Leeway() time.Duration {
	return e.config.Leeway
}

// Start opens the transport and flushes queued notifications and searches
// in the order they were queued. Starting a started engine is a no-op.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return nil
	}

	t, err := e.config.Dial(context.Background(), e)
	if err != nil {
		return fmt.Errorf("failed to open transport: %w", err)
	}
	e.transport = t
	e.started = true

	logging.Info("SSDP engine started",
		zap.Stringer("group", e.config.Group),
		zap.Stringer("options", e.options),
		zap.Int("pending_notifications", len(e.pending)),
		zap.Int("pending_searches", len(e.searches)),
	)

	for _, p := range e.pending {
		e.notifyLocked(p.n, p.persist)
	}
	for _, r := range e.searches {
		e.sendLocked(protocol.KindSearchRequest, r.Bytes(), e.config.Group)
	}
	e.pending = nil
	e.searches = nil
	e.updateGaugesLocked()

	return nil
}

// Stop announces byebye for every owned persistent notification, drops
// received messages still waiting for Update, then closes the transport.
// With keepPersistent the notifications are queued again and re-announced by
// the next Start. Stopping a stopped engine is a no-op. Stop may be called
// from a listener.
func (e *Engine) Stop(keepPersistent bool) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil
	}

	for _, entry := range e.owned.Entries() {
		if keepPersistent {
			e.pending = append(e.pending, pendingNotification{n: entry.Notification.Clone(), persist: true})
		}
		entry.Notification.SetType(protocol.ByeBye)
		entry.Build()
		e.sendLocked(protocol.KindNotification, entry.Data, e.config.Group)
	}
	e.owned.Clear()
	e.deferred = nil
	e.updateGaugesLocked()

	e.started = false
	t := e.transport
	e.transport = nil
	e.mu.Unlock()

	// Receive loops may be waiting on e.mu; close only after releasing it
	err := t.Close()
	logging.Info("SSDP engine stopped", zap.Bool("keep_persistent", keepPersistent))
	if err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}

// Started reports whether the engine is running.
func (e *Engine) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// Options returns the current behaviour flags.
func (e *Engine) Options() Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.options
}

// SetOptions replaces the behaviour flags.
func (e *Engine) SetOptions(o Options) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.options = o
}

// ActiveNotifications returns copies of the notifications observed on the
// network, sorted by USN.
func (e *Engine) ActiveNotifications() []*protocol.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot(e.active)
}

// OwnedNotifications returns copies of the persistent notifications this
// endpoint announces, sorted by USN.
func (e *Engine) OwnedNotifications() []*protocol.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot(e.owned)
}

func snapshot(t *cache.Table) []*protocol.Notification {
	entries := t.Entries()
	out := make([]*protocol.Notification, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Notification.Clone())
	}
	return out
}

// sendLocked writes data through the open transport. Failures are logged and
// counted, never returned to the protocol state machine.
func (e *Engine) sendLocked(kind protocol.Kind, data []byte, to *net.UDPAddr) error {
	if e.transport == nil {
		return net.ErrClosed
	}
	err := e.transport.Send(data, to)
	logging.LogSend(to, data, err)
	e.metrics.Sent(kind.String(), err)
	return err
}

func (e *Engine) updateGaugesLocked() {
	e.metrics.SetCacheSizes(e.active.Len(), e.owned.Len())
}
