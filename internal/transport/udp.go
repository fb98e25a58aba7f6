package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/net/ipv4"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/ssdp/internal/logging"
	"github.com/muurk/ssdp/internal/protocol"
)

// Handler receives parsed datagrams and receive failures from both loops.
// It is called from the receive goroutines.
type Handler interface {
	HandleMessage(m protocol.Message)
	HandleError(err error)
}

// Config holds socket settings.
type Config struct {
	// Group is the multicast group endpoint (default 239.255.255.250:1900)
	Group *net.UDPAddr

	// Interface selects the multicast interface; nil lets the system choose
	Interface *net.Interface

	// OnDiscard, when set, is called for each datagram that failed to parse
	OnDiscard func(s Socket, err error)
}

// UDP is an open pair of SSDP sockets with their receive loops.
type UDP struct {
	config    Config
	handler   Handler
	multicast *net.UDPConn
	unicast   *net.UDPConn

	cancel    context.CancelFunc
	done      chan struct{}
	waitErr   error
	closeOnce sync.Once
	closeErr  error
}

// DefaultGroup returns the standard SSDP multicast endpoint.
func DefaultGroup() *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(protocol.DefaultAddress).To4(), Port: protocol.DefaultPort}
}

// Open binds both sockets, joins the group and starts the receive loops.
// Cancelling ctx has the same effect as Close.
func Open(ctx context.Context, config Config, handler Handler) (*UDP, error) {
	if config.Group == nil {
		config.Group = DefaultGroup()
	}

	mc, err := listenMulticast(ctx, config.Group, config.Interface)
	if err != nil {
		return nil, &Error{Op: "open", Socket: Multicast, Err: err}
	}

	uc, err := listenUnicast(config.Interface)
	if err != nil {
		mc.Close()
		return nil, &Error{Op: "open", Socket: Unicast, Err: err}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	g, loopCtx := errgroup.WithContext(loopCtx)

	u := &UDP{
		config:    config,
		handler:   handler,
		multicast: mc,
		unicast:   uc,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	// Closing the sockets is what unblocks ReadFromUDP
	context.AfterFunc(loopCtx, func() {
		mc.Close()
		uc.Close()
	})
	g.Go(func() error { return u.receive(loopCtx, Multicast, mc) })
	g.Go(func() error { return u.receive(loopCtx, Unicast, uc) })
	go func() {
		u.waitErr = g.Wait()
		close(u.done)
	}()

	logging.Info("SSDP sockets open",
		zap.Stringer("group", config.Group),
		zap.Stringer("multicast", mc.LocalAddr()),
		zap.Stringer("unicast", uc.LocalAddr()),
	)

	return u, nil
}

func listenMulticast(ctx context.Context, group *net.UDPAddr, iface *net.Interface) (*net.UDPConn, error) {
	lc := net.ListenConfig{Control: reuseControl}
	pc, err := lc.ListenPacket(ctx, "udp4", net.JoinHostPort("", strconv.Itoa(group.Port)))
	if err != nil {
		return nil, fmt.Errorf("failed to bind group port: %w", err)
	}
	conn := pc.(*net.UDPConn)

	p := ipv4.NewPacketConn(conn)
	if err := p.JoinGroup(iface, &net.UDPAddr{IP: group.IP}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to join %s: %w", group.IP, err)
	}
	if err := p.SetMulticastTTL(1); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set multicast TTL: %w", err)
	}
	return conn, nil
}

func listenUnicast(iface *net.Interface) (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("failed to bind unicast socket: %w", err)
	}

	p := ipv4.NewPacketConn(conn)
	if err := p.SetMulticastTTL(1); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set multicast TTL: %w", err)
	}
	// Local listeners, this endpoint included, see our own announcements
	if err := p.SetMulticastLoopback(true); err != nil {
		logging.Debug("Multicast loopback not available", zap.Error(err))
	}
	if iface != nil {
		if err := p.SetMulticastInterface(iface); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to select interface %s: %w", iface.Name, err)
		}
	}
	return conn, nil
}

// receive is the loop for one socket. It returns nil once the socket is
// closed or ctx is done.
func (u *UDP) receive(ctx context.Context, s Socket, conn *net.UDPConn) error {
	buf := make([]byte, protocol.MaxMessageLength)
	failures := 0
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || IsClosed(err) {
				logging.Debug("Receive loop stopped", zap.Stringer("socket", s))
				return nil
			}
			u.handler.HandleError(&Error{Op: "receive", Socket: s, Err: err})
			failures++
			if !sleepContext(ctx, retryDelay(failures)) {
				return nil
			}
			continue
		}
		failures = 0

		data := buf[:n]
		logging.LogDatagram(s.String(), from, data)

		m, err := protocol.ParseBytes(data)
		if err != nil {
			logging.Debug("Datagram discarded",
				zap.Stringer("socket", s),
				zap.Stringer("from", from),
				zap.Error(err),
			)
			if u.config.OnDiscard != nil {
				u.config.OnDiscard(s, err)
			}
			continue
		}

		tag(m, from)
		u.handler.HandleMessage(m)
	}
}

// retryDelay backs off after consecutive receive failures, from 10ms up to 1s.
func retryDelay(failures int) time.Duration {
	d := 10 * time.Millisecond
	for i := 1; i < failures && d < maxRetryDelay; i++ {
		d *= 2
	}
	return min(d, maxRetryDelay)
}

const maxRetryDelay = time.Second

// sleepContext waits for d and reports false if ctx ended first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// tag records where a message came from.
func tag(m protocol.Message, from *net.UDPAddr) {
	switch msg := m.(type) {
	case *protocol.Notification:
		msg.Address = from.IP
	case *protocol.SearchRequest:
		msg.Sender = from
	case *protocol.SearchResponse:
		msg.Address = from.IP
	}
}

// Send writes data to the given endpoint from the unicast socket.
func (u *UDP) Send(data []byte, to *net.UDPAddr) error {
	if _, err := u.unicast.WriteToUDP(data, to); err != nil {
		return &Error{Op: "send", Socket: Unicast, Err: err}
	}
	return nil
}

// Group returns the multicast group endpoint.
func (u *UDP) Group() *net.UDPAddr {
	return u.config.Group
}

// LocalAddr returns the address of the unicast socket.
func (u *UDP) LocalAddr() *net.UDPAddr {
	return u.unicast.LocalAddr().(*net.UDPAddr)
}

// Close closes both sockets. It does not wait for the receive loops, so a
// handler may call it from a receive goroutine; use Wait for that.
// Closing an already closed UDP returns the first result again.
func (u *UDP) Close() error {
	u.closeOnce.Do(func() {
		u.cancel()

		var err error
		for _, c := range []*net.UDPConn{u.multicast, u.unicast} {
			if cerr := c.Close(); cerr != nil && !IsClosed(cerr) {
				err = multierr.Append(err, cerr)
			}
		}
		u.closeErr = err

		logging.Info("SSDP sockets closed", zap.Stringer("group", u.config.Group))
	})
	return u.closeErr
}

// Done is closed once both receive loops have exited.
func (u *UDP) Done() <-chan struct{} {
	return u.done
}

// Wait blocks until both receive loops have exited or ctx is done. It must
// not be called from a handler.
func (u *UDP) Wait(ctx context.Context) error {
	select {
	case <-u.done:
		return u.waitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}
