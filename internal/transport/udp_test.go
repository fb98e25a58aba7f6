package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/muurk/ssdp/internal/protocol"
)

type recorder struct {
	mu       sync.Mutex
	messages chan protocol.Message
	errs     []error
}

func newRecorder() *recorder {
	return &recorder{messages: make(chan protocol.Message, 16)}
}

func (r *recorder) HandleMessage(m protocol.Message) {
	r.messages <- m
}

func (r *recorder) HandleError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

// openOrSkip opens a transport on a random group port, skipping when the
// host cannot join multicast groups.
func openOrSkip(t *testing.T, h Handler, onDiscard func(Socket, error)) *UDP {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping socket test in short mode")
	}

	probe, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		t.Skipf("udp4 unavailable: %v", err)
	}
	port := probe.LocalAddr().(*net.UDPAddr).Port
	probe.Close()

	cfg := Config{
		Group:     &net.UDPAddr{IP: net.ParseIP(protocol.DefaultAddress).To4(), Port: port},
		OnDiscard: onDiscard,
	}
	u, err := Open(context.Background(), cfg, h)
	if err != nil {
		t.Skipf("multicast unavailable: %v", err)
	}
	t.Cleanup(func() { u.Close() })
	return u
}

func loopback(u *UDP) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: u.LocalAddr().Port}
}

func TestUDP_UnicastReceive(t *testing.T) {
	rec := newRecorder()
	receiver := openOrSkip(t, rec, nil)
	sender := openOrSkip(t, newRecorder(), nil)

	resp := protocol.NewSearchResponse()
	resp.SetSubject("urn:x")
	resp.SetUSN("uuid:1")
	if err := sender.Send(resp.Bytes(), loopback(receiver)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case m := <-rec.messages:
		r, ok := m.(*protocol.SearchResponse)
		if !ok {
			t.Fatalf("message type = %T, want *protocol.SearchResponse", m)
		}
		if r.USN() != "uuid:1" {
			t.Errorf("USN() = %q, want uuid:1", r.USN())
		}
		if !r.Address.Equal(net.IPv4(127, 0, 0, 1)) {
			t.Errorf("Address = %v, want 127.0.0.1", r.Address)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestUDP_SearchRequestTaggedWithSender(t *testing.T) {
	rec := newRecorder()
	receiver := openOrSkip(t, rec, nil)
	sender := openOrSkip(t, newRecorder(), nil)

	req := protocol.NewSearchRequest()
	if err := sender.Send(req.Bytes(), loopback(receiver)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case m := <-rec.messages:
		r := m.(*protocol.SearchRequest)
		if r.Sender == nil || r.Sender.Port != sender.LocalAddr().Port {
			t.Errorf("Sender = %v, want port %d", r.Sender, sender.LocalAddr().Port)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestUDP_GarbageDiscarded(t *testing.T) {
	rec := newRecorder()
	discarded := make(chan error, 1)
	receiver := openOrSkip(t, rec, func(_ Socket, err error) { discarded <- err })
	sender := openOrSkip(t, newRecorder(), nil)

	if err := sender.Send([]byte("GARBAGE\r\n\r\n"), loopback(receiver)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	select {
	case err := <-discarded:
		if !errors.Is(err, protocol.ErrUnsupportedMessageType) {
			t.Errorf("discard error = %v, want ErrUnsupportedMessageType", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("garbage datagram was not discarded")
	}

	// The loop keeps running after a bad datagram
	n := protocol.NewNotification()
	n.SetUSN("uuid:after")
	if err := sender.Send(n.Bytes(), loopback(receiver)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	select {
	case m := <-rec.messages:
		if m.(*protocol.Notification).USN() != "uuid:after" {
			t.Errorf("unexpected message %v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop stopped after garbage")
	}
}

func TestUDP_CloseStopsLoops(t *testing.T) {
	rec := newRecorder()
	u := openOrSkip(t, rec, nil)

	done := make(chan error, 1)
	go func() { done <- u.Close() }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Close() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close() did not return")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := u.Wait(ctx); err != nil {
		t.Errorf("Wait() error = %v", err)
	}

	if err := u.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := u.Send([]byte("x"), loopback(u)); !IsClosed(err) {
		t.Errorf("Send() after Close() error = %v, want closed", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errs) != 0 {
		t.Errorf("HandleError called %d times on close, want 0", len(rec.errs))
	}
}

// closingHandler closes the transport from inside the receive loop.
type closingHandler struct {
	u      chan *UDP
	once   sync.Once
	closed chan error
}

func (h *closingHandler) HandleMessage(protocol.Message) {
	h.once.Do(func() { h.closed <- (<-h.u).Close() })
}

func (h *closingHandler) HandleError(error) {}

func TestUDP_CloseFromHandler(t *testing.T) {
	h := &closingHandler{u: make(chan *UDP, 1), closed: make(chan error, 1)}
	u := openOrSkip(t, h, nil)
	h.u <- u
	sender := openOrSkip(t, newRecorder(), nil)

	n := protocol.NewNotification()
	n.SetType(protocol.Alive)
	n.SetUSN("uuid:close")
	if err := sender.Send(n.Bytes(), loopback(u)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case err := <-h.closed:
		if err != nil {
			t.Errorf("Close() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close() called from a handler did not return")
	}

	select {
	case <-u.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("receive loops still running after Close()")
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{1, 10 * time.Millisecond},
		{2, 20 * time.Millisecond},
		{4, 80 * time.Millisecond},
		{7, 640 * time.Millisecond},
		{8, time.Second},
		{100, time.Second},
	}
	for _, tt := range tests {
		if got := retryDelay(tt.failures); got != tt.want {
			t.Errorf("retryDelay(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleepContext(ctx, time.Minute) {
		t.Error("sleepContext() = true after cancel, want false")
	}
	if !sleepContext(context.Background(), time.Millisecond) {
		t.Error("sleepContext() = false, want true")
	}
}

func TestError(t *testing.T) {
	err := &Error{Op: "send", Socket: Unicast, Err: net.ErrClosed}
	if got := err.Error(); got != "ssdp send on unicast socket: use of closed network connection" {
		t.Errorf("Error() = %q", got)
	}
	if !IsClosed(err) {
		t.Error("IsClosed() = false for wrapped net.ErrClosed")
	}
	if Socket(7).String() != "socket(7)" {
		t.Errorf("Socket(7).String() = %q", Socket(7).String())
	}
}
