package engine

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/muurk/ssdp/internal/metrics"
	"github.com/muurk/ssdp/internal/protocol"
	"github.com/muurk/ssdp/internal/transport"
)

type sentDatagram struct {
	data string
	to   *net.UDPAddr
}

type fakeTransport struct {
	mu      sync.Mutex
	sent    []sentDatagram
	closed  int
	sendErr error
}

func (f *fakeTransport) Send(data []byte, to *net.UDPAddr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentDatagram{data: string(data), to: to})
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeTransport) datagrams() []sentDatagram {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentDatagram(nil), f.sent...)
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

type recordedEvent struct {
	usn    string
	nts    string
	reason Reason
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) listen(n *protocol.Notification, reason Reason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{usn: n.USN(), nts: n.Type(), reason: reason})
}

func (r *eventRecorder) all() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.events...)
}

type testEngine struct {
	*Engine
	transport *fakeTransport
	clock     *clock.Mock
	events    *eventRecorder
	dials     int
}

func newTestEngine(t *testing.T, opts Options) *testEngine {
	t.Helper()

	te := &testEngine{
		transport: &fakeTransport{},
		clock:     clock.NewMock(),
		events:    &eventRecorder{},
	}
	e, err := New(Config{
		Options:   opts,
		Signature: "test/1.0 SSDP/1.0.3 ssdpctl/test",
		Clock:     te.clock,
		Metrics:   metrics.New(),
		Dial: func(_ context.Context, _ transport.Handler) (Transport, error) {
			te.dials++
			return te.transport, nil
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	te.Engine = e
	e.Subscribe(te.events.listen)
	return te
}

func (te *testEngine) mustStart(t *testing.T) {
	t.Helper()
	if err := te.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

func alive(usn, subject string, maxAge time.Duration) *protocol.Notification {
	n := protocol.NewNotification()
	n.SetType(protocol.Alive)
	n.SetSubject(subject)
	n.SetUSN(usn)
	n.SetMaxAge(maxAge)
	_ = n.Header().Add(protocol.FieldHost, "239.255.255.250:1900")
	n.Address = net.ParseIP("192.168.1.20")
	return n
}

func byebye(usn string) *protocol.Notification {
	n := protocol.NewNotification()
	n.SetType(protocol.ByeBye)
	n.SetUSN(usn)
	n.Address = net.ParseIP("192.168.1.20")
	return n
}

func requester() *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP("192.168.1.30"), Port: 50123}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"custom group", Config{Group: &net.UDPAddr{IP: net.ParseIP("239.1.2.3"), Port: 5000}}, false},
		{"unicast group", Config{Group: &net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: 1900}}, true},
		{"bad port", Config{Group: &net.UDPAddr{IP: net.ParseIP("239.1.2.3"), Port: 0}}, true},
		{"negative leeway", Config{Leeway: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && e.Leeway() != DefaultLeeway {
				t.Errorf("Leeway() = %v, want %v", e.Leeway(), DefaultLeeway)
			}
		})
	}
}

func TestEngine_NotifyBeforeStart(t *testing.T) {
	te := newTestEngine(t, 0)
	n := alive("uuid:1::urn:x", "urn:x", 60*time.Second)

	if err := te.Notify(n, true); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if got := len(te.transport.datagrams()); got != 0 {
		t.Fatalf("sends before Start() = %d, want 0", got)
	}

	te.mustStart(t)

	sent := te.transport.datagrams()
	if len(sent) != 1 {
		t.Fatalf("sends after Start() = %d, want 1", len(sent))
	}
	if sent[0].to.String() != "239.255.255.250:1900" {
		t.Errorf("send destination = %v, want the group", sent[0].to)
	}
	owned := te.OwnedNotifications()
	if len(owned) != 1 || owned[0].USN() != "uuid:1::urn:x" {
		t.Errorf("OwnedNotifications() = %v, want uuid:1::urn:x", owned)
	}
}

func TestEngine_StartFlushOrder(t *testing.T) {
	te := newTestEngine(t, 0)

	_ = te.Notify(alive("uuid:a", "urn:x", time.Minute), true)
	_ = te.SearchSubject("urn:x", nil)
	_ = te.Notify(alive("uuid:b", "urn:x", time.Minute), false)

	te.mustStart(t)

	sent := te.transport.datagrams()
	if len(sent) != 3 {
		t.Fatalf("sends = %d, want 3", len(sent))
	}
	wantPrefixes := []string{"NOTIFY", "NOTIFY", "M-SEARCH"}
	for i, p := range wantPrefixes {
		if !strings.HasPrefix(sent[i].data, p) {
			t.Errorf("send %d = %q, want prefix %q", i, sent[i].data[:20], p)
		}
	}
	if !strings.Contains(sent[1].data, "USN: uuid:b") {
		t.Errorf("second send = %q, want uuid:b", sent[1].data)
	}
	if len(te.OwnedNotifications()) != 1 {
		t.Errorf("owned = %d, want 1 (non-persistent not retained)", len(te.OwnedNotifications()))
	}
}

func TestEngine_StartIdempotent(t *testing.T) {
	te := newTestEngine(t, 0)
	te.mustStart(t)
	te.mustStart(t)

	if te.dials != 1 {
		t.Errorf("dials = %d, want 1", te.dials)
	}
	if !te.Started() {
		t.Error("Started() = false after Start()")
	}
}

func TestEngine_StartDialFailure(t *testing.T) {
	e, err := New(Config{
		Clock: clock.NewMock(),
		Dial: func(context.Context, transport.Handler) (Transport, error) {
			return nil, errors.New("no multicast")
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := e.Start(); err == nil {
		t.Fatal("Start() error = nil, want dial failure")
	}
	if e.Started() {
		t.Error("Started() = true after failed Start()")
	}
}

func TestEngine_NotifyOnceAndReplace(t *testing.T) {
	te := newTestEngine(t, 0)
	te.mustStart(t)

	_ = te.Notify(alive("uuid:1", "urn:x", time.Minute), true)
	if len(te.OwnedNotifications()) != 1 {
		t.Fatal("persistent alive not owned")
	}

	// byebye for the same USN replaces and is sent once
	if err := te.Notify(byebye("uuid:1"), true); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if len(te.OwnedNotifications()) != 0 {
		t.Error("owned entry survived byebye")
	}
	if got := len(te.transport.datagrams()); got != 2 {
		t.Errorf("sends = %d, want 2", got)
	}
}

func TestEngine_NotifySendError(t *testing.T) {
	te := newTestEngine(t, 0)
	te.mustStart(t)
	te.transport.sendErr = errors.New("network unreachable")

	if err := te.Notify(alive("uuid:1", "urn:x", time.Minute), false); err == nil {
		t.Error("Notify() error = nil, want send failure")
	}
}

func TestEngine_Renewal(t *testing.T) {
	te := newTestEngine(t, 0)
	_ = te.Notify(alive("uuid:1::urn:x", "urn:x", 60*time.Second), true)
	te.mustStart(t)
	te.transport.reset()

	// 6s left, outside the 5s leeway
	te.clock.Add(54 * time.Second)
	te.Update()
	if got := len(te.transport.datagrams()); got != 0 {
		t.Fatalf("renewals at 6s left = %d, want 0", got)
	}

	// 4s left
	te.clock.Add(2 * time.Second)
	te.Update()
	sent := te.transport.datagrams()
	if len(sent) != 1 {
		t.Fatalf("renewals at 4s left = %d, want 1", len(sent))
	}
	if !strings.Contains(sent[0].data, "NTS: ssdp:alive") {
		t.Errorf("renewal = %q, want alive", sent[0].data)
	}

	// Poke moved the expiration a full max-age ahead
	te.Update()
	if got := len(te.transport.datagrams()); got != 1 {
		t.Errorf("sends after second Update() = %d, want 1", got)
	}
}

func TestEngine_AnswersSearch(t *testing.T) {
	te := newTestEngine(t, ImmediateProcessing)
	n := alive("uuid:1::urn:x", "urn:x", 60*time.Second)
	_ = n.Header().Add(protocol.FieldLocation, "http://192.168.1.10/desc.xml")
	_ = te.Notify(n, true)
	te.mustStart(t)
	te.transport.reset()

	tests := []struct {
		name      string
		subject   string
		wantSends int
	}{
		{"search all", protocol.SearchAll, 1},
		{"matching subject", "urn:x", 1},
		{"other subject", "urn:y", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te.transport.reset()
			req := protocol.NewSearchRequest()
			req.SetSubject(tt.subject)
			req.Sender = requester()
			te.HandleMessage(req)

			sent := te.transport.datagrams()
			if len(sent) != tt.wantSends {
				t.Fatalf("responses = %d, want %d", len(sent), tt.wantSends)
			}
			if tt.wantSends == 0 {
				return
			}
			if sent[0].to.String() != requester().String() {
				t.Errorf("response sent to %v, want %v", sent[0].to, requester())
			}
			m, err := protocol.Parse(sent[0].data)
			if err != nil {
				t.Fatalf("response does not parse: %v", err)
			}
			resp := m.(*protocol.SearchResponse)
			if resp.Subject() != "urn:x" || resp.USN() != "uuid:1::urn:x" {
				t.Errorf("response ST/USN = %q/%q, want urn:x/uuid:1::urn:x", resp.Subject(), resp.USN())
			}
			if resp.Header().Get(protocol.FieldLocation, "") != "http://192.168.1.10/desc.xml" {
				t.Error("response missing LOCATION")
			}
		})
	}

	if got := len(te.events.all()); got != 0 {
		t.Errorf("events = %d, want 0 for search requests", got)
	}
}

func TestEngine_AliveIdempotent(t *testing.T) {
	te := newTestEngine(t, ImmediateProcessing)
	te.mustStart(t)

	te.HandleMessage(alive("uuid:1", "urn:x", time.Minute))
	te.HandleMessage(alive("uuid:1", "urn:x", time.Minute))

	events := te.events.all()
	if len(events) != 1 || events[0].reason != Added {
		t.Fatalf("events = %v, want one Added", events)
	}

	changed := alive("uuid:1", "urn:x", time.Minute)
	_ = changed.Header().Add(protocol.FieldLocation, "http://new/desc.xml")
	te.HandleMessage(changed)

	events = te.events.all()
	if len(events) != 2 || events[1].reason != Updated {
		t.Fatalf("events = %v, want Added then Updated", events)
	}
	active := te.ActiveNotifications()
	if len(active) != 1 || active[0].Location() != "http://new/desc.xml" {
		t.Errorf("cached notification not replaced: %v", active)
	}
}

func TestEngine_AliveRefreshesExpiration(t *testing.T) {
	te := newTestEngine(t, ImmediateProcessing)
	te.mustStart(t)

	te.HandleMessage(alive("uuid:1", "urn:x", 30*time.Second))
	te.clock.Add(30 * time.Second)
	te.HandleMessage(alive("uuid:1", "urn:x", 30*time.Second))
	te.clock.Add(30 * time.Second)
	te.Update()

	if len(te.ActiveNotifications()) != 1 {
		t.Error("refreshed entry expired")
	}
}

func TestEngine_ByeBye(t *testing.T) {
	te := newTestEngine(t, ImmediateProcessing)
	te.mustStart(t)

	// Unknown USN: no entry, no crash
	te.HandleMessage(byebye("uuid:unknown"))
	if len(te.ActiveNotifications()) != 0 {
		t.Fatal("byebye for unknown USN created an entry")
	}

	te.HandleMessage(alive("uuid:1", "urn:x", time.Minute))
	te.HandleMessage(byebye("uuid:1"))
	if len(te.ActiveNotifications()) != 0 {
		t.Error("byebye did not remove the entry")
	}

	want := []Reason{Removed, Added, Removed}
	events := te.events.all()
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i, r := range want {
		if events[i].reason != r {
			t.Errorf("event %d = %v, want %v", i, events[i].reason, r)
		}
	}
}

func TestEngine_OtherType(t *testing.T) {
	te := newTestEngine(t, ImmediateProcessing)
	te.mustStart(t)

	n := alive("uuid:1", "urn:x", time.Minute)
	n.SetType("ssdp:update")
	te.HandleMessage(n)

	events := te.events.all()
	if len(events) != 1 || events[0].reason != Other {
		t.Errorf("events = %v, want one Other", events)
	}
	if len(te.ActiveNotifications()) != 0 {
		t.Error("ssdp:update created an entry")
	}
}

func TestEngine_SearchResponse(t *testing.T) {
	te := newTestEngine(t, ImmediateProcessing)
	te.mustStart(t)

	resp := te.CreateSearchResponse("urn:x", "uuid:9::urn:x")
	resp.Address = net.ParseIP("192.168.1.40")
	te.HandleMessage(resp)
	te.HandleMessage(resp)

	events := te.events.all()
	if len(events) != 1 || events[0].reason != Added || events[0].usn != "uuid:9::urn:x" {
		t.Fatalf("events = %v, want one Added for uuid:9::urn:x", events)
	}
	active := te.ActiveNotifications()
	if len(active) != 1 {
		t.Fatalf("active = %d, want 1", len(active))
	}
	if active[0].Subject() != "urn:x" {
		t.Errorf("Subject() = %q, want urn:x", active[0].Subject())
	}
	if !active[0].Address.Equal(net.ParseIP("192.168.1.40")) {
		t.Errorf("Address = %v, want 192.168.1.40", active[0].Address)
	}
}

func TestEngine_SearchResponseAfterByeBye(t *testing.T) {
	te := newTestEngine(t, ImmediateProcessing)
	te.mustStart(t)

	te.HandleMessage(alive("uuid:1", "urn:x", time.Minute))
	te.HandleMessage(byebye("uuid:1"))

	resp := te.CreateSearchResponse("urn:x", "uuid:1")
	resp.Address = net.ParseIP("192.168.1.20")
	te.HandleMessage(resp)

	want := []Reason{Added, Removed, Added}
	events := te.events.all()
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i, r := range want {
		if events[i].reason != r {
			t.Errorf("event %d = %v, want %v", i, events[i].reason, r)
		}
	}
	active := te.ActiveNotifications()
	if len(active) != 1 || active[0].USN() != "uuid:1" {
		t.Errorf("active = %v, want uuid:1", active)
	}
}

func TestEngine_Expiry(t *testing.T) {
	tests := []struct {
		name        string
		advance     time.Duration
		wantExpired bool
	}{
		{"within max-age", 20 * time.Second, false},
		{"past expiry within leeway", 34 * time.Second, false},
		{"ten seconds past expiry", 40 * time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEngine(t, ImmediateProcessing)
			te.mustStart(t)
			te.HandleMessage(alive("uuid:1", "urn:x", 30*time.Second))

			te.clock.Add(tt.advance)
			te.Update()

			expired := len(te.ActiveNotifications()) == 0
			if expired != tt.wantExpired {
				t.Fatalf("expired = %v, want %v", expired, tt.wantExpired)
			}
			if !tt.wantExpired {
				return
			}
			events := te.events.all()
			last := events[len(events)-1]
			if last.reason != Expired || last.nts != protocol.ByeBye {
				t.Errorf("last event = %+v, want Expired with ssdp:byebye", last)
			}
		})
	}
}

func TestEngine_OwnedShadowsExpiry(t *testing.T) {
	te := newTestEngine(t, ImmediateProcessing)
	_ = te.Notify(alive("uuid:1", "urn:x", 30*time.Second), true)
	te.mustStart(t)

	// Our own announcement looped back into the active cache
	te.HandleMessage(alive("uuid:1", "urn:x", 30*time.Second))
	te.clock.Add(time.Minute)
	te.Update()

	if len(te.ActiveNotifications()) != 1 {
		t.Error("owned USN expired from the active cache")
	}
}

func TestEngine_Loopback(t *testing.T) {
	tests := []struct {
		name       string
		opts       Options
		wantEvents int
	}{
		{"suppressed by default", ImmediateProcessing, 0},
		{"notify loopback", ImmediateProcessing | NotifyLoopback, 1},
		{"notify all", ImmediateProcessing | NotifyAll, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEngine(t, tt.opts)
			own := alive("uuid:own", "urn:x", time.Minute)
			_ = te.Notify(own, true)
			te.mustStart(t)

			te.HandleMessage(alive("uuid:own", "urn:x", time.Minute))
			if got := len(te.events.all()); got != tt.wantEvents {
				t.Errorf("events = %d, want %d", got, tt.wantEvents)
			}
		})
	}
}

func TestEngine_NotifyAllRepeats(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want []Reason
	}{
		{"default", ImmediateProcessing, []Reason{Added, Removed}},
		{"notify loopback", ImmediateProcessing | NotifyLoopback, []Reason{Added, Removed}},
		{"notify all", ImmediateProcessing | NotifyAll, []Reason{Added, Other, Removed}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEngine(t, tt.opts)
			te.mustStart(t)

			te.HandleMessage(alive("uuid:ext", "urn:x", time.Minute))
			te.HandleMessage(alive("uuid:ext", "urn:x", time.Minute))
			te.HandleMessage(byebye("uuid:never-seen"))

			events := te.events.all()
			if len(events) != len(tt.want) {
				t.Fatalf("events = %v, want %v", events, tt.want)
			}
			for i, r := range tt.want {
				if events[i].reason != r {
					t.Errorf("event %d = %v, want %v", i, events[i].reason, r)
				}
			}
		})
	}
}

func TestShouldEmit(t *testing.T) {
	tests := []struct {
		owned, loopback, all bool
		want                 bool
	}{
		{false, false, false, true},
		{true, false, false, false},
		{true, true, false, true},
		{true, false, true, true},
		{false, true, true, true},
	}
	for _, tt := range tests {
		if got := ShouldEmit(tt.owned, tt.loopback, tt.all); got != tt.want {
			t.Errorf("ShouldEmit(%v, %v, %v) = %v, want %v", tt.owned, tt.loopback, tt.all, got, tt.want)
		}
	}
}

func TestEngine_DeferredProcessing(t *testing.T) {
	te := newTestEngine(t, 0)
	te.mustStart(t)

	te.HandleMessage(alive("uuid:1", "urn:x", time.Minute))
	te.HandleMessage(byebye("uuid:1"))
	te.HandleMessage(alive("uuid:2", "urn:x", time.Minute))

	if got := len(te.events.all()); got != 0 {
		t.Fatalf("events before Update() = %d, want 0", got)
	}

	te.Update()

	events := te.events.all()
	want := []recordedEvent{
		{usn: "uuid:1", nts: protocol.Alive, reason: Added},
		{usn: "uuid:1", nts: protocol.ByeBye, reason: Removed},
		{usn: "uuid:2", nts: protocol.Alive, reason: Added},
	}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, events[i], want[i])
		}
	}
}

func TestEngine_DropsMessagesWhenStopped(t *testing.T) {
	te := newTestEngine(t, ImmediateProcessing)
	te.HandleMessage(alive("uuid:1", "urn:x", time.Minute))

	te.mustStart(t)
	_ = te.Stop(false)
	te.HandleMessage(alive("uuid:2", "urn:x", time.Minute))

	if len(te.ActiveNotifications()) != 0 {
		t.Errorf("active = %d, want 0", len(te.ActiveNotifications()))
	}
}

func TestEngine_Stop(t *testing.T) {
	tests := []struct {
		name           string
		keepPersistent bool
		wantReplay     int
	}{
		{"keep persistent", true, 1},
		{"discard persistent", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEngine(t, 0)
			_ = te.Notify(alive("uuid:1", "urn:x", time.Minute), true)
			te.mustStart(t)
			te.transport.reset()

			if err := te.Stop(tt.keepPersistent); err != nil {
				t.Fatalf("Stop() error = %v", err)
			}

			sent := te.transport.datagrams()
			if len(sent) != 1 || !strings.Contains(sent[0].data, "NTS: ssdp:byebye") {
				t.Fatalf("sends on Stop() = %v, want one byebye", sent)
			}
			if te.transport.closed != 1 {
				t.Errorf("Close() calls = %d, want 1", te.transport.closed)
			}
			if te.Started() {
				t.Error("Started() = true after Stop()")
			}
			if len(te.OwnedNotifications()) != 0 {
				t.Error("owned entries survived Stop()")
			}

			te.transport.reset()
			te.mustStart(t)
			sent = te.transport.datagrams()
			if len(sent) != tt.wantReplay {
				t.Fatalf("sends on restart = %d, want %d", len(sent), tt.wantReplay)
			}
			if tt.wantReplay > 0 && !strings.Contains(sent[0].data, "NTS: ssdp:alive") {
				t.Errorf("replayed notification = %q, want alive", sent[0].data)
			}
		})
	}
}

func TestEngine_StopDropsDeferred(t *testing.T) {
	te := newTestEngine(t, 0)
	_ = te.Notify(alive("uuid:own", "urn:x", time.Minute), true)
	te.mustStart(t)

	te.HandleMessage(alive("uuid:1", "urn:x", time.Minute))
	req := protocol.NewSearchRequest()
	req.SetSubject(protocol.SearchAll)
	req.Sender = requester()
	te.HandleMessage(req)

	if err := te.Stop(true); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	te.mustStart(t)
	te.transport.reset()
	te.Update()

	if got := te.events.all(); len(got) != 0 {
		t.Errorf("events after restart = %v, want none", got)
	}
	if len(te.ActiveNotifications()) != 0 {
		t.Errorf("active = %d, want 0", len(te.ActiveNotifications()))
	}
	if sent := te.transport.datagrams(); len(sent) != 0 {
		t.Errorf("sends after restart = %v, want none", sent)
	}
}

func TestEngine_StopFromListener(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping socket test in short mode")
	}

	probe, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		t.Skipf("udp4 unavailable: %v", err)
	}
	port := probe.LocalAddr().(*net.UDPAddr).Port
	probe.Close()

	e, err := New(Config{
		Group:   &net.UDPAddr{IP: net.ParseIP(protocol.DefaultAddress).To4(), Port: port},
		Options: ImmediateProcessing,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stopped := make(chan error, 1)
	var once sync.Once
	e.Subscribe(func(n *protocol.Notification, r Reason) {
		once.Do(func() { stopped <- e.Stop(false) })
	})
	if err := e.Start(); err != nil {
		t.Skipf("multicast unavailable: %v", err)
	}
	t.Cleanup(func() { _ = e.Stop(false) })

	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		t.Fatalf("DialUDP() error = %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write(alive("uuid:remote", "urn:x", time.Minute).Bytes()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	select {
	case err := <-stopped:
		if err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Stop() called from a listener did not return")
	}
	if e.Started() {
		t.Error("Started() = true after Stop()")
	}
}

func TestEngine_StopWhenStopped(t *testing.T) {
	te := newTestEngine(t, 0)
	if err := te.Stop(true); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if te.transport.closed != 0 {
		t.Errorf("Close() calls = %d, want 0", te.transport.closed)
	}
}

func TestEngine_SearchReplay(t *testing.T) {
	te := newTestEngine(t, ImmediateProcessing)
	te.mustStart(t)
	te.HandleMessage(alive("uuid:1", "urn:x", time.Minute))
	te.HandleMessage(alive("uuid:2", "urn:y", time.Minute))
	te.transport.reset()

	var replayed []string
	sendsDuringReplay := 0
	err := te.SearchSubject("urn:x", func(n *protocol.Notification, r Reason) {
		if r != Added {
			t.Errorf("replay reason = %v, want Added", r)
		}
		replayed = append(replayed, n.USN())
		sendsDuringReplay += len(te.transport.datagrams())
	})
	if err != nil {
		t.Fatalf("SearchSubject() error = %v", err)
	}

	if len(replayed) != 1 || replayed[0] != "uuid:1" {
		t.Errorf("replayed = %v, want [uuid:1]", replayed)
	}
	if sendsDuringReplay != 0 {
		t.Errorf("sends during replay = %d, want 0", sendsDuringReplay)
	}
	sent := te.transport.datagrams()
	if len(sent) != 1 || !strings.HasPrefix(sent[0].data, protocol.SearchLine) {
		t.Errorf("sends = %v, want one M-SEARCH", sent)
	}
}

func TestEngine_ListenerReentry(t *testing.T) {
	te := newTestEngine(t, ImmediateProcessing)
	te.mustStart(t)

	var seen int
	te.Subscribe(func(n *protocol.Notification, r Reason) {
		// Calling back into the engine must not deadlock
		seen = len(te.ActiveNotifications())
	})

	done := make(chan struct{})
	go func() {
		te.HandleMessage(alive("uuid:1", "urn:x", time.Minute))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener deadlocked")
	}
	if seen != 1 {
		t.Errorf("active seen from listener = %d, want 1", seen)
	}
}

func TestEngine_Unsubscribe(t *testing.T) {
	te := newTestEngine(t, ImmediateProcessing)
	te.mustStart(t)

	var calls int
	unsubscribe := te.Subscribe(func(*protocol.Notification, Reason) { calls++ })
	te.HandleMessage(alive("uuid:1", "urn:x", time.Minute))
	unsubscribe()
	te.HandleMessage(alive("uuid:2", "urn:x", time.Minute))

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestEngine_SetOptions(t *testing.T) {
	te := newTestEngine(t, 0)
	te.mustStart(t)
	te.SetOptions(ImmediateProcessing)

	if te.Options() != ImmediateProcessing {
		t.Errorf("Options() = %v, want %v", te.Options(), ImmediateProcessing)
	}
	te.HandleMessage(alive("uuid:1", "urn:x", time.Minute))
	if len(te.events.all()) != 1 {
		t.Error("message not processed immediately after SetOptions()")
	}
}

func TestEngine_Run(t *testing.T) {
	te := newTestEngine(t, 0)
	te.mustStart(t)
	te.HandleMessage(alive("uuid:1", "urn:x", time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- te.Run(ctx, time.Second) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(te.events.all()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Run() never called Update()")
		}
		te.clock.Add(time.Second)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestOptions_String(t *testing.T) {
	tests := []struct {
		opts Options
		want string
	}{
		{0, "none"},
		{ImmediateProcessing, "immediate"},
		{NotifyLoopback | NotifyAll, "loopback|all"},
	}
	for _, tt := range tests {
		if got := tt.opts.String(); got != tt.want {
			t.Errorf("Options(%d).String() = %q, want %q", tt.opts, got, tt.want)
		}
	}
}

func TestReason_String(t *testing.T) {
	want := map[Reason]string{
		Added: "added", Updated: "updated", Removed: "removed",
		Expired: "expired", Other: "other", Reason(42): "reason(42)",
	}
	for r, s := range want {
		if r.String() != s {
			t.Errorf("Reason(%d).String() = %q, want %q", int(r), r.String(), s)
		}
	}
}
