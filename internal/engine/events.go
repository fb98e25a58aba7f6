package engine

import (
	"fmt"

	"github.com/muurk/ssdp/internal/logging"
	"github.com/muurk/ssdp/internal/protocol"
)

// Reason tells a listener why it is being notified.
type Reason int

const (
	Added Reason = iota
	Updated
	Removed
	Expired
	Other
)

func (r Reason) String() string {
	switch r {
	case Added:
		return "added"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	case Expired:
		return "expired"
	case Other:
		return "other"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Listener receives notification events. The notification must be treated
// as read-only. Listeners run without the engine lock held and may call back
// into the engine.
type Listener func(n *protocol.Notification, reason Reason)

type event struct {
	n      *protocol.Notification
	reason Reason
}

type subscription struct {
	id       int
	listener Listener
}

// Subscribe registers l and returns a function that removes it.
func (e *Engine) Subscribe(l Listener) (unsubscribe func()) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()

	id := e.nextListener
	e.nextListener++
	e.listeners = append(e.listeners, subscription{id: id, listener: l})

	return func() {
		e.listenersMu.Lock()
		defer e.listenersMu.Unlock()
		for i, s := range e.listeners {
			if s.id == id {
				e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

// emit delivers collected events in order. It must be called without e.mu.
func (e *Engine) emit(events []event) {
	if len(events) == 0 {
		return
	}

	e.listenersMu.RLock()
	listeners := make([]Listener, 0, len(e.listeners))
	for _, s := range e.listeners {
		listeners = append(listeners, s.listener)
	}
	e.listenersMu.RUnlock()

	for _, ev := range events {
		logging.LogNotification(ev.reason.String(), ev.n)
		e.metrics.Event(ev.reason.String())
		for _, l := range listeners {
			l(ev.n, ev.reason)
		}
	}
}
