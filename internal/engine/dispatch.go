package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ssdp/internal/cache"
	"github.com/muurk/ssdp/internal/logging"
	"github.com/muurk/ssdp/internal/protocol"
	"github.com/muurk/ssdp/internal/transport"
)

// HandleMessage receives a parsed datagram from the transport. Messages are
// dropped once the engine is stopped. With ImmediateProcessing they are
// dispatched right away, otherwise queued for the next Update.
func (e *Engine) HandleMessage(m protocol.Message) {
	e.metrics.Received(m.Kind().String())

	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}

	var events []event
	if e.options.Has(ImmediateProcessing) {
		events = e.processLocked(m, e.clock.Now(), events)
	} else {
		e.deferred = append(e.deferred, m)
	}
	e.mu.Unlock()

	e.emit(events)
}

// HandleError receives receive failures from the transport.
func (e *Engine) HandleError(err error) {
	if transport.IsClosed(err) {
		return
	}
	logging.Warn("SSDP receive failed", zap.Error(err))
	if e.config.OnError != nil {
		e.config.OnError(err)
	}
}

// processLocked applies one message to the caches and appends the events it
// raises.
func (e *Engine) processLocked(m protocol.Message, now time.Time, events []event) []event {
	switch msg := m.(type) {
	case *protocol.Notification:
		events = e.processNotificationLocked(msg, now, events)
	case *protocol.SearchRequest:
		e.answerSearchLocked(msg)
	case *protocol.SearchResponse:
		events = e.processResponseLocked(msg, now, events)
	}
	e.updateGaugesLocked()
	return events
}

func (e *Engine) processNotificationLocked(n *protocol.Notification, now time.Time, events []event) []event {
	usn := n.USN()
	emit := ShouldEmit(e.owned.Has(usn), e.options.Has(NotifyLoopback), e.options.Has(NotifyAll))

	switch n.Type() {
	case protocol.ByeBye:
		e.active.Delete(usn)
		if emit {
			events = append(events, event{n: n, reason: Removed})
		}

	case protocol.Alive:
		entry, ok := e.active.Get(usn)
		if !ok {
			e.active.Put(cache.NewEntry(n, now))
			if emit {
				events = append(events, event{n: n, reason: Added})
			}
			break
		}

		changed := false
		if data := n.Bytes(); !entry.Matches(data) {
			entry.Notification = n
			entry.Data = data
			changed = true
		}
		entry.Poke(now)
		switch {
		case changed && emit:
			events = append(events, event{n: n, reason: Updated})
		case !changed && e.options.Has(NotifyAll):
			// Repeated announcements surface only with NotifyAll
			events = append(events, event{n: n, reason: Other})
		}

	default:
		if emit {
			events = append(events, event{n: n, reason: Other})
		}
	}

	return events
}

// answerSearchLocked unicasts a response for every owned notification the
// request matches.
func (e *Engine) answerSearchLocked(r *protocol.SearchRequest) {
	if r.Sender == nil {
		return
	}
	for _, entry := range e.owned.Entries() {
		if !r.Matches(entry.Notification.Subject()) {
			continue
		}
		resp := e.builder.SearchResponseFromNotification(entry.Notification)
		e.sendLocked(protocol.KindSearchResponse, resp.Bytes(), r.Sender)
	}
}

func (e *Engine) processResponseLocked(r *protocol.SearchResponse, now time.Time, events []event) []event {
	n := e.builder.NotificationFromResponse(r)
	if e.active.Has(n.USN()) {
		return events
	}
	e.active.Put(cache.NewEntry(n, now))
	return append(events, event{n: n, reason: Added})
}
