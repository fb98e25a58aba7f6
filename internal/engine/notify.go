package engine

import (
	"go.uber.org/zap"

	"github.com/muurk/ssdp/internal/cache"
	"github.com/muurk/ssdp/internal/logging"
	"github.com/muurk/ssdp/internal/protocol"
)

// Notify announces n to the multicast group.
//
// Before Start the notification is queued and sent by Start. Once started,
// any owned notification with the same USN is dropped; an alive n with
// persist set becomes owned and is renewed by Update until Stop, anything
// else is sent once. The returned error is the send failure, if any.
func (e *Engine) Notify(n *protocol.Notification, persist bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		e.pending = append(e.pending, pendingNotification{n: n, persist: persist})
		logging.Debug("Notification queued until start",
			zap.String("usn", n.USN()),
			zap.Bool("persist", persist),
		)
		return nil
	}

	return e.notifyLocked(n, persist)
}

func (e *Engine) notifyLocked(n *protocol.Notification, persist bool) error {
	e.owned.Delete(n.USN())

	data := n.Bytes()
	if persist && n.Type() == protocol.Alive {
		entry := cache.NewEntry(n, e.clock.Now())
		e.owned.Put(entry)
		data = entry.Data
	}
	e.updateGaugesLocked()

	return e.sendLocked(protocol.KindNotification, data, e.config.Group)
}

// Search multicasts req. When handler is not nil it is first called once for
// every known notification matching the request, always with reason Added,
// before the request goes out. Before Start the request is queued and sent by
// Start.
func (e *Engine) Search(req *protocol.SearchRequest, handler Listener) error {
	if handler != nil {
		e.mu.Lock()
		var known []*protocol.Notification
		for _, entry := range e.active.Entries() {
			if req.Matches(entry.Notification.Subject()) {
				known = append(known, entry.Notification)
			}
		}
		e.mu.Unlock()

		// TODO: report a distinct reason for replayed entries once listeners
		// need to tell them apart from fresh discoveries.
		for _, n := range known {
			handler(n, Added)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		e.searches = append(e.searches, req)
		return nil
	}
	return e.sendLocked(protocol.KindSearchRequest, req.Bytes(), e.config.Group)
}

// SearchSubject builds and sends an M-SEARCH for subject.
func (e *Engine) SearchSubject(subject string, handler Listener) error {
	return e.Search(e.CreateSearchRequest(subject), handler)
}
