package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ssdp/internal/logging"
	"github.com/muurk/ssdp/internal/protocol"
)

// Update dispatches queued messages in arrival order, re-announces owned
// notifications that expire within the leeway and expires network
// notifications that are past their expiration by more than the leeway.
// Update is not reentrant; drive it from a single goroutine (see Run).
func (e *Engine) Update() {
	e.mu.Lock()

	now := e.clock.Now()
	var events []event

	deferred := e.deferred
	e.deferred = nil
	for _, m := range deferred {
		events = e.processLocked(m, now, events)
	}

	if e.started {
		for _, entry := range e.owned.Entries() {
			if !entry.NeedsRenewal(now, e.config.Leeway) {
				continue
			}
			entry.Poke(now)
			e.sendLocked(protocol.KindNotification, entry.Data, e.config.Group)
			e.metrics.Renewed()
			logging.Debug("Notification renewed",
				zap.String("usn", entry.USN()),
				zap.Time("expires", entry.Expires),
			)
		}
	}

	for _, entry := range e.active.Entries() {
		if e.owned.Has(entry.USN()) || !entry.Expired(now, e.config.Leeway) {
			continue
		}
		e.active.Delete(entry.USN())
		// Listeners may still hold the cached notification
		n := entry.Notification.Clone()
		n.SetType(protocol.ByeBye)
		events = append(events, event{n: n, reason: Expired})
	}

	e.updateGaugesLocked()
	e.mu.Unlock()

	e.emit(events)
}

// Run calls Update every interval, timed by the engine clock, until ctx is
// done. It returns ctx.Err().
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	ticker := e.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.Update()
		}
	}
}
