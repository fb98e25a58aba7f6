package engine

import "strings"

// Options is a set of engine behaviour flags.
type Options uint32

const (
	// ImmediateProcessing dispatches received messages on the receive
	// goroutine instead of queueing them for the next Update.
	ImmediateProcessing Options = 1 << iota

	// NotifyLoopback raises events for this endpoint's own announcements
	// when they are received back from the network.
	NotifyLoopback

	// NotifyAll raises events for every received notification, including
	// own announcements and unchanged repeats of known ones (reason Other).
	NotifyAll
)

// Has reports whether every flag in f is set.
func (o Options) Has(f Options) bool {
	return o&f == f
}

func (o Options) String() string {
	if o == 0 {
		return "none"
	}
	var names []string
	if o.Has(ImmediateProcessing) {
		names = append(names, "immediate")
	}
	if o.Has(NotifyLoopback) {
		names = append(names, "loopback")
	}
	if o.Has(NotifyAll) {
		names = append(names, "all")
	}
	return strings.Join(names, "|")
}

// ShouldEmit decides whether a received notification raises an event:
// always with notifyAll, always for a USN this endpoint does not own, and for
// an owned USN only with notifyLoopback.
func ShouldEmit(owned, notifyLoopback, notifyAll bool) bool {
	return notifyAll || !owned || notifyLoopback
}
