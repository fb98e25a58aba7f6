package cache

import (
	"bytes"
	"time"

	"github.com/muurk/ssdp/internal/protocol"
)

// Entry is a cached notification with its expiration and wire form.
type Entry struct {
	Notification *protocol.Notification
	Expires      time.Time
	Data         []byte
}

// NewEntry wraps n, computing its expiration from now and its wire form.
func NewEntry(n *protocol.Notification, now time.Time) *Entry {
	e := &Entry{Notification: n}
	e.Poke(now)
	e.Build()
	return e
}

// USN returns the identity of the cached notification.
func (e *Entry) USN() string {
	return e.Notification.USN()
}

// Poke moves the expiration to now plus the notification's max-age.
func (e *Entry) Poke(now time.Time) {
	e.Expires = now.Add(e.Notification.MaxAge())
}

// Build re-renders the wire form from the current notification.
func (e *Entry) Build() {
	e.Data = e.Notification.Bytes()
}

// Matches reports whether data is byte-identical to the cached wire form.
func (e *Entry) Matches(data []byte) bool {
	return bytes.Equal(e.Data, data)
}

// NeedsRenewal reports whether the entry expires within leeway of now.
func (e *Entry) NeedsRenewal(now time.Time, leeway time.Duration) bool {
	return e.Expires.Sub(now) < leeway
}

// Expired reports whether now is past the expiration plus leeway.
func (e *Entry) Expired(now time.Time, leeway time.Duration) bool {
	return now.After(e.Expires.Add(leeway))
}
