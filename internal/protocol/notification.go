package protocol

import (
	"net"
	"time"
)

// Notification is a NOTIFY message announcing (ssdp:alive) or retiring
// (ssdp:byebye) a device or service.
type Notification struct {
	base

	// Address is the sender of a notification received from the network.
	// It is never serialized.
	Address net.IP
}

// NewNotification returns an empty notification.
func NewNotification() *Notification {
	return &Notification{base: newBase()}
}

func (n *Notification) Kind() Kind { return KindNotification }

func (n *Notification) StartLine() string { return NotifyLine }

// String returns the wire form of the notification.
func (n *Notification) String() string { return Serialize(n) }

// Bytes returns the wire form as a byte slice, ready to be sent.
func (n *Notification) Bytes() []byte { return []byte(Serialize(n)) }

// Type returns the NTS field, ssdp:alive when absent.
func (n *Notification) Type() string {
	return n.header.Get(FieldNTS, Alive)
}

// SetType replaces the NTS field.
func (n *Notification) SetType(nts string) {
	n.replace(FieldNTS, nts)
}

// Subject returns the NT field.
func (n *Notification) Subject() string {
	return n.header.Get(FieldNT, "")
}

// SetSubject replaces the NT field.
func (n *Notification) SetSubject(nt string) {
	n.replace(FieldNT, nt)
}

// USN returns the unique service name, the identity of the notification.
func (n *Notification) USN() string {
	return n.header.Get(FieldUSN, "")
}

// SetUSN replaces the USN field.
func (n *Notification) SetUSN(usn string) {
	n.replace(FieldUSN, usn)
}

// MaxAge returns the CACHE-CONTROL max-age, DefaultMaxAge when absent or invalid.
func (n *Notification) MaxAge() time.Duration {
	return maxAgeOf(n.header)
}

// SetMaxAge sets the max-age directive, keeping other Cache-Control directives.
func (n *Notification) SetMaxAge(d time.Duration) {
	n.setMaxAge(d)
}

// Location returns the LOCATION field, if any.
func (n *Notification) Location() string {
	return n.header.Get(FieldLocation, "")
}

// Clone returns a deep copy of the notification, including its address.
func (n *Notification) Clone() *Notification {
	c := &Notification{base: base{header: n.header.Clone()}}
	if n.Address != nil {
		c.Address = append(net.IP(nil), n.Address...)
	}
	return c
}
