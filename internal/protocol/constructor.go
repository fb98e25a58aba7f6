package protocol

import (
	"net"
	"strconv"
	"strings"
)

// Builder creates outgoing messages pre-filled with the HOST and
// SERVER/USER-AGENT values of one endpoint. Builders never touch the network.
type Builder struct {
	// Host is the HOST field value, "<group-ip>:<group-port>"
	Host string

	// Signature is the SERVER / USER-AGENT field value
	Signature string
}

// NewBuilder returns a builder for the given multicast group.
func NewBuilder(group *net.UDPAddr, signature string) *Builder {
	return &Builder{
		Host:      HostValue(group),
		Signature: signature,
	}
}

// HostValue formats a group endpoint as a HOST field value.
func HostValue(group *net.UDPAddr) string {
	if group == nil {
		return DefaultAddress + ":" + strconv.Itoa(DefaultPort)
	}
	return group.IP.String() + ":" + strconv.Itoa(group.Port)
}

// Notification returns an alive notification with HOST, SERVER and the
// default max-age set. Subject and USN are left to the caller.
func (b *Builder) Notification() *Notification {
	n := NewNotification()
	_ = n.header.Add(FieldHost, b.Host)
	if b.Signature != "" {
		_ = n.header.Add(FieldServer, b.Signature)
	}
	n.SetMaxAge(DefaultMaxAge)
	return n
}

// NotificationFromResponse translates a search response into the
// notification it stands for: ST becomes NT, the S field is dropped, and a
// field already present is not duplicated.
func (b *Builder) NotificationFromResponse(r *SearchResponse) *Notification {
	n := NewNotification()
	for _, f := range r.header.Fields() {
		name := strings.ToUpper(f.Name)
		switch name {
		case "S":
			continue
		case FieldST:
			name = FieldNT
		default:
			name = f.Name
		}
		if n.header.Has(name) {
			continue
		}
		for _, v := range f.Values {
			_ = n.header.Add(name, v)
		}
	}
	if r.Address != nil {
		n.Address = append(net.IP(nil), r.Address...)
	}
	return n
}

// SearchRequest returns an M-SEARCH for subject (ssdp:all when empty) with
// HOST, USER-AGENT, MAN and MX=1.
func (b *Builder) SearchRequest(subject string) *SearchRequest {
	if subject == "" {
		subject = SearchAll
	}
	r := NewSearchRequest()
	r.SetSubject(subject)
	_ = r.header.Add(FieldHost, b.Host)
	if b.Signature != "" {
		_ = r.header.Add(FieldUserAgent, b.Signature)
	}
	_ = r.header.Add(FieldMAN, Discover)
	_ = r.header.Add(FieldMX, "1")
	return r
}

// SearchResponse returns a 200 response advertising usn for subject.
func (b *Builder) SearchResponse(subject, usn string) *SearchResponse {
	r := NewSearchResponse()
	r.SetSubject(subject)
	r.SetUSN(usn)
	r.SetMaxAge(DefaultMaxAge)
	_ = r.header.Add(FieldHost, b.Host)
	_ = r.header.Add(FieldExt, "")
	return r
}

// SearchResponseFromNotification answers a search on behalf of n: NT becomes
// ST, USN is copied, NTS is dropped and every other field of n is carried
// over. HOST and CACHE-CONTROL are defaulted when n lacks them.
func (b *Builder) SearchResponseFromNotification(n *Notification) *SearchResponse {
	r := NewSearchResponse()
	r.SetSubject(n.Subject())
	r.SetUSN(n.USN())
	_ = r.header.Add(FieldExt, "")

	for _, f := range n.header.Fields() {
		switch strings.ToUpper(f.Name) {
		case FieldNT, FieldNTS:
			continue
		}
		if r.header.Has(f.Name) {
			continue
		}
		for _, v := range f.Values {
			_ = r.header.Add(f.Name, v)
		}
	}

	if !r.header.Has(FieldHost) {
		_ = r.header.Add(FieldHost, b.Host)
	}
	if !r.header.Has(FieldCacheControl) {
		r.SetMaxAge(DefaultMaxAge)
	}
	return r
}
