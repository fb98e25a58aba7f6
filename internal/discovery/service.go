package discovery

import (
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/muurk/ssdp/internal/protocol"
)

// Service represents a device or service discovered over SSDP
type Service struct {
	// USN is the unique service name (e.g., "uuid:2fac...::upnp:rootdevice")
	USN string `json:"usn"`

	// Subject is the NT/ST value (e.g., "upnp:rootdevice")
	Subject string `json:"subject"`

	// Location is the URL of the description document, if advertised
	Location string `json:"location,omitempty"`

	// Server is the SERVER header of the announcement
	Server string `json:"server,omitempty"`

	// Address is the IP the announcement came from
	Address net.IP `json:"address,omitempty"`

	// MaxAge is how long the announcement stays valid
	MaxAge time.Duration `json:"max_age"`

	// Headers contains every header field of the announcement
	Headers map[string]string `json:"headers,omitempty"`

	// DiscoveredAt is when the service was first seen
	DiscoveredAt time.Time `json:"discovered_at"`
}

// NewService converts a notification into a Service.
func NewService(n *protocol.Notification, now time.Time) *Service {
	s := &Service{
		USN:          n.USN(),
		Subject:      n.Subject(),
		Location:     n.Location(),
		Server:       n.Header().Get(protocol.FieldServer, ""),
		MaxAge:       n.MaxAge(),
		Headers:      make(map[string]string),
		DiscoveredAt: now,
	}
	if n.Address != nil {
		s.Address = append(net.IP(nil), n.Address...)
	}
	for _, f := range n.Header().Fields() {
		if len(f.Values) > 0 {
			s.Headers[f.Name] = f.Values[0]
		}
	}
	return s
}

// String returns a human-readable string representation of the service
func (s *Service) String() string {
	addr := "unknown"
	if s.Address != nil {
		addr = s.Address.String()
	}
	return fmt.Sprintf("%s (%s) at %s", s.USN, s.Subject, addr)
}

// Host returns the host of the LOCATION URL, falling back to the sender
// address.
func (s *Service) Host() string {
	if u, err := url.Parse(s.Location); err == nil && u.Host != "" {
		return u.Host
	}
	if s.Address != nil {
		return s.Address.String()
	}
	return ""
}

// GetHeader retrieves a header value by name, or returns empty string if not found
func (s *Service) GetHeader(name string) string {
	if s.Headers == nil {
		return ""
	}
	return s.Headers[name]
}
