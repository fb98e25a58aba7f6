package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/muurk/ssdp/internal/header"
)

// Multicast group defaults
const (
	DefaultAddress = "239.255.255.250"
	DefaultPort    = 1900

	// MaxMessageLength is the receive buffer size; longer datagrams are truncated.
	MaxMessageLength = 2048

	// DefaultMaxAge applies when a message carries no usable max-age directive.
	DefaultMaxAge = 30 * time.Second
)

// Start lines
const (
	NotifyLine         = "NOTIFY * HTTP/1.1"
	SearchLine         = "M-SEARCH * HTTP/1.1"
	SearchResponseLine = "HTTP/1.1 200 OK"
)

// Notification sub-types (NTS values)
const (
	Alive  = "ssdp:alive"
	ByeBye = "ssdp:byebye"
)

// SearchAll is the search target matching every device and service.
const SearchAll = "ssdp:all"

// Discover is the MAN value of an M-SEARCH request.
const Discover = `"ssdp:discover"`

// Header field names
const (
	FieldNTS          = "NTS"
	FieldNT           = "NT"
	FieldST           = "ST"
	FieldUSN          = "USN"
	FieldCacheControl = "CACHE-CONTROL"
	FieldHost         = "HOST"
	FieldServer       = "SERVER"
	FieldUserAgent    = "USER-AGENT"
	FieldMAN          = "MAN"
	FieldMX           = "MX"
	FieldExt          = "EXT"
	FieldLocation     = "LOCATION"
)

// Kind identifies one of the three SSDP message variants.
type Kind int

const (
	KindNotification Kind = iota
	KindSearchRequest
	KindSearchResponse
)

func (k Kind) String() string {
	switch k {
	case KindNotification:
		return "notification"
	case KindSearchRequest:
		return "search_request"
	case KindSearchResponse:
		return "search_response"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Message is a parsed or locally built SSDP message.
type Message interface {
	Kind() Kind
	StartLine() string
	Header() *header.Header
	String() string
}

// base holds the header store shared by every variant.
type base struct {
	header *header.Header
}

func newBase() base {
	return base{header: header.New()}
}

// Header returns the message's field store.
func (b *base) Header() *header.Header {
	return b.header
}

// replace sets a field, ignoring invalid names; callers only pass constants.
func (b *base) replace(name, value string) {
	_ = b.header.Set(name, value)
}

// Serialize renders m as wire text: start line, one line per stored value and
// a terminating blank line, with every line ending normalized to CRLF.
func Serialize(m Message) string {
	var sb strings.Builder
	sb.WriteString(m.StartLine())
	sb.WriteString("\r\n")

	// NOTIFY without NTS is announced as alive
	if m.Kind() == KindNotification && !m.Header().Has(FieldNTS) {
		sb.WriteString(FieldNTS + ": " + Alive + "\r\n")
	}

	for _, f := range m.Header().Fields() {
		for _, v := range f.Values {
			sb.WriteString(f.Name)
			sb.WriteString(": ")
			sb.WriteString(v)
			sb.WriteString("\r\n")
		}
	}
	sb.WriteString("\r\n")

	return normalizeCRLF(sb.String())
}

func normalizeCRLF(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}

// parseMaxAge extracts the max-age directive of a Cache-Control value.
func parseMaxAge(value string) (time.Duration, bool) {
	for _, directive := range strings.Split(value, ",") {
		name, arg, found := strings.Cut(strings.TrimSpace(directive), "=")
		if !found || !strings.EqualFold(strings.TrimSpace(name), "max-age") {
			continue
		}
		seconds, err := strconv.Atoi(strings.Trim(strings.TrimSpace(arg), `"`))
		if err != nil || seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	return 0, false
}

// maxAgeOf reads CACHE-CONTROL from h, falling back to DefaultMaxAge.
func maxAgeOf(h *header.Header) time.Duration {
	if d, ok := parseMaxAge(h.Get(FieldCacheControl, "")); ok {
		return d
	}
	return DefaultMaxAge
}

// withMaxAge returns value with its max-age directive replaced (or appended),
// keeping every other directive.
func withMaxAge(value string, d time.Duration) string {
	directive := "max-age=" + strconv.Itoa(int(d/time.Second))
	if strings.TrimSpace(value) == "" {
		return directive
	}

	parts := strings.Split(value, ",")
	replaced := false
	for i, p := range parts {
		name, _, _ := strings.Cut(strings.TrimSpace(p), "=")
		if strings.EqualFold(strings.TrimSpace(name), "max-age") {
			parts[i] = directive
			replaced = true
			continue
		}
		parts[i] = strings.TrimSpace(p)
	}
	if !replaced {
		parts = append(parts, directive)
	}
	return strings.Join(parts, ", ")
}

// setMaxAge rewrites the CACHE-CONTROL field of b in place.
func (b *base) setMaxAge(d time.Duration) {
	cc := withMaxAge(b.header.Get(FieldCacheControl, ""), d)
	// Keep the caller's spelling of the field if one exists
	name := FieldCacheControl
	for _, f := range b.header.Fields() {
		if strings.EqualFold(f.Name, FieldCacheControl) {
			name = f.Name
			break
		}
	}
	b.replace(name, cc)
}
