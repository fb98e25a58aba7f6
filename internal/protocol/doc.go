// Package protocol implements the SSDP wire format.
//
// SSDP messages are HTTP-like text datagrams exchanged over UDP, usually on
// the multicast group 239.255.255.250:1900. This package parses datagrams
// into one of three message variants and serializes them back to wire text.
//
// # Message Variants
//
// The start line decides the variant:
//   - NOTIFY * HTTP/1.1: Notification (NTS, NT, USN, CACHE-CONTROL)
//   - M-SEARCH * HTTP/1.1: SearchRequest (ST, MAN, MX)
//   - HTTP/1.1 200 OK: SearchResponse (ST, USN, CACHE-CONTROL, EXT)
//
// Each variant is a typed view over a header.Header. Accessors fall back to
// protocol defaults: NTS defaults to ssdp:alive, ST to ssdp:all and max-age
// to 30 seconds.
//
// # Usage Example - Parsing
//
//	msg, err := protocol.ParseBytes(datagram)
//	if err != nil {
//	    // *protocol.ParseError; drop this datagram only
//	    return
//	}
//
//	switch m := msg.(type) {
//	case *protocol.Notification:
//	    fmt.Println(m.Type(), m.USN(), m.MaxAge())
//	case *protocol.SearchRequest:
//	    fmt.Println("search for", m.Subject())
//	case *protocol.SearchResponse:
//	    fmt.Println("found", m.USN())
//	}
//
// # Usage Example - Construction
//
//	b := protocol.NewBuilder(group, "Linux/6.1 SSDP/1.0.3 ssdpctl/1.0")
//	n := b.Notification()
//	n.SetSubject("urn:schemas-upnp-org:service:ContentDirectory:1")
//	n.SetUSN("uuid:0d8f...::urn:schemas-upnp-org:service:ContentDirectory:1")
//	n.SetMaxAge(60 * time.Second)
//	conn.WriteToUDP(n.Bytes(), group)
//
// # Error Handling
//
// Parse fails only on an unsupported start line (ErrUnsupportedMessageType),
// a folded line before any field (ErrDanglingContinuation) or a header line
// without a colon (ErrMalformedHeaderLine). Individual fields that the header
// store refuses are dropped and parsing continues.
//
// # Thread Safety
//
// Parse and Serialize are stateless. Message values are not safe for
// concurrent mutation.
package protocol
