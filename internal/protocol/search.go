package protocol

import (
	"net"
	"time"
)

// SearchRequest is an M-SEARCH request for a device or service type.
type SearchRequest struct {
	base

	// Sender is the endpoint a network-received request came from; search
	// responses are unicast back to it.
	Sender *net.UDPAddr
}

// NewSearchRequest returns an empty search request.
func NewSearchRequest() *SearchRequest {
	return &SearchRequest{base: newBase()}
}

func (r *SearchRequest) Kind() Kind { return KindSearchRequest }

func (r *SearchRequest) StartLine() string { return SearchLine }

func (r *SearchRequest) String() string { return Serialize(r) }

// Bytes returns the wire form as a byte slice.
func (r *SearchRequest) Bytes() []byte { return []byte(Serialize(r)) }

// Subject returns the ST field, ssdp:all when absent.
func (r *SearchRequest) Subject() string {
	return r.header.Get(FieldST, SearchAll)
}

// SetSubject replaces the ST field.
func (r *SearchRequest) SetSubject(st string) {
	r.replace(FieldST, st)
}

// Matches reports whether a notification subject answers this request.
func (r *SearchRequest) Matches(subject string) bool {
	st := r.Subject()
	return st == SearchAll || st == subject
}

// SearchResponse is the unicast HTTP 200 reply to an M-SEARCH request.
type SearchResponse struct {
	base

	// Address is the sender of a network-received response.
	Address net.IP
}

// NewSearchResponse returns an empty search response.
func NewSearchResponse() *SearchResponse {
	return &SearchResponse{base: newBase()}
}

func (r *SearchResponse) Kind() Kind { return KindSearchResponse }

func (r *SearchResponse) StartLine() string { return SearchResponseLine }

func (r *SearchResponse) String() string { return Serialize(r) }

// Bytes returns the wire form as a byte slice.
func (r *SearchResponse) Bytes() []byte { return []byte(Serialize(r)) }

// Subject returns the ST field, ssdp:all when absent.
func (r *SearchResponse) Subject() string {
	return r.header.Get(FieldST, SearchAll)
}

// SetSubject replaces the ST field.
func (r *SearchResponse) SetSubject(st string) {
	r.replace(FieldST, st)
}

// USN returns the unique service name of the answering device or service.
func (r *SearchResponse) USN() string {
	return r.header.Get(FieldUSN, "")
}

// SetUSN replaces the USN field.
func (r *SearchResponse) SetUSN(usn string) {
	r.replace(FieldUSN, usn)
}

// MaxAge returns the CACHE-CONTROL max-age, DefaultMaxAge when absent or invalid.
func (r *SearchResponse) MaxAge() time.Duration {
	return maxAgeOf(r.header)
}

// SetMaxAge sets the max-age directive.
func (r *SearchResponse) SetMaxAge(d time.Duration) {
	r.setMaxAge(d)
}
