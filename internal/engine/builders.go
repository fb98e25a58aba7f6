package engine

import "github.com/muurk/ssdp/internal/protocol"

// CreateNotification returns an alive notification with HOST, SERVER and a
// 30 second max-age. The caller sets NT and USN.
func (e *Engine) CreateNotification() *protocol.Notification {
	return e.builder.Notification()
}

// CreateNotificationFromResponse translates a search response into the
// notification it advertises.
func (e *Engine) CreateNotificationFromResponse(r *protocol.SearchResponse) *protocol.Notification {
	return e.builder.NotificationFromResponse(r)
}

// CreateSearchRequest returns an M-SEARCH for subject, ssdp:all when empty.
func (e *Engine) CreateSearchRequest(subject string) *protocol.SearchRequest {
	return e.builder.SearchRequest(subject)
}

// CreateSearchResponse returns a search response for subject and usn.
func (e *Engine) CreateSearchResponse(subject, usn string) *protocol.SearchResponse {
	return e.builder.SearchResponse(subject, usn)
}

// CreateSearchResponseFromNotification returns the response answering a
// search on behalf of n.
func (e *Engine) CreateSearchResponseFromNotification(n *protocol.Notification) *protocol.SearchResponse {
	return e.builder.SearchResponseFromNotification(n)
}
