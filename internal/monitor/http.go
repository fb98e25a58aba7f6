package monitor

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/muurk/ssdp/internal/logging"
	"github.com/muurk/ssdp/internal/protocol"
)

// ServiceView is the JSON form of a cached notification.
type ServiceView struct {
	USN           string `json:"usn"`
	Subject       string `json:"subject"`
	Type          string `json:"type"`
	Location      string `json:"location,omitempty"`
	Address       string `json:"address,omitempty"`
	MaxAgeSeconds int    `json:"max_age_seconds"`
}

// Snapshot is the body of the services endpoint.
type Snapshot struct {
	Active []ServiceView `json:"active"`
	Owned  []ServiceView `json:"owned"`
}

func newServiceViews(ns []*protocol.Notification) []ServiceView {
	views := make([]ServiceView, 0, len(ns))
	for _, n := range ns {
		v := ServiceView{
			USN:           n.USN(),
			Subject:       n.Subject(),
			Type:          n.Type(),
			Location:      n.Location(),
			MaxAgeSeconds: int(n.MaxAge().Seconds()),
		}
		if n.Address != nil {
			v.Address = n.Address.String()
		}
		views = append(views, v)
	}
	return views
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, Snapshot{
		Active: newServiceViews(s.source.ActiveNotifications()),
		Owned:  newServiceViews(s.source.OwnedNotifications()),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logging.Error("Failed to write JSON response", zap.Error(err))
	}
}

// statusRecorder captures the status code for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack hands the connection to the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, rec.status)
	})
}
