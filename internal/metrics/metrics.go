// Package metrics exposes Prometheus collectors for an SSDP endpoint.
//
// A Metrics value owns its own registry so several engines (or tests) can
// coexist in one process. Every method is safe on a nil *Metrics, which
// records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ssdp"

// Metrics holds the endpoint's collectors.
type Metrics struct {
	registry *prometheus.Registry

	received   *prometheus.CounterVec
	discarded  *prometheus.CounterVec
	sent       *prometheus.CounterVec
	sendErrors prometheus.Counter
	events     *prometheus.CounterVec
	renewals   prometheus.Counter
	active     prometheus.Gauge
	owned      prometheus.Gauge
}

// New creates the collectors and registers them, along with the Go runtime
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		received: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_received_total",
				Help:      "Parsed SSDP messages received, by kind.",
			},
			[]string{"kind"},
		),
		discarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "datagrams_discarded_total",
				Help:      "Datagrams that failed to parse, by socket.",
			},
			[]string{"socket"},
		),
		sent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_sent_total",
				Help:      "SSDP messages sent, by kind.",
			},
			[]string{"kind"},
		),
		sendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_errors_total",
			Help:      "Failed sends.",
		}),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_events_total",
				Help:      "Notification events delivered to listeners, by reason.",
			},
			[]string{"reason"},
		),
		renewals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renewals_total",
			Help:      "Owned notifications re-announced before expiry.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_notifications",
			Help:      "Notifications currently known from the network.",
		}),
		owned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "owned_notifications",
			Help:      "Persistent notifications announced by this endpoint.",
		}),
	}

	m.registry.MustRegister(
		m.received, m.discarded, m.sent, m.sendErrors,
		m.events, m.renewals, m.active, m.owned,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Received counts a parsed inbound message.
func (m *Metrics) Received(kind string) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(kind).Inc()
}

// Discarded counts a datagram dropped by the parser.
func (m *Metrics) Discarded(socket string) {
	if m == nil {
		return
	}
	m.discarded.WithLabelValues(socket).Inc()
}

// Sent counts an outbound message; a non-nil err counts as a failed send.
func (m *Metrics) Sent(kind string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.sendErrors.Inc()
		return
	}
	m.sent.WithLabelValues(kind).Inc()
}

// Event counts a notification event.
func (m *Metrics) Event(reason string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(reason).Inc()
}

// Renewed counts a re-announcement.
func (m *Metrics) Renewed() {
	if m == nil {
		return
	}
	m.renewals.Inc()
}

// SetCacheSizes records the size of both notification caches.
func (m *Metrics) SetCacheSizes(active, owned int) {
	if m == nil {
		return
	}
	m.active.Set(float64(active))
	m.owned.Set(float64(owned))
}
