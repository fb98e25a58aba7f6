// Package monitor exposes a running SSDP engine over HTTP.
//
// # Endpoints
//
//   - GET /events: WebSocket stream, one JSON text message per engine event
//   - GET /services: JSON snapshot of the active and owned caches
//   - GET /metrics: Prometheus metrics, when a metrics set is given
//
// An event message looks like:
//
//	{
//	  "time": "2024-05-01T10:00:00Z",
//	  "reason": "added",
//	  "usn": "uuid:2fac1234-31f8-11b4-a222-08002b34c003::upnp:rootdevice",
//	  "subject": "upnp:rootdevice",
//	  "type": "ssdp:alive",
//	  "address": "192.168.1.50",
//	  "headers": {"NT": ["upnp:rootdevice"], "LOCATION": ["http://192.168.1.50/desc.xml"]}
//	}
//
// Events are queued per client and never block the engine. A client that
// falls more than 64 events behind loses the overflow.
//
// # Usage Example
//
//	srv, err := monitor.New(monitor.Config{Listen: "127.0.0.1:8900"}, eng, m)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start blocks until ctx is done, then shuts down gracefully
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # TLS
//
// Setting CertPath and KeyPath serves HTTPS and WSS with TLS 1.2 or later.
package monitor
