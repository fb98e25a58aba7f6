// Package logging provides structured logging for the SSDP endpoint.
//
// This package wraps a global zap logger with convenience functions. The
// logger is silent until Initialize is called with a level or the
// SSDP_LOG_LEVEL environment variable is set.
//
// # Log Levels
//
//   - Debug: datagram dumps, sends, parse failures, websocket traffic
//   - Info: notification events, engine start and stop, monitor clients
//   - Warn: failed sends, unexpected receive errors
//   - Error: startup failures
//
// # Specialized Logging
//
//	logging.LogDatagram("multicast", from, data)
//	logging.LogNotification("added", n)
//	logging.LogSend(group, data, err)
//
// # Configuration
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Output goes to stderr so command output on stdout stays clean.
package logging
