// Package ui provides terminal output for the ssdpctl CLI.
//
// Two kinds of output are supported:
//
//   - Printer renders "run once" output: a command header, success and error
//     boxes and a table of discovered services (lipgloss)
//   - Watch runs an interactive Bubble Tea screen with a live table of the
//     services seen on the network, fed by engine events
//
// # Watch Screen
//
//	err := ui.Watch(ctx, "SSDP watch", eng)
//
// Rows are keyed by USN and sorted. Added and Updated events insert or
// replace a row, Removed and Expired delete it. The EXPIRES column counts
// down from the announcement's max-age.
//
// # Logging Integration
//
// Logging is controlled via the SSDP_LOG_LEVEL environment variable. When
// unset, zap logging is silent so the curated output displays cleanly.
package ui
