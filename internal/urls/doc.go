// Package urls provides constants for the protocol references linked from
// the CLI.
//
// Usage:
//
//	import "github.com/muurk/ssdp/internal/urls"
//
//	fmt.Printf("Protocol reference: %s\n", urls.SSDPDraft)
package urls
