package protocol

import (
	"errors"
	"fmt"
)

// Parse error kinds. A ParseError always wraps exactly one of these.
var (
	// ErrUnsupportedMessageType means the start line is neither a NOTIFY or
	// M-SEARCH request line nor a 200 status line.
	ErrUnsupportedMessageType = errors.New("unsupported message type")

	// ErrDanglingContinuation means a folded (whitespace-led) line appeared
	// before any header field.
	ErrDanglingContinuation = errors.New("continuation line without a header field")

	// ErrMalformedHeaderLine means a header line has no colon or an empty name.
	ErrMalformedHeaderLine = errors.New("malformed header line")
)

// ParseError describes why a datagram could not be decoded. It is fatal to
// the datagram only.
type ParseError struct {
	Err  error  // One of the Err* kinds above
	Line int    // 1-based line number of the offending line
	Text string // The offending line
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("ssdp parse: %v at line %d: %q", e.Err, e.Line, truncate(e.Text, 64))
}

// Unwrap returns the error kind for errors.Is
func (e *ParseError) Unwrap() error {
	return e.Err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
