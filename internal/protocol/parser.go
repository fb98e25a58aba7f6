package protocol

import (
	"regexp"
	"strings"
)

var (
	// requestLinePattern matches "<method> * HTTP/x.y"
	requestLinePattern = regexp.MustCompile(`(?i)^([a-z_-]+)\s+\*\s+HTTP/[0-9]+\.[0-9]+$`)

	// statusLinePattern matches "HTTP/x.y 200 <reason>"
	statusLinePattern = regexp.MustCompile(`(?i)^HTTP/[0-9]+\.[0-9]+\s+200(\s|$)`)
)

// Parse decodes SSDP wire text into a Notification, SearchRequest or
// SearchResponse. Lines may end with CRLF or a bare LF. Parsing stops at the
// first blank line; any body after it is ignored. Header fields the store
// refuses (for example an invalid field name) are dropped without failing the
// message.
func Parse(text string) (Message, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	m, err := messageFor(lines[0])
	if err != nil {
		return nil, err
	}

	h := m.Header()
	name, value := "", ""
	flush := func() {
		if name != "" {
			// Best-effort: a refused field is dropped, parsing continues.
			// Empty values are accepted so EXT: survives a round trip.
			_ = h.Add(name, value)
		}
		name, value = "", ""
	}

	for i := 1; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			break
		}

		if line[0] == ' ' || line[0] == '\t' {
			if name == "" {
				return nil, &ParseError{Err: ErrDanglingContinuation, Line: i + 1, Text: line}
			}
			value += line
			continue
		}

		flush()

		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			return nil, &ParseError{Err: ErrMalformedHeaderLine, Line: i + 1, Text: line}
		}
		name = line[:colon]
		value = strings.TrimLeft(line[colon+1:], " \t")
	}
	flush()

	return m, nil
}

// ParseBytes is Parse for a received datagram.
func ParseBytes(data []byte) (Message, error) {
	return Parse(string(data))
}

// messageFor picks the message variant from the start line.
func messageFor(startLine string) (Message, error) {
	if match := requestLinePattern.FindStringSubmatch(startLine); match != nil {
		switch strings.ToUpper(match[1]) {
		case "NOTIFY":
			return NewNotification(), nil
		case "M-SEARCH":
			return NewSearchRequest(), nil
		}
	} else if statusLinePattern.MatchString(startLine) {
		return NewSearchResponse(), nil
	}

	return nil, &ParseError{Err: ErrUnsupportedMessageType, Line: 1, Text: startLine}
}
