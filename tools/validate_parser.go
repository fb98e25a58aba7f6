//go:build ignore

// validate_parser runs the SSDP codec over captured datagrams and reports
// which ones decode. Each capture file holds one raw datagram, e.g. as saved
// by `socat -u UDP4-RECV:1900,ip-add-membership=239.255.255.250:0.0.0.0 -`.
//
// Usage: go run tools/validate_parser.go <directory-or-file>
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/muurk/ssdp/internal/protocol"
)

// Statistics tracks parsing results
type Statistics struct {
	TotalFiles     int
	ParseSuccess   int
	ParseFailure   int
	RoundTripDiffs int
	MessageKinds   map[string]int
	ErrorKinds     map[string]int
	FailedMessages []FailedMessage
}

// FailedMessage stores information about parsing failures
type FailedMessage struct {
	File      string
	StartLine string
	Error     string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: validate_parser <directory-or-file>")
		fmt.Println("Example: validate_parser captures/")
		fmt.Println("         validate_parser captures/notify-0001.txt")
		os.Exit(1)
	}

	path := os.Args[1]

	stats := Statistics{
		MessageKinds: make(map[string]int),
		ErrorKinds:   make(map[string]int),
	}

	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Error accessing path: %v\n", err)
		os.Exit(1)
	}

	var files []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			fmt.Printf("Error reading directory: %v\n", err)
			os.Exit(1)
		}
		for _, e := range entries {
			if !e.IsDir() {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
		if len(files) == 0 {
			fmt.Printf("No capture files found in %s\n", path)
			os.Exit(1)
		}
	} else {
		files = []string{path}
	}

	fmt.Printf("=== SSDP Parser Validator ===\n")
	fmt.Printf("Files to process: %d\n\n", len(files))

	for _, file := range files {
		processFile(file, &stats)
	}

	printStatistics(&stats)
	if stats.ParseFailure > 0 {
		os.Exit(2)
	}
}

func processFile(filename string, stats *Statistics) {
	stats.TotalFiles++

	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Printf("Error reading file %s: %v\n", filename, err)
		return
	}

	msg, err := protocol.ParseBytes(data)
	if err != nil {
		stats.ParseFailure++
		stats.ErrorKinds[errorKind(err)]++
		stats.FailedMessages = append(stats.FailedMessages, FailedMessage{
			File:      filename,
			StartLine: firstLine(string(data)),
			Error:     err.Error(),
		})
		return
	}

	stats.ParseSuccess++
	stats.MessageKinds[msg.Kind().String()]++

	// Serializing and parsing again must give the same wire form
	again, err := protocol.Parse(protocol.Serialize(msg))
	if err != nil || protocol.Serialize(again) != protocol.Serialize(msg) {
		stats.RoundTripDiffs++
		fmt.Printf("Round trip changed %s\n", filename)
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, protocol.ErrUnsupportedMessageType):
		return "unsupported message type"
	case errors.Is(err, protocol.ErrDanglingContinuation):
		return "dangling continuation"
	case errors.Is(err, protocol.ErrMalformedHeaderLine):
		return "malformed header line"
	default:
		return "other"
	}
}

func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}

func printCounts(counts map[string]int, total int) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-28s %d (%.2f%%)\n", name+":", counts[name], float64(counts[name])/float64(total)*100)
	}
}

func printStatistics(stats *Statistics) {
	fmt.Printf("\n========================================\n")
	fmt.Printf("VALIDATION RESULTS\n")
	fmt.Printf("========================================\n\n")

	fmt.Printf("Files Processed:    %d\n", stats.TotalFiles)
	fmt.Printf("Parse Success:      %d\n", stats.ParseSuccess)
	fmt.Printf("Parse Failure:      %d\n", stats.ParseFailure)
	fmt.Printf("Round Trip Diffs:   %d\n", stats.RoundTripDiffs)

	if stats.ParseSuccess > 0 {
		fmt.Printf("\n----------------------------------------\n")
		fmt.Printf("MESSAGE KINDS\n")
		fmt.Printf("----------------------------------------\n")
		printCounts(stats.MessageKinds, stats.ParseSuccess)
	}

	if len(stats.FailedMessages) > 0 {
		fmt.Printf("\n----------------------------------------\n")
		fmt.Printf("PARSE FAILURES (%d total)\n", len(stats.FailedMessages))
		fmt.Printf("----------------------------------------\n")
		printCounts(stats.ErrorKinds, stats.ParseFailure)

		maxShow := 10
		if len(stats.FailedMessages) > maxShow {
			fmt.Printf("(Showing first %d of %d failures)\n", maxShow, len(stats.FailedMessages))
		}
		for i, failed := range stats.FailedMessages {
			if i >= maxShow {
				break
			}
			fmt.Printf("\nFailure #%d:\n", i+1)
			fmt.Printf("  File:  %s\n", failed.File)
			fmt.Printf("  Start: %q\n", failed.StartLine)
			fmt.Printf("  Error: %s\n", failed.Error)
		}
	}

	fmt.Printf("\n========================================\n")
	if stats.ParseFailure == 0 {
		fmt.Printf("SUCCESS: all datagrams parsed\n")
	} else {
		fmt.Printf("ISSUES FOUND: %d datagrams failed to parse\n", stats.ParseFailure)
	}
	fmt.Printf("========================================\n")
}
