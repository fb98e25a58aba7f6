package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers, borders
	SuccessColor = lipgloss.Color("#43BF6D") // Green - alive, success
	ErrorColor   = lipgloss.Color("#FF5555") // Red - byebye, errors
	WarningColor = lipgloss.Color("#FFA500") // Orange - expiring, warnings
	MutedColor   = lipgloss.Color("#626262") // Gray - secondary info
	TextColor    = lipgloss.Color("#FFFFFF") // White - main content
)

// Layout constants
const (
	MinTerminalWidth = 60  // Minimum supported terminal width
	MaxContentWidth  = 160 // Maximum content width before capping
	DefaultHeight    = 24  // Height used when the terminal size is unknown
)

var (
	// HeaderTitleStyle is for the command title (e.g., "SSDP SEARCH")
	HeaderTitleStyle = lipgloss.NewStyle().Foreground(TextColor).Bold(true).PaddingLeft(2)

	// HeaderCommandStyle is for the command path (e.g., "ssdpctl search ssdp:all")
	HeaderCommandStyle = lipgloss.NewStyle().Foreground(MutedColor).PaddingLeft(2)

	// HeaderParamKeyStyle is for parameter keys (e.g., "Group:")
	HeaderParamKeyStyle = lipgloss.NewStyle().Foreground(MutedColor).PaddingLeft(2)

	// HeaderParamValueStyle is for parameter values (e.g., "239.255.255.250:1900")
	HeaderParamValueStyle = lipgloss.NewStyle().Foreground(TextColor)

	SuccessTitleStyle = lipgloss.NewStyle().Foreground(SuccessColor).Bold(true)

	ErrorTitleStyle = lipgloss.NewStyle().Foreground(ErrorColor).Bold(true)

	ErrorMessageStyle = lipgloss.NewStyle().Foreground(ErrorColor)

	ResultKeyStyle = lipgloss.NewStyle().Foreground(MutedColor).Width(15)

	ResultValueStyle = lipgloss.NewStyle().Foreground(TextColor)

	TroubleshootingTitleStyle = lipgloss.NewStyle().Foreground(MutedColor).Bold(true)

	TroubleshootingItemStyle = lipgloss.NewStyle().Foreground(MutedColor)

	// TableHeaderStyle is for service table column titles
	TableHeaderStyle = lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true).Padding(0, 1)

	// TableCellStyle is for service table cells
	TableCellStyle = lipgloss.NewStyle().Foreground(TextColor).Padding(0, 1)

	// StatusBarStyle is for the watch footer
	StatusBarStyle = lipgloss.NewStyle().Foreground(MutedColor).PaddingLeft(1)
)

// Result markers
const (
	SuccessMarker = "✓"
	FailureMarker = "✗"
)

// ReasonStyle colours an engine event reason.
func ReasonStyle(reason string) lipgloss.Style {
	s := lipgloss.NewStyle().Bold(true)
	switch reason {
	case "added", "updated":
		return s.Foreground(SuccessColor)
	case "removed":
		return s.Foreground(ErrorColor)
	case "expired":
		return s.Foreground(WarningColor)
	default:
		return s.Foreground(MutedColor)
	}
}

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// GetTerminalWidth returns the current terminal width, with fallback
func GetTerminalWidth() int {
	width, _ := GetTerminalSize()
	return width
}

// GetTerminalSize returns the current terminal width and height
func GetTerminalSize() (int, int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return MinTerminalWidth, DefaultHeight
	}
	return clampWidth(width), height
}

func clampWidth(width int) int {
	if width < MinTerminalWidth {
		return MinTerminalWidth
	}
	if width > MaxContentWidth {
		return MaxContentWidth
	}
	return width
}

// HeaderBorderStyle returns the border style for command headers
func HeaderBorderStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2) // Account for border characters
}

// SuccessBoxStyle returns the border style for success result boxes
func SuccessBoxStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(SuccessColor).
		Width(width - 2).
		Padding(0, 2)
}

// ErrorBoxStyle returns the border style for error result boxes
func ErrorBoxStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(ErrorColor).
		Width(width - 2).
		Padding(0, 2)
}

// RenderHorizontalDivider creates a horizontal line of the specified width
func RenderHorizontalDivider(width int, char string) string {
	return lipgloss.NewStyle().
		Foreground(PrimaryColor).
		Render(strings.Repeat(char, width))
}
