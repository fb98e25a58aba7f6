package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/muurk/ssdp/internal/protocol"
)

// Config represents the entire configuration file.
type Config struct {
	Version int      `yaml:"version"`
	Network *Network `yaml:"network"`
	Options *Options `yaml:"options"`

	// LeewaySeconds is the renewal and expiry margin
	LeewaySeconds int `yaml:"leeway_seconds"`

	// UpdateIntervalMS is how often the engine's Update runs
	UpdateIntervalMS int `yaml:"update_interval_ms"`

	// Signature overrides the SERVER / USER-AGENT value
	Signature string `yaml:"signature,omitempty"`

	Monitor       *Monitor        `yaml:"monitor,omitempty"`
	Announcements []*Announcement `yaml:"announcements,omitempty"`
}

// Network selects the multicast group and interface.
type Network struct {
	Address   string `yaml:"address"`
	Port      int    `yaml:"port"`
	Interface string `yaml:"interface,omitempty"` // Interface name, empty for the system default
}

// Options mirrors the engine behaviour flags.
type Options struct {
	ImmediateProcessing bool `yaml:"immediate_processing"`
	NotifyLoopback      bool `yaml:"notify_loopback"`
	NotifyAll           bool `yaml:"notify_all"`
}

// Monitor configures the HTTP monitor started by "ssdpctl serve".
type Monitor struct {
	Listen        string `yaml:"listen"`
	WebSocketPath string `yaml:"websocket_path"`
	MetricsPath   string `yaml:"metrics_path"`

	// CertPath and KeyPath enable TLS when both are set
	CertPath string `yaml:"cert_path,omitempty"`
	KeyPath  string `yaml:"key_path,omitempty"`
}

// Announcement is a notification announced persistently by "ssdpctl serve".
type Announcement struct {
	Subject       string            `yaml:"subject"`                   // NT value
	USN           string            `yaml:"usn,omitempty"`             // Generated from Subject when empty
	MaxAgeSeconds int               `yaml:"max_age_seconds,omitempty"` // 0 means the protocol default
	Location      string            `yaml:"location,omitempty"`
	Headers       map[string]string `yaml:"headers,omitempty"` // Extra header fields
}

// NewDefault creates a Config with default values.
func NewDefault() *Config {
	return &Config{
		Version: 1,
		Network: &Network{
			Address: protocol.DefaultAddress,
			Port:    protocol.DefaultPort,
		},
		Options:          &Options{},
		LeewaySeconds:    5,
		UpdateIntervalMS: 500,
		Monitor: &Monitor{
			Listen:        "127.0.0.1:8900",
			WebSocketPath: "/events",
			MetricsPath:   "/metrics",
		},
	}
}

// applyDefaults fills sections missing from a loaded file.
func (c *Config) applyDefaults() {
	d := NewDefault()
	if c.Network == nil {
		c.Network = d.Network
	}
	if c.Network.Address == "" {
		c.Network.Address = d.Network.Address
	}
	if c.Network.Port == 0 {
		c.Network.Port = d.Network.Port
	}
	if c.Options == nil {
		c.Options = d.Options
	}
	if c.UpdateIntervalMS == 0 {
		c.UpdateIntervalMS = d.UpdateIntervalMS
	}
	if c.Monitor == nil {
		c.Monitor = d.Monitor
	}
	if c.Monitor.WebSocketPath == "" {
		c.Monitor.WebSocketPath = d.Monitor.WebSocketPath
	}
	if c.Monitor.MetricsPath == "" {
		c.Monitor.MetricsPath = d.Monitor.MetricsPath
	}
}

// Leeway returns the leeway as a duration; 0 selects the engine default.
func (c *Config) Leeway() time.Duration {
	return time.Duration(c.LeewaySeconds) * time.Second
}

// UpdateInterval returns how often Update should run.
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalMS) * time.Millisecond
}

// NewAnnouncement returns an announcement for subject with a freshly
// generated USN.
func NewAnnouncement(subject string) *Announcement {
	return &Announcement{
		Subject: subject,
		USN:     GenerateUSN(subject),
	}
}

// GenerateUSN returns "uuid:<random>::<subject>", or "uuid:<random>" for a
// uuid: subject.
func GenerateUSN(subject string) string {
	id := "uuid:" + uuid.NewString()
	if subject == "" || strings.HasPrefix(subject, "uuid:") {
		return id
	}
	return id + "::" + subject
}

// Apply writes the announcement into n: NT, USN, max-age, LOCATION and the
// extra headers in name order.
func (a *Announcement) Apply(n *protocol.Notification) error {
	n.SetSubject(a.Subject)
	usn := a.USN
	if usn == "" {
		usn = GenerateUSN(a.Subject)
	}
	n.SetUSN(usn)
	if a.MaxAgeSeconds > 0 {
		n.SetMaxAge(time.Duration(a.MaxAgeSeconds) * time.Second)
	}
	if a.Location != "" {
		if err := n.Header().Set(protocol.FieldLocation, a.Location); err != nil {
			return fmt.Errorf("location: %w", err)
		}
	}

	names := make([]string, 0, len(a.Headers))
	for name := range a.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := n.Header().Set(name, a.Headers[name]); err != nil {
			return fmt.Errorf("header %q: %w", name, err)
		}
	}
	return nil
}
