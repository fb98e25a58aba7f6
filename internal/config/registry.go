package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/muurk/ssdp/internal/engine"
)

const (
	appName    = "ssdp"
	configFile = "config.yaml"

	// ConfigEnvVar overrides the configuration file location.
	ConfigEnvVar = "SSDP_CONFIG"
)

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory for the application.
// This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/ssdp or $HOME/.config/ssdp
//   - macOS: $HOME/.config/ssdp (following XDG convention on macOS)
//   - Windows: %LOCALAPPDATA%\ssdp
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".config", appName)

	default:
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" {
			baseDir = filepath.Join(xdgConfigHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return baseDir, nil
}

// GetConfigPath returns the full path to the configuration file.
// SSDP_CONFIG takes precedence over the platform location.
func GetConfigPath() (string, error) {
	if p := os.Getenv(ConfigEnvVar); p != "" {
		return p, nil
	}
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Load reads and validates the configuration at path.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewDefault(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported config version: %d (expected 1)", cfg.Version)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault loads the configuration from GetConfigPath.
func LoadDefault() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return Load(path)
}

// Save writes the configuration to path.
// Performs an atomic write to prevent corruption on crash.
func (c *Config) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# SSDP endpoint configuration\n# Location: " + path + "\n\n")
	if err := c.Write(&buf); err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}

// Write encodes the configuration as YAML.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return nil
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var fields []*FieldError
	add := func(field, reason string) {
		fields = append(fields, &FieldError{Field: field, Reason: reason})
	}

	if c.Network == nil {
		add("network", "missing")
	} else {
		ip := net.ParseIP(c.Network.Address)
		if ip == nil || ip.To4() == nil || !ip.IsMulticast() {
			add("network.address", fmt.Sprintf("%q is not an IPv4 multicast address", c.Network.Address))
		}
		if c.Network.Port <= 0 || c.Network.Port > 65535 {
			add("network.port", "must be between 1 and 65535")
		}
	}
	if c.LeewaySeconds < 0 {
		add("leeway_seconds", "must not be negative")
	}
	if c.UpdateIntervalMS <= 0 {
		add("update_interval_ms", "must be positive")
	}
	if c.Monitor != nil && c.Monitor.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Monitor.Listen); err != nil {
			add("monitor.listen", err.Error())
		}
	}
	if c.Monitor != nil && (c.Monitor.CertPath == "") != (c.Monitor.KeyPath == "") {
		add("monitor.cert_path", "cert_path and key_path must be set together")
	}

	seen := make(map[string]bool)
	for i, a := range c.Announcements {
		field := "announcements[" + strconv.Itoa(i) + "]"
		if a == nil || a.Subject == "" {
			add(field+".subject", "missing")
			continue
		}
		if a.MaxAgeSeconds < 0 {
			add(field+".max_age_seconds", "must not be negative")
		}
		if a.USN != "" {
			if seen[a.USN] {
				add(field+".usn", fmt.Sprintf("duplicate USN %q", a.USN))
			}
			seen[a.USN] = true
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// EngineConfig converts the file settings into an engine configuration.
// The caller fills in the clock, metrics and signature defaults.
func (c *Config) EngineConfig() (engine.Config, error) {
	var ec engine.Config

	ip := net.ParseIP(c.Network.Address)
	if ip == nil {
		return ec, fmt.Errorf("invalid group address %q", c.Network.Address)
	}
	ec.Group = &net.UDPAddr{IP: ip.To4(), Port: c.Network.Port}

	if c.Network.Interface != "" {
		iface, err := net.InterfaceByName(c.Network.Interface)
		if err != nil {
			return ec, fmt.Errorf("interface %q: %w", c.Network.Interface, err)
		}
		ec.Interface = iface
	}

	if c.Options != nil {
		if c.Options.ImmediateProcessing {
			ec.Options |= engine.ImmediateProcessing
		}
		if c.Options.NotifyLoopback {
			ec.Options |= engine.NotifyLoopback
		}
		if c.Options.NotifyAll {
			ec.Options |= engine.NotifyAll
		}
	}

	ec.Leeway = c.Leeway()
	ec.Signature = c.Signature
	return ec, nil
}
