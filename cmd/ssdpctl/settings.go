package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/ssdp/internal/config"
	"github.com/muurk/ssdp/internal/engine"
	"github.com/muurk/ssdp/internal/logging"
	"github.com/muurk/ssdp/internal/metrics"
	"github.com/muurk/ssdp/internal/version"
)

// loadConfig reads the configuration file and applies the global flags the
// user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath
	if path == "" {
		p, err := config.GetConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("address") {
		cfg.Network.Address = groupAddress
	}
	if flags.Changed("port") {
		cfg.Network.Port = groupPort
	}
	if flags.Changed("interface") {
		cfg.Network.Interface = interfaceName
	}
	if flags.Changed("immediate") {
		cfg.Options.ImmediateProcessing = immediate
	}
	if flags.Changed("notify-loopback") {
		cfg.Options.NotifyLoopback = notifyLoopback
	}
	if flags.Changed("notify-all") {
		cfg.Options.NotifyAll = notifyAll
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.Debug("Configuration loaded",
		zap.String("path", path),
		zap.String("group", fmt.Sprintf("%s:%d", cfg.Network.Address, cfg.Network.Port)),
		zap.Int("announcements", len(cfg.Announcements)),
	)
	return cfg, nil
}

// engineConfig converts cfg and fills the defaults the file leaves open.
func engineConfig(cfg *config.Config, m *metrics.Metrics) (engine.Config, error) {
	ec, err := cfg.EngineConfig()
	if err != nil {
		return ec, err
	}
	if ec.Signature == "" {
		ec.Signature = version.Signature()
	}
	ec.Metrics = m
	ec.OnError = func(err error) {
		logging.Error("SSDP transport error", zap.Error(err))
	}
	return ec, nil
}

// newEngine builds a stopped engine with the extra options set.
func newEngine(cfg *config.Config, m *metrics.Metrics, extra engine.Options) (*engine.Engine, error) {
	ec, err := engineConfig(cfg, m)
	if err != nil {
		return nil, err
	}
	ec.Options |= extra
	e, err := engine.New(ec)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return e, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// groupString formats the multicast group of cfg.
func groupString(cfg *config.Config) string {
	return fmt.Sprintf("%s:%d", cfg.Network.Address, cfg.Network.Port)
}
