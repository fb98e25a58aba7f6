package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/ssdp/internal/config"
	"github.com/muurk/ssdp/internal/discovery"
	"github.com/muurk/ssdp/internal/engine"
	"github.com/muurk/ssdp/internal/logging"
	"github.com/muurk/ssdp/internal/metrics"
	"github.com/muurk/ssdp/internal/monitor"
	"github.com/muurk/ssdp/internal/protocol"
	"github.com/muurk/ssdp/internal/ui"
	"github.com/muurk/ssdp/internal/urls"
)

// Command flags
var (
	announceUSN      string
	announceLocation string
	announceMaxAge   int
	announceHeaders  []string

	searchTimeout int
	outputFormat  string

	forceInit bool
)

func init() {
	rootCmd.AddCommand(announceCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)

	announceCmd.Flags().StringVar(&announceUSN, "usn", "", "Unique service name (default: generated uuid)")
	announceCmd.Flags().StringVar(&announceLocation, "location", "", "LOCATION header (description URL)")
	announceCmd.Flags().IntVar(&announceMaxAge, "max-age", 0, "Cache max-age in seconds (default 30)")
	announceCmd.Flags().StringArrayVar(&announceHeaders, "header", nil, "Extra header as NAME=VALUE (repeatable)")

	for _, c := range []*cobra.Command{searchCmd, scanCmd} {
		c.Flags().IntVar(&searchTimeout, "timeout", 5, "Search timeout in seconds")
		c.Flags().StringVar(&outputFormat, "format", "table", "Output format (table, json)")
	}

	configCmd.AddCommand(configInitCmd, configShowCmd, configPathCmd)
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing configuration file")
}

// announceCmd announces one persistent notification until interrupted
var announceCmd = &cobra.Command{
	Use:   "announce <subject>",
	Short: "Announce a service until interrupted",
	Long: `Announce a persistent ssdp:alive notification for the given subject (NT).

The notification is renewed before its max-age runs out and M-SEARCH
requests matching it are answered. On exit an ssdp:byebye is sent.`,
	Example: `  # Announce a root device
  ssdpctl announce upnp:rootdevice --location http://192.168.1.10:8080/desc.xml

  # Announce with a fixed USN and a long max-age
  ssdpctl announce urn:schemas-upnp-org:service:ContentDirectory:1 \
    --usn uuid:2fac1234-31f8-11b4-a222-08002b34c003::urn:schemas-upnp-org:service:ContentDirectory:1 \
    --max-age 1800`,
	Args: cobra.ExactArgs(1),
	RunE: runAnnounce,
}

func runAnnounce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a := &config.Announcement{
		Subject:       args[0],
		USN:           announceUSN,
		MaxAgeSeconds: announceMaxAge,
		Location:      announceLocation,
		Headers:       make(map[string]string),
	}
	if a.USN == "" {
		a.USN = config.GenerateUSN(a.Subject)
	}
	for _, h := range announceHeaders {
		name, value, ok := strings.Cut(h, "=")
		if !ok || name == "" {
			return fmt.Errorf("invalid --header %q (expected NAME=VALUE)", h)
		}
		a.Headers[name] = value
	}

	e, err := newEngine(cfg, nil, 0)
	if err != nil {
		return err
	}
	n := e.CreateNotification()
	if err := a.Apply(n); err != nil {
		return fmt.Errorf("invalid announcement: %w", err)
	}
	if err := e.Notify(n, true); err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if err := e.Start(); err != nil {
		return err
	}

	p := ui.NewPrinter(os.Stdout)
	p.PrintSuccess("Announcing (Ctrl+C to stop)", map[string]string{
		"Subject":  n.Subject(),
		"USN":      n.USN(),
		"Max-Age":  n.MaxAge().String(),
		"Group":    groupString(cfg),
		"Location": n.Location(),
	})

	runErr := e.Run(ctx, cfg.UpdateInterval())
	stopErr := e.Stop(false)
	if stopErr != nil {
		return stopErr
	}
	if !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	p.Println("Sent ssdp:byebye for " + n.USN())
	return nil
}

// searchCmd sends one M-SEARCH and prints results as they arrive
var searchCmd = &cobra.Command{
	Use:   "search [subject]",
	Short: "Send an M-SEARCH and print responses as they arrive",
	Long: `Send an M-SEARCH for the given subject (ST, default ssdp:all) and print
each responding service as it arrives, until the timeout.`,
	Example: `  # Search for everything
  ssdpctl search

  # Search for root devices for 10 seconds, JSON lines output
  ssdpctl search upnp:rootdevice --timeout 10 --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	subject := protocol.SearchAll
	if len(args) == 1 {
		subject = args[0]
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	e, err := newEngine(cfg, nil, engine.ImmediateProcessing)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, time.Duration(searchTimeout)*time.Second)
	defer cancelTimeout()

	var mu sync.Mutex
	seen := make(map[string]bool)
	enc := json.NewEncoder(os.Stdout)
	report := func(n *protocol.Notification, reason engine.Reason) {
		if reason != engine.Added && reason != engine.Updated {
			return
		}
		if subject != protocol.SearchAll && n.Subject() != subject {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if seen[n.USN()] {
			return
		}
		seen[n.USN()] = true

		svc := discovery.NewService(n, time.Now())
		if outputFormat == "json" {
			_ = enc.Encode(svc)
			return
		}
		fmt.Printf("%-60s %-40s %s\n", svc.USN, svc.Subject, svc.Host())
	}

	unsubscribe := e.Subscribe(report)
	defer unsubscribe()

	if outputFormat != "json" {
		ui.NewPrinter(os.Stdout).PrintHeader("SSDP search", "ssdpctl search "+subject, map[string]string{
			"Group":   groupString(cfg),
			"Timeout": fmt.Sprintf("%ds", searchTimeout),
		})
	}

	if err := e.Start(); err != nil {
		return err
	}
	if err := e.SearchSubject(subject, report); err != nil {
		logging.Warn("Search request failed", zap.Error(err))
	}

	<-ctx.Done()
	if err := e.Stop(false); err != nil {
		return err
	}

	if outputFormat != "json" {
		mu.Lock()
		fmt.Printf("\n%d service(s) responded\n", len(seen))
		mu.Unlock()
	}
	return nil
}

// scanCmd collects services for the timeout and prints a table
var scanCmd = &cobra.Command{
	Use:   "scan [subject]",
	Short: "Scan the network and list discovered services",
	Long: `Scan for SSDP services using an M-SEARCH plus the announcements heard
during the scan. Services that leave during the scan are not listed.`,
	Example: `  # Scan for 5 seconds (default)
  ssdpctl scan

  # Scan for media servers as JSON
  ssdpctl scan urn:schemas-upnp-org:device:MediaServer:1 --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ec, err := engineConfig(cfg, nil)
	if err != nil {
		return err
	}

	scanner := discovery.NewScanner()
	scanner.Timeout = time.Duration(searchTimeout) * time.Second
	scanner.Config = ec
	if len(args) == 1 {
		scanner.Subject = args[0]
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	p := ui.NewPrinter(os.Stdout)
	if outputFormat != "json" {
		fmt.Printf("Scanning for SSDP services (timeout: %ds)...\n\n", searchTimeout)
	}

	services, err := scanner.ScanWithContext(ctx)
	if err != nil {
		p.PrintError("Scan failed", err, []string{
			"Check that the multicast port is not blocked by a firewall",
			"Select the LAN interface with --interface",
			"Try increasing --timeout for slower devices",
			"Group address registry: " + urls.MulticastAddresses,
		})
		return fmt.Errorf("scan failed: %w", err)
	}

	if outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(services)
	}
	p.PrintServices(services)
	return nil
}

// watchCmd shows a live table of the services on the network
var watchCmd = &cobra.Command{
	Use:   "watch [subject]",
	Short: "Show a live table of services on the network",
	Long: `Search for the given subject (default ssdp:all) and keep a live table of
every service announced, updated, removed or expired on the network.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	subject := protocol.SearchAll
	if len(args) == 1 {
		subject = args[0]
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	e, err := newEngine(cfg, nil, 0)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if err := e.Start(); err != nil {
		return err
	}
	defer func() {
		if err := e.Stop(false); err != nil {
			logging.Warn("Failed to stop engine", zap.Error(err))
		}
	}()

	go func() {
		_ = e.Run(ctx, cfg.UpdateInterval())
	}()

	// Subscribe before searching so early responses reach the table
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- ui.Watch(ctx, "SSDP watch "+subject, e)
		cancel()
	}()
	if err := e.SearchSubject(subject, nil); err != nil {
		logging.Warn("Search request failed", zap.Error(err))
	}

	return <-watchErr
}

// serveCmd runs the configured announcements and the monitor
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Announce configured services and serve the HTTP monitor",
	Long: `Run as a daemon: announce every entry of the configuration file's
announcements list, answer searches for them, track the network and serve
the HTTP monitor (event stream, service snapshot and Prometheus metrics).`,
	Example: `  # Create a configuration file, edit it, then serve
  ssdpctl config init
  ssdpctl serve --log-level info`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	m := metrics.New()
	e, err := newEngine(cfg, m, 0)
	if err != nil {
		return err
	}

	for i, a := range cfg.Announcements {
		n := e.CreateNotification()
		if err := a.Apply(n); err != nil {
			return fmt.Errorf("announcements[%d]: %w", i, err)
		}
		if err := e.Notify(n, true); err != nil {
			return err
		}
	}

	srv, err := monitor.New(monitor.Config{
		Listen:        cfg.Monitor.Listen,
		WebSocketPath: cfg.Monitor.WebSocketPath,
		MetricsPath:   cfg.Monitor.MetricsPath,
		CertPath:      cfg.Monitor.CertPath,
		KeyPath:       cfg.Monitor.KeyPath,
	}, e, m)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if err := e.Start(); err != nil {
		return err
	}
	logging.Info("Serving SSDP announcements",
		zap.String("group", groupString(cfg)),
		zap.Int("announcements", len(cfg.Announcements)),
		zap.String("monitor", cfg.Monitor.Listen),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.Run(gctx, cfg.UpdateInterval())
	})
	if cfg.Monitor.Listen != "" {
		g.Go(func() error {
			return srv.Start(gctx)
		})
	}

	err = g.Wait()
	if stopErr := e.Stop(false); stopErr != nil {
		return stopErr
	}
	if cfg.Monitor.Listen == "" {
		_ = srv.Shutdown(context.Background())
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// configCmd groups configuration file commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file with one example announcement",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolvedConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !forceInit {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}

		cfg := config.NewDefault()
		a := config.NewAnnouncement("upnp:rootdevice")
		a.MaxAgeSeconds = 1800
		cfg.Announcements = append(cfg.Announcements, a)

		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return cfg.Write(os.Stdout)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolvedConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

func resolvedConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}
