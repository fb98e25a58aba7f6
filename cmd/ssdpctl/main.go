// Ssdpctl announces, searches for and watches SSDP services.
//
// It runs a full SSDP endpoint: persistent announcements with renewal and
// byebye on exit, M-SEARCH with live results, a live table of the services
// on the network and a daemon mode that serves announcements from the
// configuration file alongside an HTTP monitor.
//
// Usage:
//
//	ssdpctl [command] [flags]
//
// See 'ssdpctl --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/ssdp/internal/logging"
	"github.com/muurk/ssdp/internal/urls"
	"github.com/muurk/ssdp/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logging.Sync()
		os.Exit(1)
	}
	logging.Sync()
}

// Global flags
var (
	configPath     string
	logLevel       string
	groupAddress   string
	groupPort      int
	interfaceName  string
	immediate      bool
	notifyLoopback bool
	notifyAll      bool
)

var rootCmd = &cobra.Command{
	Use:   "ssdpctl",
	Short: "SSDP announcement and discovery utility",
	Long: `A standalone SSDP endpoint for announcing and discovering services.

Announces notifications on the SSDP multicast group, answers M-SEARCH
requests for them, and tracks the notifications other devices announce.

Settings are read from the configuration file (see 'ssdpctl config path');
network and option flags override the file.

References:
  SSDP/1.0                  ` + urls.SSDPDraft + `
  UPnP Device Architecture  ` + urls.DeviceArchitecture,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel != "" {
			return logging.Initialize(logLevel)
		}
		return logging.InitializeFromEnv()
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Configuration file (default: $SSDP_CONFIG or the user config dir)")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); default $SSDP_LOG_LEVEL, silent when unset")
	flags.StringVar(&groupAddress, "address", "", "Multicast group address (default 239.255.255.250)")
	flags.IntVar(&groupPort, "port", 0, "Multicast group port (default 1900)")
	flags.StringVar(&interfaceName, "interface", "", "Network interface for multicast traffic")
	flags.BoolVar(&immediate, "immediate", false, "Process received messages immediately instead of on the update tick")
	flags.BoolVar(&notifyLoopback, "notify-loopback", false, "Report events about this endpoint's own announcements")
	flags.BoolVar(&notifyAll, "notify-all", false, "Report every event")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ssdpctl %s\n", version.Full())
		fmt.Printf("signature: %s\n", version.Signature())
	},
}
