// Package config manages the YAML configuration of the ssdpctl tool.
//
// The file selects the multicast group and interface, the engine option
// flags, the renewal leeway, the HTTP monitor and the notifications that
// "ssdpctl serve" announces.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/ssdp/config.yaml or $HOME/.config/ssdp/config.yaml
//   - macOS: $HOME/.config/ssdp/config.yaml
//   - Windows: %LOCALAPPDATA%\ssdp\config.yaml
//
// The SSDP_CONFIG environment variable overrides the location.
//
// # Example
//
//	version: 1
//	network:
//	  address: 239.255.255.250
//	  port: 1900
//	options:
//	  immediate_processing: false
//	  notify_loopback: false
//	  notify_all: false
//	leeway_seconds: 5
//	update_interval_ms: 500
//	monitor:
//	  listen: 127.0.0.1:8900
//	  websocket_path: /events
//	  metrics_path: /metrics
//	announcements:
//	  - subject: upnp:rootdevice
//	    usn: uuid:2fac1234-31f8-11b4-a222-08002b34c003::upnp:rootdevice
//	    max_age_seconds: 1800
//	    location: http://192.168.1.10:8080/description.xml
//
// # Usage Example
//
//	cfg, err := config.LoadDefault()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ec, err := cfg.EngineConfig()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	e, err := engine.New(ec)
//
// # Thread Safety
//
// Save is serialized by a package mutex and writes atomically through a
// temporary file. Config values themselves are not safe for concurrent
// mutation.
package config
