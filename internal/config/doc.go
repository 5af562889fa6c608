// Package config loads and saves the greeac bridge configuration.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/greeac/config.yaml or $HOME/.config/greeac/config.yaml
//   - macOS: $HOME/.config/greeac/config.yaml
//   - Windows: %LOCALAPPDATA%\greeac\config.yaml
//
// Any command can point at another file with --config.
//
// # Example
//
//	version: 1
//	serial:
//	  port: /dev/ttyUSB0
//	  baud_rate: 4800
//	  data_bits: 8
//	  parity: even
//	  stop_bits: 1
//	update_interval: 30s
//	poll_interval: 50ms
//	server:
//	  listen: ":8080"
//	  control_rate: 2
//	discovery:
//	  advertise: true
//	metrics:
//	  enabled: true
//
// Sections left out of the file take their defaults. Serial settings other
// than 4800 8E1 are accepted but reported by SerialConfig.UARTMismatches.
package config
