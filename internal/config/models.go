package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/muurk/greeac/internal/protocol"
)

// currentVersion is the config file schema version.
const currentVersion = 1

// Config represents the entire bridge configuration file.
type Config struct {
	Version        int              `yaml:"version"`
	Serial         *SerialConfig    `yaml:"serial"`
	UpdateInterval time.Duration    `yaml:"update_interval"` // Periodic resend of the command frame
	PollInterval   time.Duration    `yaml:"poll_interval"`   // How often the UART receive buffer is checked
	Server         *ServerConfig    `yaml:"server"`
	Discovery      *DiscoveryConfig `yaml:"discovery"`
	Logging        *LoggingConfig   `yaml:"logging"`
	Metrics        *MetricsConfig   `yaml:"metrics"`
}

// SerialConfig describes the UART link to the indoor unit.
// Either Port or VID/PID must be set; VID/PID picks the first matching USB adapter.
type SerialConfig struct {
	Port     string `yaml:"port,omitempty"` // e.g. /dev/ttyUSB0
	VID      string `yaml:"vid,omitempty"`  // USB vendor ID, hex (e.g. "1a86")
	PID      string `yaml:"pid,omitempty"`  // USB product ID, hex (e.g. "7523")
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	Parity   string `yaml:"parity"` // none, odd, even, mark, space
	StopBits int    `yaml:"stop_bits"`
}

// ServerConfig configures the HTTP/WebSocket API.
type ServerConfig struct {
	Listen   string `yaml:"listen"`
	CertFile string `yaml:"cert_file,omitempty"` // TLS is enabled when both are set
	KeyFile  string `yaml:"key_file,omitempty"`

	// Control requests per second; 0 disables the limit
	ControlRate  float64 `yaml:"control_rate,omitempty"`
	ControlBurst int     `yaml:"control_burst,omitempty"`
}

// DiscoveryConfig controls mDNS advertisement of the bridge.
type DiscoveryConfig struct {
	Advertise bool   `yaml:"advertise"`
	Instance  string `yaml:"instance,omitempty"` // Defaults to the hostname
}

// LoggingConfig mirrors logging.Options.
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`
	Format     string `yaml:"format,omitempty"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
	Compress   bool   `yaml:"compress,omitempty"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default creates a Config with the values the indoor unit expects.
func Default() *Config {
	return &Config{
		Version: currentVersion,
		Serial: &SerialConfig{
			Port:     "/dev/ttyUSB0",
			BaudRate: protocol.BaudRate,
			DataBits: protocol.DataBits,
			Parity:   protocol.Parity,
			StopBits: protocol.StopBits,
		},
		UpdateInterval: 30 * time.Second,
		PollInterval:   50 * time.Millisecond,
		Server: &ServerConfig{
			Listen:      ":8080",
			ControlRate: 2,
		},
		Discovery: &DiscoveryConfig{
			Advertise: true,
		},
		Logging: &LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Metrics: &MetricsConfig{
			Enabled: true,
		},
	}
}

// fillDefaults replaces missing sections and zero values with defaults.
func (c *Config) fillDefaults() {
	d := Default()
	if c.Version == 0 {
		c.Version = d.Version
	}
	if c.Serial == nil {
		c.Serial = d.Serial
	} else {
		if c.Serial.BaudRate == 0 {
			c.Serial.BaudRate = d.Serial.BaudRate
		}
		if c.Serial.DataBits == 0 {
			c.Serial.DataBits = d.Serial.DataBits
		}
		if c.Serial.Parity == "" {
			c.Serial.Parity = d.Serial.Parity
		}
		if c.Serial.StopBits == 0 {
			c.Serial.StopBits = d.Serial.StopBits
		}
	}
	if c.UpdateInterval == 0 {
		c.UpdateInterval = d.UpdateInterval
	}
	if c.PollInterval == 0 {
		c.PollInterval = d.PollInterval
	}
	if c.Server == nil {
		c.Server = d.Server
	}
	if c.Discovery == nil {
		c.Discovery = d.Discovery
	}
	if c.Logging == nil {
		c.Logging = d.Logging
	}
	if c.Metrics == nil {
		c.Metrics = d.Metrics
	}
}

var validParity = map[string]bool{
	"none": true, "odd": true, "even": true, "mark": true, "space": true,
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Version != currentVersion {
		errs = append(errs, fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, currentVersion))
	}

	if c.Serial == nil {
		errs = append(errs, errors.New("serial: section missing"))
	} else {
		s := c.Serial
		if s.Port == "" && (s.VID == "" || s.PID == "") {
			errs = append(errs, errors.New("serial: port or vid/pid required"))
		}
		if s.BaudRate <= 0 {
			errs = append(errs, fmt.Errorf("serial: invalid baud rate %d", s.BaudRate))
		}
		if s.DataBits < 5 || s.DataBits > 8 {
			errs = append(errs, fmt.Errorf("serial: invalid data bits %d", s.DataBits))
		}
		if !validParity[strings.ToLower(s.Parity)] {
			errs = append(errs, fmt.Errorf("serial: unknown parity %q", s.Parity))
		}
		if s.StopBits != 1 && s.StopBits != 2 {
			errs = append(errs, fmt.Errorf("serial: invalid stop bits %d", s.StopBits))
		}
	}

	if c.UpdateInterval <= 0 {
		errs = append(errs, fmt.Errorf("update_interval must be positive, got %s", c.UpdateInterval))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval))
	}

	if c.Server != nil && (c.Server.CertFile == "") != (c.Server.KeyFile == "") {
		errs = append(errs, errors.New("server: cert_file and key_file must be set together"))
	}
	if c.Server != nil && (c.Server.ControlRate < 0 || c.Server.ControlBurst < 0) {
		errs = append(errs, errors.New("server: control_rate and control_burst must not be negative"))
	}

	return errors.Join(errs...)
}

// UARTMismatches lists serial settings that differ from the 4800 8E1 the
// indoor unit speaks. The bridge still starts, but warns about each one.
func (s *SerialConfig) UARTMismatches() []string {
	var out []string
	if s.BaudRate != protocol.BaudRate {
		out = append(out, fmt.Sprintf("baud rate %d (unit uses %d)", s.BaudRate, protocol.BaudRate))
	}
	if s.DataBits != protocol.DataBits {
		out = append(out, fmt.Sprintf("data bits %d (unit uses %d)", s.DataBits, protocol.DataBits))
	}
	if !strings.EqualFold(s.Parity, protocol.Parity) {
		out = append(out, fmt.Sprintf("parity %s (unit uses %s)", s.Parity, protocol.Parity))
	}
	if s.StopBits != protocol.StopBits {
		out = append(out, fmt.Sprintf("stop bits %d (unit uses %d)", s.StopBits, protocol.StopBits))
	}
	return out
}

// TLSEnabled reports whether the API should be served over TLS.
func (s *ServerConfig) TLSEnabled() bool {
	return s.CertFile != "" && s.KeyFile != ""
}
