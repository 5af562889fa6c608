package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(c *Config) {},
		},
		{
			name:   "vid/pid instead of port",
			mutate: func(c *Config) { c.Serial.Port = ""; c.Serial.VID = "1a86"; c.Serial.PID = "7523" },
		},
		{
			name:    "no port",
			mutate:  func(c *Config) { c.Serial.Port = "" },
			wantErr: "port or vid/pid",
		},
		{
			name:    "vid without pid",
			mutate:  func(c *Config) { c.Serial.Port = ""; c.Serial.VID = "1a86" },
			wantErr: "port or vid/pid",
		},
		{
			name:    "zero update interval",
			mutate:  func(c *Config) { c.UpdateInterval = 0 },
			wantErr: "update_interval",
		},
		{
			name:    "negative poll interval",
			mutate:  func(c *Config) { c.PollInterval = -time.Second },
			wantErr: "poll_interval",
		},
		{
			name:    "unknown parity",
			mutate:  func(c *Config) { c.Serial.Parity = "sometimes" },
			wantErr: "parity",
		},
		{
			name:    "cert without key",
			mutate:  func(c *Config) { c.Server.CertFile = "cert.pem" },
			wantErr: "cert_file and key_file",
		},
		{
			name:    "negative control rate",
			mutate:  func(c *Config) { c.Server.ControlRate = -1 },
			wantErr: "control_rate",
		},
		{
			name:    "bad data bits",
			mutate:  func(c *Config) { c.Serial.DataBits = 9 },
			wantErr: "data bits",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAll(t *testing.T) {
	cfg := Default()
	cfg.UpdateInterval = 0
	cfg.PollInterval = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, 2, strings.Count(err.Error(), "must be positive"))
}

func TestUARTMismatches(t *testing.T) {
	s := Default().Serial
	assert.Empty(t, s.UARTMismatches())

	s.BaudRate = 9600
	s.Parity = "none"
	got := s.UARTMismatches()
	require.Len(t, got, 2)
	assert.Contains(t, got[0], "9600")
	assert.Contains(t, got[1], "none")

	s = Default().Serial
	s.Parity = "EVEN"
	assert.Empty(t, s.UARTMismatches(), "parity compare is case-insensitive")
}

func TestServerConfig_TLSEnabled(t *testing.T) {
	assert.False(t, (&ServerConfig{}).TLSEnabled())
	assert.False(t, (&ServerConfig{CertFile: "c"}).TLSEnabled())
	assert.True(t, (&ServerConfig{CertFile: "c", KeyFile: "k"}).TLSEnabled())
}
