package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Bridge is a greeac bridge found on the network.
type Bridge struct {
	// Instance is the mDNS instance name (e.g., "living-room")
	Instance string

	// Hostname is the mDNS hostname (e.g., "pi.local.")
	Hostname string

	// IP is the first IPv4 address, or IPv6 when the bridge has none
	IP string

	// Port is the HTTP API port
	Port int

	// Metadata contains the TXT record data: version, tls, serial
	Metadata map[string]string

	// DiscoveredAt is when the bridge was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the bridge
func (b *Bridge) String() string {
	return fmt.Sprintf("greeac bridge %q (%s) at %s", b.Instance, b.Hostname, b.Addr())
}

// Addr returns host:port, bracketing IPv6 addresses.
func (b *Bridge) Addr() string {
	return net.JoinHostPort(b.IP, strconv.Itoa(b.Port))
}

// TLS reports whether the bridge serves its API over TLS.
func (b *Bridge) TLS() bool {
	return b.GetMetadata(TXTKeyTLS) == "1"
}

// BaseURL returns the HTTP base URL of the API.
func (b *Bridge) BaseURL() string {
	scheme := "http"
	if b.TLS() {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, b.Addr())
}

// WebSocketURL returns the URL of the state stream.
func (b *Bridge) WebSocketURL() string {
	scheme := "ws"
	if b.TLS() {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/ws", scheme, b.Addr())
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (b *Bridge) GetMetadata(key string) string {
	if b.Metadata == nil {
		return ""
	}
	return b.Metadata[key]
}
