package hostfuncs

import (
	"fmt"
	"net"
	"strings"
	"syscall"
)

// NetfilterResult represents the result of an address validation.
type NetfilterResult struct {
	// Reason provides the reason if the address was blocked.
	Reason string `json:"reason,omitempty"`

	// Allowed indicates whether the address is allowed.
	Allowed bool `json:"allowed"`
}

// NetfilterOption is a functional option for configuring netfilter behavior.
type NetfilterOption func(*netfilterConfig)

type netfilterConfig struct {
	allowlist      []string // Explicitly allowed IPs/CIDRs
	blocklist      []string // Explicitly blocked IPs/CIDRs
	blockPrivate   bool     // Block RFC 1918 private addresses
	blockLocalhost bool     // Block localhost/loopback
	blockLinkLocal bool     // Block link-local addresses
	blockMulticast bool     // Block multicast addresses
}

// defaultNetfilterConfig blocks every address class a guest could use to
// reach the host's own network.
func defaultNetfilterConfig() netfilterConfig {
	return netfilterConfig{
		blockPrivate:   true,
		blockLocalhost: true,
		blockLinkLocal: true,
		blockMulticast: true,
	}
}

// WithAllowlist sets explicitly allowed IPs or CIDRs.
// Allowed addresses bypass all other checks.
func WithAllowlist(addresses ...string) NetfilterOption {
	return func(c *netfilterConfig) {
		c.allowlist = addresses
	}
}

// WithBlocklist sets explicitly blocked IPs or CIDRs.
// Blocklist is checked before other rules.
func WithBlocklist(addresses ...string) NetfilterOption {
	return func(c *netfilterConfig) {
		c.blocklist = addresses
	}
}

// WithBlockPrivate enables/disables blocking of RFC 1918 private addresses.
func WithBlockPrivate(block bool) NetfilterOption {
	return func(c *netfilterConfig) {
		c.blockPrivate = block
	}
}

// WithBlockLocalhost enables/disables blocking of localhost/loopback.
func WithBlockLocalhost(block bool) NetfilterOption {
	return func(c *netfilterConfig) {
		c.blockLocalhost = block
	}
}

// WithBlockLinkLocal enables/disables blocking of link-local addresses.
func WithBlockLinkLocal(block bool) NetfilterOption {
	return func(c *netfilterConfig) {
		c.blockLinkLocal = block
	}
}

// ValidateIP checks an already-resolved IP against the filter rules.
func ValidateIP(ip net.IP, opts ...NetfilterOption) NetfilterResult {
	cfg := defaultNetfilterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return validateIP(ip, cfg)
}

func validateIP(ip net.IP, cfg netfilterConfig) NetfilterResult {
	if ip == nil {
		return NetfilterResult{Reason: "not an IP address"}
	}
	for _, blocked := range cfg.blocklist {
		if matchesIP(ip, blocked) {
			return NetfilterResult{Reason: "IP in blocklist"}
		}
	}
	for _, allowed := range cfg.allowlist {
		if matchesIP(ip, allowed) {
			return NetfilterResult{Allowed: true}
		}
	}

	switch {
	case cfg.blockLocalhost && ip.IsLoopback():
		return NetfilterResult{Reason: "localhost/loopback addresses blocked"}
	case cfg.blockPrivate && ip.IsPrivate():
		return NetfilterResult{Reason: "private addresses blocked (RFC 1918)"}
	case cfg.blockLinkLocal && (ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()):
		return NetfilterResult{Reason: "link-local addresses blocked"}
	case cfg.blockMulticast && ip.IsMulticast():
		return NetfilterResult{Reason: "multicast addresses blocked"}
	case ip.IsUnspecified():
		return NetfilterResult{Reason: "unspecified address blocked"}
	}
	return NetfilterResult{Allowed: true}
}

// DialControl returns a net.Dialer Control function that rejects connections
// to addresses the filter blocks. It runs after DNS resolution on the exact
// address being dialed, so a rebinding resolver cannot bypass it.
func DialControl(opts ...NetfilterOption) func(network, address string, c syscall.RawConn) error {
	cfg := defaultNetfilterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(network, address string, _ syscall.RawConn) error {
		host, _, err := net.SplitHostPort(address)
		if err != nil {
			return fmt.Errorf("SSRF protection: invalid address %q: %w", address, err)
		}
		if result := validateIP(net.ParseIP(host), cfg); !result.Allowed {
			return fmt.Errorf("SSRF protection: %s: %s", address, result.Reason)
		}
		return nil
	}
}

// matchesIP checks if ip equals pattern or lies within the pattern CIDR.
func matchesIP(ip net.IP, pattern string) bool {
	if strings.Contains(pattern, "/") {
		_, cidr, err := net.ParseCIDR(pattern)
		return err == nil && cidr.Contains(ip)
	}
	other := net.ParseIP(pattern)
	return other != nil && other.Equal(ip)
}
