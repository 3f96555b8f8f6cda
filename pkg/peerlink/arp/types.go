package arp

import (
	"errors"
	"net"
	"time"
)

const (
	// DefaultTimeout is the default timeout for ARP lookups.
	DefaultTimeout = 1 * time.Second
)

var (
	// ErrNotSupported is returned when ARP is called on unsupported platforms.
	ErrNotSupported = errors.New("ARP lookup is not supported on this platform")
	// ErrInvalidIP is returned when an invalid IP address is provided.
	ErrInvalidIP = errors.New("invalid IP address")
	// ErrIPv6NotSupported is returned when attempting ARP on an IPv6 address.
	ErrIPv6NotSupported = errors.New("ARP is not supported for IPv6 addresses")
)

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from ARP operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Result contains the result of an ARP lookup.
type Result struct {
	IP         string
	MACAddress string
	Duration   time.Duration
}

func parseIPv4(ip string) (net.IP, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, ErrInvalidIP
	}
	ip4 := parsed.To4()
	if ip4 == nil {
		return nil, ErrIPv6NotSupported
	}
	return ip4, nil
}
