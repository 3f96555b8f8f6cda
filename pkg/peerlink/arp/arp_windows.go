//go:build windows

// Package arp resolves the MAC address of a reachable peer.
// This file provides stubs for Windows where ARP lookups are not supported.
package arp

import (
	"context"
	"time"
)

// Discovery performs ARP lookups.
type Discovery struct {
	Timeout time.Duration
}

// NewDiscovery creates a new ARP discovery helper.
// On Windows, every lookup returns ErrNotSupported.
func NewDiscovery() *Discovery {
	return &Discovery{Timeout: DefaultTimeout}
}

// LookupAddr validates ip and returns ErrNotSupported.
func (a *Discovery) LookupAddr(ctx context.Context, ip string) (*Result, error) {
	if _, err := parseIPv4(ip); err != nil {
		return nil, err
	}
	return nil, ErrNotSupported
}

// IsSupported returns true if ARP is supported on this platform.
func IsSupported() bool {
	return false
}
