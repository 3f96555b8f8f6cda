//go:build linux || darwin || freebsd || netbsd || openbsd

// Package arp resolves the MAC address of a reachable peer.
// ARP operations may require elevated privileges.
// Platform support: Linux and BSD only (not Windows).
package arp

import (
	"context"
	"net"
	"time"

	"github.com/j-keck/arping"
)

// arping keeps its timeout in a package global, so one request is in
// flight per process. Callers queue on pingSlot and give up when their
// context ends.
var pingSlot = make(chan struct{}, 1)

// Discovery performs ARP lookups. Lookups for silent hosts each cost a
// full Timeout and run one at a time, so bound batches with a context.
type Discovery struct {
	Timeout time.Duration

	ping func(ip net.IP, timeout time.Duration) (net.HardwareAddr, time.Duration, error)
}

// NewDiscovery creates a new ARP discovery helper with defaults.
func NewDiscovery() *Discovery {
	return &Discovery{Timeout: DefaultTimeout}
}

func systemPing(ip net.IP, timeout time.Duration) (net.HardwareAddr, time.Duration, error) {
	arping.SetTimeout(timeout)
	return arping.Ping(ip)
}

// LookupAddr sends an ARP request for ip and returns the responder's MAC.
func (a *Discovery) LookupAddr(ctx context.Context, ip string) (*Result, error) {
	parsedIP, err := parseIPv4(ip)
	if err != nil {
		return nil, err
	}
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ping := a.ping
	if ping == nil {
		ping = systemPing
	}

	debugLog("Looking up ARP for %s", ip)
	start := time.Now()

	select {
	case pingSlot <- struct{}{}:
	case <-ctx.Done():
		debugLog("%s: context ended waiting for another ARP request", ip)
		return nil, ctx.Err()
	}

	type arpResponse struct {
		mac net.HardwareAddr
		dur time.Duration
		err error
	}
	responseChan := make(chan arpResponse, 1)
	go func() {
		defer func() { <-pingSlot }()
		mac, dur, err := ping(parsedIP, timeout)
		responseChan <- arpResponse{mac: mac, dur: dur, err: err}
	}()

	select {
	case <-ctx.Done():
		debugLog("%s: context cancelled after %v", ip, time.Since(start))
		return nil, ctx.Err()
	case resp := <-responseChan:
		if resp.err != nil {
			debugLog("%s: error: %v", ip, resp.err)
			return nil, resp.err
		}
		res := &Result{IP: ip, MACAddress: resp.mac.String(), Duration: resp.dur}
		debugLog("%s -> MAC: %s (%.2fms)", ip, res.MACAddress, float64(resp.dur.Microseconds())/1000)
		return res, nil
	}
}

// IsSupported returns true if ARP is supported on this platform.
func IsSupported() bool {
	return true
}
