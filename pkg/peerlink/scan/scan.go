// Package scan probes every host of an IPv4 network for an open service port.
//
// All hosts are probed at once, one goroutine per address, and the scan
// returns only after every probe has produced an outcome.
package scan

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/marcuoli/go-peerlink/pkg/peerlink/network"
	"github.com/marcuoli/go-peerlink/pkg/peerlink/probe"
)

// DefaultMaxHosts caps a single scan at the size of a /16.
const DefaultMaxHosts = 65534

// ErrNetworkTooLarge is returned when a network has more hosts than Scanner.MaxHosts.
var ErrNetworkTooLarge = errors.New("network has too many hosts to scan")

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from scan operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Result maps each probed host address (dotted quad) to whether the port was open.
type Result map[string]bool

// Len returns the number of probed hosts.
func (r Result) Len() int {
	return len(r)
}

// Open returns the reachable hosts in address order.
func (r Result) Open() []string {
	var open []string
	for ip, ok := range r {
		if ok {
			open = append(open, ip)
		}
	}
	sortIPs(open)
	return open
}

// Hosts returns every probed host in address order.
func (r Result) Hosts() []string {
	all := make([]string, 0, len(r))
	for ip := range r {
		all = append(all, ip)
	}
	sortIPs(all)
	return all
}

// Scanner scans the local network for peers listening on Port.
type Scanner struct {
	Port    int
	Timeout time.Duration
	// MaxHosts refuses networks larger than this; 0 disables the guard.
	MaxHosts int
	// Interface resolves the network to scan; nil uses network.LocalIPv4Net.
	Interface func() (*net.IPNet, error)
	// Dial overrides the probe dialer (tests).
	Dial probe.DialFunc
}

// NewScanner creates a scanner with the default port, timeout and host cap.
func NewScanner() *Scanner {
	return &Scanner{
		Port:     probe.DefaultPort,
		Timeout:  probe.DefaultTimeout,
		MaxHosts: DefaultMaxHosts,
	}
}

// Scan resolves the local IPv4 network and scans it.
func (s *Scanner) Scan(ctx context.Context) (Result, error) {
	resolve := s.Interface
	if resolve == nil {
		resolve = network.LocalIPv4Net
	}
	ipnet, err := resolve()
	if err != nil {
		debugLog("local network lookup failed: %v", err)
		return nil, fmt.Errorf("resolve local network: %w", err)
	}
	return s.ScanNetwork(ctx, ipnet)
}

// ScanCIDR parses cidr and scans it.
func (s *Scanner) ScanCIDR(ctx context.Context, cidr string) (Result, error) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		debugLog("invalid network %q: %v", cidr, err)
		return nil, fmt.Errorf("parse CIDR: %w", err)
	}
	return s.ScanNetwork(ctx, ipnet)
}

// ScanNetwork probes every usable host of ipnet concurrently and waits for all
// of them. Every host appears in the result exactly once.
func (s *Scanner) ScanNetwork(ctx context.Context, ipnet *net.IPNet) (Result, error) {
	if ipnet == nil || ipnet.IP.To4() == nil {
		debugLog("invalid network descriptor: %v", ipnet)
		return nil, fmt.Errorf("scan: %w", network.ErrNotIPv4)
	}
	if _, bits := ipnet.Mask.Size(); bits != 32 {
		debugLog("invalid network mask: %v", ipnet)
		return nil, fmt.Errorf("scan: %w", network.ErrInvalidPrefix)
	}
	if n := network.HostCount(ipnet); s.MaxHosts > 0 && n > s.MaxHosts {
		debugLog("%s has %d hosts, limit %d", ipnet, n, s.MaxHosts)
		return nil, fmt.Errorf("%w: %s has %d hosts (limit %d)", ErrNetworkTooLarge, ipnet, n, s.MaxHosts)
	}

	hosts := network.Hosts(ipnet)
	port := s.Port
	if port <= 0 {
		port = probe.DefaultPort
	}
	p := &probe.Prober{Timeout: s.Timeout, Dial: s.Dial}

	debugLog("scanning %s: %d hosts on port %d (timeout %v)", ipnet, len(hosts), port, p.Timeout)
	start := time.Now()

	// Each goroutine owns exactly one slot.
	outcomes := make([]probe.Outcome, len(hosts))
	var wg sync.WaitGroup
	for i, ip := range hosts {
		wg.Add(1)
		go func(idx int, ip net.IP) {
			defer wg.Done()
			outcomes[idx] = p.Probe(ctx, ip, port)
		}(i, ip)
	}
	wg.Wait()

	res := make(Result, len(outcomes))
	open := 0
	for _, o := range outcomes {
		res[o.IP.String()] = o.Open
		if o.Open {
			open++
		}
	}
	debugLog("scan of %s complete: %d/%d open in %v", ipnet, open, len(res), time.Since(start).Round(time.Millisecond))
	return res, nil
}

func sortIPs(ips []string) {
	sort.Slice(ips, func(i, j int) bool {
		a, b := net.ParseIP(ips[i]).To4(), net.ParseIP(ips[j]).To4()
		if a == nil || b == nil {
			return ips[i] < ips[j]
		}
		for k := 0; k < 4; k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
}
