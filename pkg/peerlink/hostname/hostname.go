// Package hostname resolves a peer's name from its IPv4 address.
//
// Peers on a LAN rarely have DNS records, so the resolver asks the host
// itself first: a unicast mDNS PTR query (Bonjour, Avahi), then a unicast
// LLMNR PTR query (Windows, systemd-resolved), and finally the system
// resolver. DNS messages are built with github.com/miekg/dns.
package hostname

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	// MDNSPort is the mDNS port.
	MDNSPort = 5353
	// LLMNRPort is the LLMNR port.
	LLMNRPort = 5355
	// DefaultTimeout bounds each strategy.
	DefaultTimeout = 2 * time.Second
)

// Source names the strategy that produced a hostname.
type Source string

const (
	SourceMDNS  Source = "mdns"
	SourceLLMNR Source = "llmnr"
	SourceDNS   Source = "dns"
)

var (
	// ErrInvalidIP is returned for an unparsable address.
	ErrInvalidIP = errors.New("invalid IP address")
	// ErrNotIPv4 is returned for IPv6 addresses.
	ErrNotIPv4 = errors.New("only IPv4 addresses are supported")
	// ErrNotFound is returned when no strategy produced a name.
	ErrNotFound = errors.New("hostname not found")
)

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from hostname lookups.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Result contains the result of a hostname lookup.
type Result struct {
	IP       string
	Hostname string
	Source   Source
}

// AddrLookuper is satisfied by *net.Resolver.
type AddrLookuper interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Resolver looks up hostnames with mDNS, LLMNR and DNS, in that order.
type Resolver struct {
	Timeout time.Duration

	// Ports of the per-host responders. Zero disables the strategy.
	MDNSPort  int
	LLMNRPort int

	// System is the reverse DNS fallback. Nil disables it.
	System AddrLookuper
}

// NewResolver creates a resolver with every strategy enabled.
func NewResolver() *Resolver {
	return &Resolver{
		Timeout:   DefaultTimeout,
		MDNSPort:  MDNSPort,
		LLMNRPort: LLMNRPort,
		System:    net.DefaultResolver,
	}
}

// LookupAddr returns the first name any strategy finds for ip.
func (r *Resolver) LookupAddr(ctx context.Context, ip string) (*Result, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidIP, ip)
	}
	ip4 := parsed.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotIPv4, ip)
	}

	reverseName, err := dns.ReverseAddr(ip4.String())
	if err != nil {
		return nil, fmt.Errorf("reverse name for %s: %w", ip, err)
	}

	strategies := []struct {
		source Source
		port   int
	}{
		{SourceMDNS, r.MDNSPort},
		{SourceLLMNR, r.LLMNRPort},
	}
	for _, s := range strategies {
		if s.port <= 0 {
			continue
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		name, err := r.queryPTR(ctx, reverseName, ip4, s.port)
		if err != nil {
			debugLog("%s: %s: %v", ip, s.source, err)
			continue
		}
		debugLog("%s -> %s (%s)", ip, name, s.source)
		return &Result{IP: ip, Hostname: name, Source: s.source}, nil
	}

	if r.System != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, r.timeout())
		names, err := r.System.LookupAddr(lookupCtx, ip)
		cancel()
		if err == nil && len(names) > 0 {
			name := strings.TrimSuffix(names[0], ".")
			debugLog("%s -> %s (dns)", ip, name)
			return &Result{IP: ip, Hostname: name, Source: SourceDNS}, nil
		}
		debugLog("%s: dns: %v", ip, err)
	}

	return nil, fmt.Errorf("%s: %w", ip, ErrNotFound)
}

func (r *Resolver) timeout() time.Duration {
	if r.Timeout <= 0 {
		return DefaultTimeout
	}
	return r.Timeout
}

// queryPTR sends a PTR query straight to the target host and waits for
// one answer.
func (r *Resolver) queryPTR(ctx context.Context, reverseName string, target net.IP, port int) (string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(reverseName, dns.TypePTR)
	msg.RecursionDesired = false

	data, err := msg.Pack()
	if err != nil {
		return "", fmt.Errorf("pack query: %w", err)
	}

	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return "", fmt.Errorf("udp listen: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(r.timeout())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	addr := &net.UDPAddr{IP: target, Port: port}
	if _, err := conn.WriteTo(data, addr); err != nil {
		return "", fmt.Errorf("send query: %w", err)
	}

	buf := make([]byte, dns.MaxMsgSize)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return "", err
		}
		if name := parsePTRResponse(buf[:n], msg.Id); name != "" {
			return name, nil
		}
	}
}

// parsePTRResponse returns the first PTR target in a response to query id.
func parsePTRResponse(data []byte, id uint16) string {
	resp := new(dns.Msg)
	if err := resp.Unpack(data); err != nil {
		return ""
	}
	if !resp.Response || resp.Id != id {
		return ""
	}
	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, ".")
		}
	}
	return ""
}
