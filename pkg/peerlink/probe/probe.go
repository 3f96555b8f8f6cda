// Package probe performs single TCP connect reachability checks.
package probe

import (
	"context"
	"net"
	"strconv"
	"time"
)

const (
	// DefaultPort is the port probed on candidate peers.
	DefaultPort = 8888
	// DefaultTimeout bounds one connection attempt.
	DefaultTimeout = 1 * time.Second
)

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from probe operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// DialFunc matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Outcome is the reachability of one address.
type Outcome struct {
	IP   net.IP
	Open bool
}

// Prober checks whether a TCP port accepts connections.
type Prober struct {
	Timeout time.Duration
	// Dial overrides the dialer; nil uses net.Dialer.
	Dial DialFunc
}

// NewProber creates a prober with the default timeout.
func NewProber() *Prober {
	return &Prober{Timeout: DefaultTimeout}
}

// Probe attempts a TCP connection to ip:port. Every failure mode (timeout,
// refusal, unreachable, reset, cancellation) is reported as Open == false.
// A successful connection is closed straight away; no data is exchanged.
func (p *Prober) Probe(ctx context.Context, ip net.IP, port int) Outcome {
	out := Outcome{IP: ip}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	dial := p.Dial
	if dial == nil {
		d := &net.Dialer{}
		dial = d.DialContext
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(ip.String(), strconv.Itoa(port))
	conn, err := dial(dialCtx, "tcp", addr)
	if err != nil {
		debugLog("%s: closed (%v)", addr, err)
		return out
	}
	conn.Close()

	out.Open = true
	debugLog("%s: open", addr)
	return out
}

// Probe is a convenience wrapper using a default Prober with the given timeout.
func Probe(ctx context.Context, ip net.IP, port int, timeout time.Duration) Outcome {
	p := &Prober{Timeout: timeout}
	return p.Probe(ctx, ip, port)
}
