// Package peerlink: Node ties the session server, scanner and announcer together.
package peerlink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marcuoli/go-peerlink/pkg/peerlink/arp"
	"github.com/marcuoli/go-peerlink/pkg/peerlink/hostname"
	"github.com/marcuoli/go-peerlink/pkg/peerlink/network"
	"github.com/marcuoli/go-peerlink/pkg/peerlink/oui"
	"github.com/marcuoli/go-peerlink/pkg/peerlink/probe"
	"github.com/marcuoli/go-peerlink/pkg/peerlink/scan"
	"github.com/marcuoli/go-peerlink/pkg/peerlink/server"
	"github.com/marcuoli/go-peerlink/pkg/peerlink/session"
	"github.com/marcuoli/go-peerlink/pkg/peerlink/ssdp"
)

// Options configures a Node.
type Options struct {
	Server server.Config

	// Sink receives session events. Nil drops them.
	Sink           session.EventSink
	Approver       session.Approver
	NewPayloadSink session.PayloadSinkFactory
	// OnSessionError receives the error that ended a session.
	OnSessionError server.ErrorHandler

	ScanPort    int
	ScanTimeout time.Duration
	// ScanCIDR overrides the local interface network.
	ScanCIDR string
	MaxHosts int

	Announce         bool
	AnnounceInterval time.Duration
	AnnounceMaxAge   int
	// SearchTimeout is how long FindPeers waits for responses.
	SearchTimeout time.Duration

	DescribeTimeout time.Duration
	// OUIDatabase is the path of an IEEE oui.txt file. Empty disables vendor lookup.
	OUIDatabase string
}

// DefaultOptions returns the reference configuration.
func DefaultOptions() Options {
	return Options{
		Server:           server.DefaultConfig(),
		ScanPort:         probe.DefaultPort,
		ScanTimeout:      probe.DefaultTimeout,
		MaxHosts:         scan.DefaultMaxHosts,
		AnnounceInterval: ssdp.DefaultInterval,
		AnnounceMaxAge:   ssdp.DefaultMaxAge,
		SearchTimeout:    ssdp.DefaultTimeout,
		DescribeTimeout:  hostname.DefaultTimeout,
	}
}

type hostnameResolver interface {
	LookupAddr(ctx context.Context, ip string) (*hostname.Result, error)
}

type macResolver interface {
	LookupAddr(ctx context.Context, ip string) (*arp.Result, error)
}

type vendorResolver interface {
	LookupName(mac string) string
}

// Node is one peer: it serves sessions, scans for peers and, optionally,
// announces itself. Build it once at startup and pass it by reference.
type Node struct {
	opts      Options
	server    *server.Server
	scanner   *scan.Scanner
	discovery *ssdp.Discovery
	usn       string

	names   hostnameResolver
	macs    macResolver
	vendors vendorResolver
}

// New builds a node. It fails only if the OUI database path is unusable.
func New(opts Options) (*Node, error) {
	var serverOpts []server.Option
	if opts.Approver != nil {
		serverOpts = append(serverOpts, server.WithApprover(opts.Approver))
	}
	if opts.NewPayloadSink != nil {
		serverOpts = append(serverOpts, server.WithPayloadSink(opts.NewPayloadSink))
	}
	if opts.OnSessionError != nil {
		serverOpts = append(serverOpts, server.WithErrorHandler(opts.OnSessionError))
	}

	scanner := scan.NewScanner()
	if opts.ScanPort > 0 {
		scanner.Port = opts.ScanPort
	}
	if opts.ScanTimeout > 0 {
		scanner.Timeout = opts.ScanTimeout
	}
	scanner.MaxHosts = opts.MaxHosts

	resolver := hostname.NewResolver()
	macs := arp.NewDiscovery()
	if opts.DescribeTimeout > 0 {
		resolver.Timeout = opts.DescribeTimeout
		macs.Timeout = opts.DescribeTimeout
	}

	discovery := ssdp.NewDiscovery()
	if opts.SearchTimeout > 0 {
		discovery.Timeout = opts.SearchTimeout
	}

	n := &Node{
		opts:      opts,
		server:    server.New(opts.Server, opts.Sink, serverOpts...),
		scanner:   scanner,
		discovery: discovery,
		usn:       ssdp.NewUSN(),
		names:     resolver,
		macs:      macs,
	}

	if opts.OUIDatabase != "" {
		vendors, err := oui.New(opts.OUIDatabase)
		if err != nil {
			return nil, fmt.Errorf("vendor database: %w", err)
		}
		n.vendors = vendors
	}
	return n, nil
}

// Server returns the node's session server.
func (n *Node) Server() *server.Server { return n.server }

// USN returns the unique service name this node announces.
func (n *Node) USN() string { return n.usn }

// Run serves sessions, and announces the node when enabled, until ctx is
// done. Announcement failures are logged and never stop the server.
func (n *Node) Run(ctx context.Context) error {
	if err := n.server.Listen(); err != nil {
		return err
	}
	debugLog(ComponentNode, "%s serving on %s", VersionInfo(), n.server.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := n.server.Serve(gctx)
		if errors.Is(err, server.ErrServerClosed) && ctx.Err() != nil {
			return nil
		}
		return err
	})

	if n.opts.Announce {
		announcer := n.announcer()
		g.Go(func() error {
			if err := announcer.Run(gctx); err != nil {
				debugLog(ComponentSSDP, "announcer stopped: %v", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func (n *Node) announcer() *ssdp.Announcer {
	a := ssdp.NewAnnouncer(0)
	a.USN = n.usn
	if n.opts.AnnounceInterval > 0 {
		a.Interval = n.opts.AnnounceInterval
	}
	if n.opts.AnnounceMaxAge > 0 {
		a.MaxAge = n.opts.AnnounceMaxAge
	}
	if tcp, ok := n.server.Addr().(*net.TCPAddr); ok {
		a.Port = tcp.Port
		if !tcp.IP.IsUnspecified() {
			a.Location = ssdp.SessionLocation(tcp.IP, tcp.Port)
		}
	}
	a.LocalIP = func() (net.IP, error) {
		if ip := network.LocalIPv4(); ip != nil {
			return ip, nil
		}
		return nil, network.ErrNoInterface
	}
	return a
}

// Close stops the server and every session.
func (n *Node) Close() error {
	return n.server.Close()
}

// CheckPorts scans the local subnet (or ScanCIDR) for hosts with the probe
// port open. Every enumerated host appears in the result exactly once.
func (n *Node) CheckPorts(ctx context.Context) (scan.Result, error) {
	if n.opts.ScanCIDR != "" {
		return n.scanner.ScanCIDR(ctx, n.opts.ScanCIDR)
	}
	return n.scanner.Scan(ctx)
}

// FindPeers searches for other nodes announcing the session service.
func (n *Node) FindPeers(ctx context.Context) ([]*ssdp.Result, error) {
	found, err := n.discovery.Search(ctx, ssdp.ServiceType)
	if err != nil {
		return nil, err
	}
	peers := found[:0]
	for _, r := range found {
		if r.USN != n.usn {
			peers = append(peers, r)
		}
	}
	debugLog(ComponentNode, "found %d peers", len(peers))
	return peers, nil
}
