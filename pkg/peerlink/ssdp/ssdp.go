// Package ssdp announces the peer session service on the local network and
// finds other nodes announcing it.
//
// Nodes advertise themselves with SSDP NOTIFY messages carrying a
// ws:// location, so a peer can connect to the session port without a
// subnet scan. This implementation uses github.com/koron/go-ssdp.
package ssdp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	gossdp "github.com/koron/go-ssdp"
)

// DebugLogger is the callback function for debug logging.
// Set this to enable debug output for SSDP operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

const (
	// ServiceType is the search target announced by every node.
	ServiceType = "urn:peerlink:service:session:1"
	// DefaultInterval is the period between alive notifications.
	DefaultInterval = 30 * time.Second
	// DefaultMaxAge is the cache lifetime advertised to listeners, in seconds.
	DefaultMaxAge = 1800
	// DefaultTimeout is the default wait for search responses.
	DefaultTimeout = 3 * time.Second
	// ServerName is sent in the SERVER header.
	ServerName = "go-peerlink/1 UPnP/1.0"
)

// ErrNoLocation is returned when an announcer has neither a location nor a port.
var ErrNoLocation = errors.New("ssdp: no location to announce")

// Result is one node found by Search.
type Result struct {
	IP       string
	Port     int
	Location string
	Server   string
	USN      string
	ST       string
	MaxAge   int
}

// advertiser is the subset of *gossdp.Advertiser used by Announcer.
type advertiser interface {
	Alive() error
	Bye() error
	Close() error
}

// Announcer advertises this node until its context ends.
type Announcer struct {
	// Location is the ws:// URL peers connect to. Built from the local
	// address and Port when empty.
	Location string
	Port     int
	USN      string
	Interval time.Duration
	MaxAge   int

	// LocalIP resolves the address used in the location. Defaults to
	// the outbound IPv4 address.
	LocalIP func() (net.IP, error)

	advertise func(st, usn, location, server string, maxAge int) (advertiser, error)
}

// NewAnnouncer creates an announcer for the session service on port.
// Every announcer gets a fresh uuid-based USN.
func NewAnnouncer(port int) *Announcer {
	return &Announcer{
		Port:     port,
		USN:      NewUSN(),
		Interval: DefaultInterval,
		MaxAge:   DefaultMaxAge,
	}
}

// NewUSN returns a unique service name for the session service.
func NewUSN() string {
	return "uuid:" + uuid.NewString() + "::" + ServiceType
}

// SessionLocation formats the ws:// URL for a session listener.
func SessionLocation(ip net.IP, port int) string {
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(ip.String(), strconv.Itoa(port)), Path: "/"}
	return u.String()
}

// Run sends alive notifications every Interval until ctx is done, then
// sends byebye. It returns nil on cancellation.
func (a *Announcer) Run(ctx context.Context) error {
	location, err := a.location()
	if err != nil {
		return err
	}
	interval := a.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	maxAge := a.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	usn := a.USN
	if usn == "" {
		usn = NewUSN()
	}

	advertise := a.advertise
	if advertise == nil {
		advertise = func(st, usn, location, server string, maxAge int) (advertiser, error) {
			return gossdp.Advertise(st, usn, location, server, maxAge)
		}
	}
	ad, err := advertise(ServiceType, usn, location, ServerName, maxAge)
	if err != nil {
		return fmt.Errorf("ssdp advertise: %w", err)
	}
	defer ad.Close()
	debugLog("announcing %s at %s every %v", usn, location, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := ad.Alive(); err != nil {
			debugLog("alive failed: %v", err)
		}
		select {
		case <-ctx.Done():
			if err := ad.Bye(); err != nil {
				debugLog("byebye failed: %v", err)
			}
			return nil
		case <-ticker.C:
		}
	}
}

func (a *Announcer) location() (string, error) {
	if a.Location != "" {
		return a.Location, nil
	}
	if a.Port <= 0 {
		return "", ErrNoLocation
	}
	localIP := a.LocalIP
	if localIP == nil {
		localIP = outboundIP
	}
	ip, err := localIP()
	if err != nil {
		return "", fmt.Errorf("resolve local address: %w", err)
	}
	return SessionLocation(ip, a.Port), nil
}

// outboundIP returns the source address the routing table picks for LAN
// traffic. UDP dial sends nothing.
func outboundIP() (net.IP, error) {
	conn, err := net.Dial("udp4", "239.255.255.250:1900")
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP, nil
}

// Discovery searches for announcing nodes.
type Discovery struct {
	Timeout    time.Duration
	Interfaces []net.Interface // Specific interfaces to use (nil = all)

	search func(st string, waitSec int) ([]gossdp.Service, error)
}

// NewDiscovery creates a new SSDP discovery helper with defaults.
func NewDiscovery() *Discovery {
	return &Discovery{Timeout: DefaultTimeout}
}

// Search sends an M-SEARCH for st (ServiceType when empty) and returns the
// responders, de-duplicated by USN and sorted by IP.
func (d *Discovery) Search(ctx context.Context, st string) ([]*Result, error) {
	if st == "" {
		st = ServiceType
	}
	debugLog("search target=%s timeout=%v", st, d.Timeout)

	if len(d.Interfaces) > 0 {
		gossdp.Interfaces = d.Interfaces
		defer func() { gossdp.Interfaces = nil }()
	}

	// Wait time in whole seconds, minimum 1.
	waitSec := int(d.Timeout.Seconds())
	if waitSec < 1 {
		waitSec = 1
	}

	search := d.search
	if search == nil {
		search = func(st string, waitSec int) ([]gossdp.Service, error) {
			return gossdp.Search(st, waitSec, "")
		}
	}

	type reply struct {
		services []gossdp.Service
		err      error
	}
	ch := make(chan reply, 1)
	go func() {
		services, err := search(st, waitSec)
		ch <- reply{services, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("ssdp search: %w", r.err)
		}
		results := convertServices(r.services, st)
		debugLog("search found %d nodes", len(results))
		return results, nil
	}
}

// convertServices keeps services matching st, one per USN.
func convertServices(services []gossdp.Service, st string) []*Result {
	seen := make(map[string]bool)
	results := make([]*Result, 0, len(services))
	for _, svc := range services {
		if st != gossdp.All && svc.Type != st {
			continue
		}
		key := svc.USN
		if key == "" {
			key = svc.Location
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		r := &Result{
			Location: svc.Location,
			Server:   svc.Server,
			USN:      svc.USN,
			ST:       svc.Type,
			MaxAge:   svc.MaxAge(),
		}
		r.IP, r.Port = splitLocation(svc.Location)
		results = append(results, r)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].IP < results[j].IP })
	return results
}

// splitLocation extracts the IP and port from a location URL like
// "ws://192.168.1.10:15446/". Host names yield an empty IP.
func splitLocation(location string) (string, int) {
	u, err := url.Parse(location)
	if err != nil || u.Host == "" {
		return "", 0
	}
	ip := ""
	if parsed := net.ParseIP(u.Hostname()); parsed != nil {
		ip = parsed.String()
	}
	port, _ := strconv.Atoi(u.Port())
	return ip, port
}
