// Package network provides IPv4 host enumeration and local interface resolution.
package network

import (
	"errors"
	"fmt"
	"net"
	"strings"

	gnet "github.com/shirou/gopsutil/v3/net"
)

var (
	// ErrNoInterface is returned when no local interface carries an IPv4 address.
	ErrNoInterface = errors.New("no local interface with an IPv4 address")
	// ErrInvalidPrefix is returned for a prefix length outside 0..32.
	ErrInvalidPrefix = errors.New("invalid IPv4 prefix length")
	// ErrNotIPv4 is returned when an IPv6 address is given where IPv4 is required.
	ErrNotIPv4 = errors.New("address is not IPv4")
)

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from network operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// routeProbeAddr is only used to ask the kernel which source address it would
// pick for outbound traffic. No packet is sent by a UDP "connect".
var routeProbeAddr = &net.UDPAddr{IP: net.IPv4(192, 0, 2, 1), Port: 9}

// EnumerateIPs returns all usable host IPs in a CIDR (excludes network and broadcast).
func EnumerateIPs(cidr string) ([]net.IP, error) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}
	if ipnet.IP.To4() == nil {
		return nil, ErrNotIPv4
	}
	return Hosts(ipnet), nil
}

// EnumerateIPStrings returns all usable host IPs in a CIDR as strings.
func EnumerateIPStrings(cidr string) ([]string, error) {
	ips, err := EnumerateIPs(cidr)
	if err != nil {
		return nil, err
	}
	result := make([]string, len(ips))
	for i, ip := range ips {
		result[i] = ip.String()
	}
	return result, nil
}

// Hosts returns the usable host addresses of an IPv4 network.
// A /31 yields both addresses and a /32 yields the single address, since
// neither has a distinct network or broadcast address.
func Hosts(n *net.IPNet) []net.IP {
	base := n.IP.To4()
	if base == nil {
		return nil // IPv6 not supported for enumeration
	}
	mask := net.IP(n.Mask).To4()
	if mask == nil {
		return nil
	}
	ones, _ := n.Mask.Size()
	network := ipToUint32(base) & ipToUint32(mask)
	broadcast := network | ^ipToUint32(mask)

	first, last := network+1, broadcast-1
	if ones >= 31 {
		first, last = network, broadcast
	}

	res := make([]net.IP, 0, int(last-first)+1)
	for u := first; ; u++ {
		res = append(res, uint32ToIP(u))
		if u == last {
			break
		}
	}
	return res
}

// HostCount returns how many addresses Hosts would return without building them.
func HostCount(n *net.IPNet) int {
	if n.IP.To4() == nil {
		return 0
	}
	ones, bits := n.Mask.Size()
	if bits != 32 {
		return 0
	}
	if ones >= 31 {
		return 1 << uint(32-ones)
	}
	return (1 << uint(32-ones)) - 2
}

// ParseNetwork builds an IPv4 network from an interface address and prefix length.
// The host bits of addr are masked off.
func ParseNetwork(addr net.IP, prefixLen int) (*net.IPNet, error) {
	ip4 := addr.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotIPv4, addr)
	}
	if prefixLen < 0 || prefixLen > 32 {
		return nil, fmt.Errorf("%w: /%d", ErrInvalidPrefix, prefixLen)
	}
	mask := net.CIDRMask(prefixLen, 32)
	return &net.IPNet{IP: ip4.Mask(mask), Mask: mask}, nil
}

// LocalIPv4Net returns the network of the default interface's first IPv4
// address. The default interface is the one owning the source address the
// kernel picks for outbound traffic; if that cannot be determined, the first
// up, non-loopback interface with an IPv4 address is used.
func LocalIPv4Net() (*net.IPNet, error) {
	ifaces, err := gnet.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}

	outbound := outboundIP()
	var fallback *net.IPNet
	for _, iface := range ifaces {
		if !hasFlag(iface.Flags, "up") || hasFlag(iface.Flags, "loopback") {
			continue
		}
		for _, a := range iface.Addrs {
			ip, ipnet, err := net.ParseCIDR(a.Addr)
			if err != nil || ip.To4() == nil || ip.IsLoopback() {
				continue
			}
			ones, _ := ipnet.Mask.Size()
			if outbound != nil && ip.Equal(outbound) {
				debugLog("default interface %s: %s/%d", iface.Name, ip, ones)
				return ParseNetwork(ip, ones)
			}
			if fallback == nil {
				fallback, _ = ParseNetwork(ip, ones)
				debugLog("candidate interface %s: %s/%d", iface.Name, ip, ones)
			}
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, ErrNoInterface
}

// LocalIPv4 returns the source address used for outbound traffic, or nil.
func LocalIPv4() net.IP {
	return outboundIP()
}

func outboundIP() net.IP {
	conn, err := net.DialUDP("udp4", nil, routeProbeAddr)
	if err != nil {
		debugLog("outbound address lookup failed: %v", err)
		return nil
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.To4()
	}
	return nil
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}

func ipToUint32(ip net.IP) uint32 {
	ip = ip.To4()
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}

func uint32ToIP(u uint32) net.IP {
	return net.IPv4(byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}

// IsPrivateIP checks if an IP address is in private (RFC 1918) address space.
func IsPrivateIP(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		return ip4[0] == 10 || // 10.0.0.0/8
			(ip4[0] == 172 && ip4[1] >= 16 && ip4[1] <= 31) || // 172.16.0.0/12
			(ip4[0] == 192 && ip4[1] == 168) // 192.168.0.0/16
	}
	return false
}

// IsLoopback checks if an IP address is a loopback address.
func IsLoopback(ip net.IP) bool {
	return ip.IsLoopback()
}
