package network

import (
	"errors"
	"net"
	"testing"
)

func TestEnumerateIPs(t *testing.T) {
	tests := []struct {
		cidr     string
		expected int
	}{
		{"192.168.1.0/30", 2},   // 4 total - network - broadcast = 2
		{"192.168.1.0/29", 6},   // 8 total - network - broadcast = 6
		{"192.168.1.0/28", 14},  // 16 total - network - broadcast = 14
		{"192.168.1.0/24", 254}, // 256 total - network - broadcast = 254
		{"10.1.2.3/31", 2},      // point-to-point: both usable
		{"10.1.2.3/32", 1},      // single host
	}

	for _, tt := range tests {
		t.Run(tt.cidr, func(t *testing.T) {
			ips, err := EnumerateIPs(tt.cidr)
			if err != nil {
				t.Fatalf("EnumerateIPs(%s) failed: %v", tt.cidr, err)
			}
			if len(ips) != tt.expected {
				t.Errorf("EnumerateIPs(%s) returned %d IPs, expected %d", tt.cidr, len(ips), tt.expected)
			}
			_, n, _ := net.ParseCIDR(tt.cidr)
			if got := HostCount(n); got != tt.expected {
				t.Errorf("HostCount(%s) = %d, expected %d", tt.cidr, got, tt.expected)
			}
		})
	}
}

func TestEnumerateIPs_SkipsNetworkAndBroadcast(t *testing.T) {
	ips, err := EnumerateIPs("192.168.1.77/24")
	if err != nil {
		t.Fatalf("EnumerateIPs failed: %v", err)
	}
	if first := ips[0].To4()[3]; first != 1 {
		t.Errorf("expected first IP to end in .1, got %s", ips[0])
	}
	if last := ips[len(ips)-1].To4()[3]; last != 254 {
		t.Errorf("expected last IP to end in .254, got %s", ips[len(ips)-1])
	}
}

func TestEnumerateIPs_Unique(t *testing.T) {
	ips, err := EnumerateIPs("172.16.4.0/23")
	if err != nil {
		t.Fatalf("EnumerateIPs failed: %v", err)
	}
	seen := make(map[string]bool, len(ips))
	for _, ip := range ips {
		if seen[ip.String()] {
			t.Fatalf("duplicate address %s", ip)
		}
		seen[ip.String()] = true
	}
	if len(seen) != 510 {
		t.Fatalf("expected 510 unique hosts, got %d", len(seen))
	}
}

func TestEnumerateIPs_Invalid(t *testing.T) {
	invalid := []string{
		"invalid",
		"192.168.1.0",     // No mask
		"192.168.1.0/abc", // Invalid mask
		"192.168.1.0/33",
		"2001:db8::/120",
		"",
	}

	for _, cidr := range invalid {
		t.Run(cidr, func(t *testing.T) {
			if _, err := EnumerateIPs(cidr); err == nil {
				t.Errorf("Expected error for invalid CIDR %q", cidr)
			}
		})
	}
}

func TestEnumerateIPStrings(t *testing.T) {
	ips, err := EnumerateIPStrings("192.168.1.0/30")
	if err != nil {
		t.Fatalf("EnumerateIPStrings failed: %v", err)
	}
	if len(ips) != 2 || ips[0] != "192.168.1.1" || ips[1] != "192.168.1.2" {
		t.Errorf("unexpected hosts: %v", ips)
	}
}

func TestParseNetwork(t *testing.T) {
	n, err := ParseNetwork(net.ParseIP("192.168.1.42"), 24)
	if err != nil {
		t.Fatalf("ParseNetwork failed: %v", err)
	}
	if n.String() != "192.168.1.0/24" {
		t.Errorf("expected 192.168.1.0/24, got %s", n)
	}
}

func TestParseNetwork_Invalid(t *testing.T) {
	if _, err := ParseNetwork(net.ParseIP("192.168.1.42"), 40); !errors.Is(err, ErrInvalidPrefix) {
		t.Errorf("expected ErrInvalidPrefix, got %v", err)
	}
	if _, err := ParseNetwork(net.ParseIP("192.168.1.42"), -1); !errors.Is(err, ErrInvalidPrefix) {
		t.Errorf("expected ErrInvalidPrefix, got %v", err)
	}
	if _, err := ParseNetwork(net.ParseIP("2001:db8::1"), 64); !errors.Is(err, ErrNotIPv4) {
		t.Errorf("expected ErrNotIPv4, got %v", err)
	}
}

func TestHasFlag(t *testing.T) {
	flags := []string{"up", "broadcast", "multicast"}
	if !hasFlag(flags, "UP") {
		t.Error("expected up flag to match case-insensitively")
	}
	if hasFlag(flags, "loopback") {
		t.Error("unexpected loopback flag")
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip      string
		private bool
	}{
		{"10.0.0.1", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"192.168.0.1", true},
		{"172.15.0.1", false},
		{"172.32.0.1", false},
		{"8.8.8.8", false},
		{"127.0.0.1", false},
		{"::1", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := IsPrivateIP(net.ParseIP(tt.ip)); got != tt.private {
				t.Errorf("IsPrivateIP(%s) = %v, want %v", tt.ip, got, tt.private)
			}
		})
	}
}

func TestIsLoopback(t *testing.T) {
	if !IsLoopback(net.ParseIP("127.0.0.2")) {
		t.Error("127.0.0.2 should be loopback")
	}
	if IsLoopback(net.ParseIP("192.168.1.1")) {
		t.Error("192.168.1.1 should not be loopback")
	}
}

func TestRoundTrip_IPConversion(t *testing.T) {
	for _, original := range []string{"0.0.0.0", "192.168.1.100", "255.255.255.255"} {
		u := ipToUint32(net.ParseIP(original))
		if got := uint32ToIP(u).String(); got != original {
			t.Errorf("round trip failed: %s -> %d -> %s", original, u, got)
		}
	}
}

func BenchmarkEnumerateIPs_Medium(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = EnumerateIPs("192.168.1.0/24")
	}
}
