//go:build linux || darwin || freebsd || netbsd || openbsd

package arp

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestNewDiscovery(t *testing.T) {
	d := NewDiscovery()
	if d.Timeout != DefaultTimeout {
		t.Errorf("Expected timeout %v, got %v", DefaultTimeout, d.Timeout)
	}
	if !IsSupported() {
		t.Error("Expected ARP support on this platform")
	}
}

func TestLookupAddr_InvalidInput(t *testing.T) {
	d := NewDiscovery()
	tests := []struct {
		ip  string
		err error
	}{
		{"invalid", ErrInvalidIP},
		{"", ErrInvalidIP},
		{"fe80::1", ErrIPv6NotSupported},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if _, err := d.LookupAddr(context.Background(), tt.ip); !errors.Is(err, tt.err) {
				t.Errorf("Expected %v, got %v", tt.err, err)
			}
		})
	}
}

func TestLookupAddr_Reply(t *testing.T) {
	mac, _ := net.ParseMAC("00:03:93:12:34:56")
	var gotIP net.IP
	var gotTimeout time.Duration
	d := &Discovery{
		Timeout: 250 * time.Millisecond,
		ping: func(ip net.IP, timeout time.Duration) (net.HardwareAddr, time.Duration, error) {
			gotIP, gotTimeout = ip, timeout
			return mac, 1500 * time.Microsecond, nil
		},
	}

	res, err := d.LookupAddr(context.Background(), "192.168.1.20")
	if err != nil {
		t.Fatalf("LookupAddr error: %v", err)
	}
	if res.MACAddress != "00:03:93:12:34:56" {
		t.Errorf("Unexpected MAC %s", res.MACAddress)
	}
	if !gotIP.Equal(net.ParseIP("192.168.1.20")) || gotTimeout != 250*time.Millisecond {
		t.Errorf("ping called with %v, %v", gotIP, gotTimeout)
	}
}

func TestLookupAddr_NoReply(t *testing.T) {
	d := &Discovery{ping: func(net.IP, time.Duration) (net.HardwareAddr, time.Duration, error) {
		return nil, 0, errors.New("timeout")
	}}
	if _, err := d.LookupAddr(context.Background(), "192.168.1.21"); err == nil {
		t.Error("Expected error")
	}
}

func TestLookupAddr_Cancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	d := &Discovery{ping: func(net.IP, time.Duration) (net.HardwareAddr, time.Duration, error) {
		<-release
		return nil, 0, errors.New("late")
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.LookupAddr(ctx, "192.168.1.22"); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestLookupAddr_QueuedLookupHonoursContext(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	slow := &Discovery{ping: func(net.IP, time.Duration) (net.HardwareAddr, time.Duration, error) {
		close(started)
		<-release
		return nil, 0, errors.New("timeout")
	}}
	first := make(chan error, 1)
	go func() {
		_, err := slow.LookupAddr(context.Background(), "192.168.1.23")
		first <- err
	}()
	<-started

	called := false
	queued := &Discovery{ping: func(net.IP, time.Duration) (net.HardwareAddr, time.Duration, error) {
		called = true
		return nil, 0, nil
	}}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := queued.LookupAddr(ctx, "192.168.1.24"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Queued lookup waited %v", elapsed)
	}
	if called {
		t.Error("Queued ping must not run after its context ended")
	}

	close(release)
	if err := <-first; err == nil {
		t.Error("Expected error from first lookup")
	}
}
