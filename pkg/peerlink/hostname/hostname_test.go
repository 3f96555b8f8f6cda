package hostname

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
)

// startResponder serves PTR answers for 127.0.0.1 on a loopback UDP port.
func startResponder(t *testing.T, name string) int {
	t.Helper()
	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &dns.Server{
		PacketConn: pc,
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
			resp := new(dns.Msg)
			resp.SetReply(req)
			if len(req.Question) == 1 && req.Question[0].Qtype == dns.TypePTR {
				resp.Answer = append(resp.Answer, &dns.PTR{
					Hdr: dns.RR_Header{Name: req.Question[0].Name, Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: 120},
					Ptr: dns.Fqdn(name),
				})
			}
			_ = w.WriteMsg(resp)
		}),
	}
	started := make(chan struct{})
	srv.NotifyStartedFunc = func() { close(started) }
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().(*net.UDPAddr).Port
}

// unusedPort returns a loopback UDP port with nothing listening.
func unusedPort(t *testing.T) int {
	t.Helper()
	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := pc.LocalAddr().(*net.UDPAddr).Port
	pc.Close()
	return port
}

type fakeSystem struct {
	names []string
	err   error
}

func (f fakeSystem) LookupAddr(context.Context, string) ([]string, error) {
	return f.names, f.err
}

func TestNewResolver(t *testing.T) {
	r := NewResolver()
	if r.Timeout != DefaultTimeout {
		t.Errorf("Expected timeout %v, got %v", DefaultTimeout, r.Timeout)
	}
	if r.MDNSPort != 5353 || r.LLMNRPort != 5355 {
		t.Errorf("Unexpected ports %d/%d", r.MDNSPort, r.LLMNRPort)
	}
	if r.System == nil {
		t.Error("Expected system resolver fallback")
	}
}

func TestLookupAddr_MDNS(t *testing.T) {
	r := &Resolver{Timeout: time.Second, MDNSPort: startResponder(t, "laptop.local")}

	res, err := r.LookupAddr(context.Background(), "127.0.0.1")
	if err != nil {
		t.Fatalf("LookupAddr error: %v", err)
	}
	if res.Hostname != "laptop.local" {
		t.Errorf("Expected laptop.local, got %s", res.Hostname)
	}
	if res.Source != SourceMDNS {
		t.Errorf("Expected source mdns, got %s", res.Source)
	}
}

func TestLookupAddr_FallsBackToLLMNR(t *testing.T) {
	r := &Resolver{
		Timeout:   200 * time.Millisecond,
		MDNSPort:  unusedPort(t),
		LLMNRPort: startResponder(t, "DESKTOP-42"),
	}

	res, err := r.LookupAddr(context.Background(), "127.0.0.1")
	if err != nil {
		t.Fatalf("LookupAddr error: %v", err)
	}
	if res.Hostname != "DESKTOP-42" || res.Source != SourceLLMNR {
		t.Errorf("Unexpected result %+v", res)
	}
}

func TestLookupAddr_FallsBackToSystem(t *testing.T) {
	r := &Resolver{
		Timeout: 100 * time.Millisecond,
		System:  fakeSystem{names: []string{"router.lan."}},
	}

	res, err := r.LookupAddr(context.Background(), "192.168.1.1")
	if err != nil {
		t.Fatalf("LookupAddr error: %v", err)
	}
	if res.Hostname != "router.lan" || res.Source != SourceDNS {
		t.Errorf("Unexpected result %+v", res)
	}
}

func TestLookupAddr_NotFound(t *testing.T) {
	r := &Resolver{
		Timeout:  100 * time.Millisecond,
		MDNSPort: unusedPort(t),
		System:   fakeSystem{err: errors.New("no PTR record")},
	}
	_, err := r.LookupAddr(context.Background(), "127.0.0.1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLookupAddr_InvalidInput(t *testing.T) {
	r := NewResolver()
	tests := []struct {
		ip  string
		err error
	}{
		{"invalid", ErrInvalidIP},
		{"", ErrInvalidIP},
		{"::1", ErrNotIPv4},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if _, err := r.LookupAddr(context.Background(), tt.ip); !errors.Is(err, tt.err) {
				t.Errorf("Expected %v, got %v", tt.err, err)
			}
		})
	}
}

func TestParsePTRResponse(t *testing.T) {
	query := new(dns.Msg)
	query.SetQuestion("1.1.168.192.in-addr.arpa.", dns.TypePTR)

	resp := new(dns.Msg)
	resp.SetReply(query)
	resp.Answer = append(resp.Answer, &dns.PTR{
		Hdr: dns.RR_Header{Name: "1.1.168.192.in-addr.arpa.", Rrtype: dns.TypePTR, Class: dns.ClassINET},
		Ptr: "printer.local.",
	})
	data, err := resp.Pack()
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	if got := parsePTRResponse(data, query.Id); got != "printer.local" {
		t.Errorf("Expected printer.local, got %q", got)
	}
	if got := parsePTRResponse(data, query.Id+1); got != "" {
		t.Errorf("Mismatched id must be ignored, got %q", got)
	}
	q, _ := query.Pack()
	if got := parsePTRResponse(q, query.Id); got != "" {
		t.Errorf("Queries must be ignored, got %q", got)
	}
	if got := parsePTRResponse([]byte{0x01}, 0); got != "" {
		t.Errorf("Garbage must be ignored, got %q", got)
	}
}
