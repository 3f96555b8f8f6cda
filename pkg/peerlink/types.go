// Package peerlink runs a local peer-session node: a WebSocket session
// server on a well-known port, a subnet scanner that finds hosts with the
// service port open, and optional SSDP announcement of the node itself.
//
// Subpackages can be used on their own:
//   - probe: single-host TCP reachability with a timeout
//   - scan: concurrent probe of every host in the local subnet
//   - session: per-connection mode negotiation and heartbeat
//   - server: connection acceptor
//   - ssdp, hostname, arp, oui: announcing and describing peers
package peerlink

// Component identifies the part of the node that produced a log line.
type Component string

const (
	ComponentNode     Component = "node"
	ComponentNetwork  Component = "network"
	ComponentProbe    Component = "probe"
	ComponentScan     Component = "scan"
	ComponentSession  Component = "session"
	ComponentServer   Component = "server"
	ComponentSSDP     Component = "ssdp"
	ComponentHostname Component = "hostname"
	ComponentARP      Component = "arp"
	ComponentVendor   Component = "vendor"
)

// PeerInfo describes one reachable host.
type PeerInfo struct {
	IP             string
	Hostname       string
	HostnameSource string
	MAC            string
	Vendor         string
	Errors         map[Component]error
}
