// Package peerlink: Log prefix constants for consistent log tagging.
// These constants are exported so consumers can use them for consistent logging,
// but they are not required - consumers can use their own prefixes via SetDebugLogger.
package peerlink

// Log prefix constants for node components.
// Format follows [Component] or [Component:Subcomponent] pattern.
const (
	LogPrefixNode = "[PeerLink]"

	LogPrefixNetwork  = "[PeerLink:Network]"
	LogPrefixProbe    = "[PeerLink:Probe]"
	LogPrefixScan     = "[PeerLink:Scan]"
	LogPrefixSession  = "[PeerLink:Session]"
	LogPrefixServer   = "[PeerLink:Server]"
	LogPrefixSSDP     = "[PeerLink:SSDP]"
	LogPrefixHostname = "[PeerLink:Hostname]"
	LogPrefixARP      = "[PeerLink:ARP]"
	LogPrefixVendor   = "[PeerLink:Vendor]"

	// Debug prefix - use as "[DEBUG][PeerLink:*]" format
	LogPrefixDebug = "[DEBUG]"
)

// ComponentToPrefix returns the log prefix for a given component.
func ComponentToPrefix(component Component) string {
	switch component {
	case ComponentNetwork:
		return LogPrefixNetwork
	case ComponentProbe:
		return LogPrefixProbe
	case ComponentScan:
		return LogPrefixScan
	case ComponentSession:
		return LogPrefixSession
	case ComponentServer:
		return LogPrefixServer
	case ComponentSSDP:
		return LogPrefixSSDP
	case ComponentHostname:
		return LogPrefixHostname
	case ComponentARP:
		return LogPrefixARP
	case ComponentVendor:
		return LogPrefixVendor
	default:
		return LogPrefixNode
	}
}
