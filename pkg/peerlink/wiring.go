// Package peerlink: routes subpackage debug output through SetDebugLogger.
package peerlink

import (
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

func init() {
	// Lifecycle components log at DebugBasic.
	network.DebugLogger = func(format string, args ...interface{}) {
		debugLog(ComponentNetwork, format, args...)
	}
	scan.DebugLogger = func(format string, args ...interface{}) {
		debugLog(ComponentScan, format, args...)
	}
	server.DebugLogger = func(format string, args ...interface{}) {
		debugLog(ComponentServer, format, args...)
	}
	ssdp.DebugLogger = func(format string, args ...interface{}) {
		debugLog(ComponentSSDP, format, args...)
	}

	// Per-host and per-message components are verbose only.
	probe.DebugLogger = func(format string, args ...interface{}) {
		debugLogVerbose(ComponentProbe, format, args...)
	}
	session.DebugLogger = func(format string, args ...interface{}) {
		debugLogVerbose(ComponentSession, format, args...)
	}
	hostname.DebugLogger = func(format string, args ...interface{}) {
		debugLogVerbose(ComponentHostname, format, args...)
	}
	arp.DebugLogger = func(format string, args ...interface{}) {
		debugLogVerbose(ComponentARP, format, args...)
	}
	oui.DebugLogger = func(format string, args ...interface{}) {
		debugLogVerbose(ComponentVendor, format, args...)
	}
}
