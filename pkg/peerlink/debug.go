// Package peerlink: Debug logging support.
package peerlink

import (
	"sync"
)

// DebugLevel represents the verbosity level for debug logging.
type DebugLevel int

const (
	// DebugOff disables all debug logging.
	DebugOff DebugLevel = iota
	// DebugBasic logs lifecycle events (listen, scan, connection start/end, errors).
	DebugBasic
	// DebugVerbose also logs per-host and per-message detail.
	DebugVerbose
)

// String returns the level name.
func (l DebugLevel) String() string {
	switch l {
	case DebugOff:
		return "off"
	case DebugBasic:
		return "basic"
	case DebugVerbose:
		return "verbose"
	default:
		return "unknown"
	}
}

// DebugLogger is a callback function for debug logging.
// The component parameter indicates which part of the node generated the message.
type DebugLogger func(component Component, format string, args ...interface{})

var (
	debugLogger DebugLogger
	debugLevel  DebugLevel
	debugMu     sync.RWMutex
)

// SetDebugLogger sets a custom debug logger callback.
// Pass nil to disable debug logging.
func SetDebugLogger(logger DebugLogger) {
	debugMu.Lock()
	defer debugMu.Unlock()
	debugLogger = logger
}

// SetDebugLevel sets the debug verbosity level.
func SetDebugLevel(level DebugLevel) {
	debugMu.Lock()
	defer debugMu.Unlock()
	debugLevel = level
}

// GetDebugLevel returns the current debug level.
func GetDebugLevel() DebugLevel {
	debugMu.RLock()
	defer debugMu.RUnlock()
	return debugLevel
}

func logAt(min DebugLevel, component Component, format string, args ...interface{}) {
	debugMu.RLock()
	logger := debugLogger
	level := debugLevel
	debugMu.RUnlock()

	if logger != nil && level >= min {
		logger(component, format, args...)
	}
}

// debugLog logs a message if debug logging is enabled.
func debugLog(component Component, format string, args ...interface{}) {
	logAt(DebugBasic, component, format, args...)
}

// debugLogVerbose logs a verbose message if verbose debug logging is enabled.
func debugLogVerbose(component Component, format string, args ...interface{}) {
	logAt(DebugVerbose, component, format, args...)
}
