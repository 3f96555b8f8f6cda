// Package peerlink version information.
package peerlink

// Version information for the peerlink library.
const (
	// Version is the semantic version of the library.
	Version = "0.4.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 4

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// VersionInfo returns the full version string with library name.
func VersionInfo() string {
	return "go-peerlink v" + Version
}
