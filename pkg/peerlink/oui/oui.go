// Package oui resolves MAC addresses to vendor names using the IEEE OUI database.
package oui

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/oui"
)

var (
	// ErrNoDatabase is returned when no database path is configured.
	ErrNoDatabase = errors.New("no OUI database configured")
	// ErrInvalidMAC is returned for an unparsable MAC address.
	ErrInvalidMAC = errors.New("invalid MAC address format")
)

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from OUI operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// VendorInfo contains information about a MAC address vendor.
type VendorInfo struct {
	Manufacturer string
	Address      []string
	Country      string
	Prefix       string
}

// Vendors looks up vendors in a database file loaded on first use.
type Vendors struct {
	path string

	once sync.Once
	db   oui.OuiDB
	err  error
}

// New returns a vendor lookup backed by the oui.txt file at path.
// The file is checked for existence but parsed lazily.
func New(path string) (*Vendors, error) {
	if path == "" {
		return nil, ErrNoDatabase
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("OUI database file: %w", err)
	}
	return &Vendors{path: path}, nil
}

// FromDB wraps an already opened database.
func FromDB(db oui.OuiDB) *Vendors {
	v := &Vendors{db: db}
	v.once.Do(func() {})
	return v
}

// Path returns the database path, empty for FromDB.
func (v *Vendors) Path() string { return v.path }

func (v *Vendors) load() error {
	v.once.Do(func() {
		debugLog("Loading OUI database from: %s", v.path)
		db, err := oui.OpenStaticFile(v.path)
		if err != nil {
			v.err = fmt.Errorf("failed to open OUI database: %w", err)
			return
		}
		v.db = db
	})
	return v.err
}

// Lookup returns the vendor of mac. An unknown prefix yields (nil, nil).
// The MAC address can be "00:11:22:33:44:55", "00-11-22-33-44-55" or "001122334455".
func (v *Vendors) Lookup(mac string) (*VendorInfo, error) {
	norm := NormalizeMAC(mac)
	if norm == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMAC, mac)
	}
	hwAddr, err := net.ParseMAC(norm)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MAC address: %w", err)
	}
	if err := v.load(); err != nil {
		return nil, err
	}

	entry, err := v.db.Query(hwAddr.String())
	if err != nil {
		if errors.Is(err, oui.ErrNotFound) {
			debugLog("%s: vendor not found in database", norm)
			return nil, nil
		}
		return nil, fmt.Errorf("OUI lookup failed: %w", err)
	}

	vendor := &VendorInfo{
		Manufacturer: entry.Manufacturer,
		Prefix:       entry.Prefix.String(),
		Country:      entry.Country,
	}
	if len(entry.Address) > 0 {
		vendor.Address = entry.Address
	}
	debugLog("%s -> %s", norm, vendor.Manufacturer)
	return vendor, nil
}

// LookupName returns just the manufacturer, or "" when unknown.
func (v *Vendors) LookupName(mac string) string {
	vendor, err := v.Lookup(mac)
	if err != nil || vendor == nil {
		return ""
	}
	return vendor.Manufacturer
}

// NormalizeMAC normalizes various MAC address formats to standard format.
// Returns empty string if invalid.
func NormalizeMAC(mac string) string {
	mac = strings.ToLower(mac)
	mac = strings.NewReplacer("-", "", ":", "", ".", "").Replace(mac)

	if len(mac) != 12 {
		return ""
	}
	for _, c := range mac {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return ""
		}
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s:%s",
		mac[0:2], mac[2:4], mac[4:6], mac[6:8], mac[8:10], mac[10:12])
}
