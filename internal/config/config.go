// Package config loads node configuration from defaults, an optional YAML
// file and PEERLINK_* environment variables.
package config

import (
	"time"
)

// Config is the full node configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Announce AnnounceConfig `mapstructure:"announce"`
	Describe DescribeConfig `mapstructure:"describe"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig configures the session server.
type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	Path              string        `mapstructure:"path"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout"`
	MaxMessageSize    int64         `mapstructure:"max_message_size"`
}

// ScanConfig configures the subnet scanner.
type ScanConfig struct {
	Port     int           `mapstructure:"port"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CIDR     string        `mapstructure:"cidr"`
	MaxHosts int           `mapstructure:"max_hosts"`
}

// AnnounceConfig configures SSDP announcement.
type AnnounceConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	MaxAge   int           `mapstructure:"max_age"`
}

// DescribeConfig configures peer description lookups.
type DescribeConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	OUIDB   string        `mapstructure:"oui_db"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}
