package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PEERLINK_SERVER_PORT.
const EnvPrefix = "PEERLINK"

// Loader reads configuration with viper.
type Loader struct {
	configPath string
	viper      *viper.Viper
}

// NewLoader creates a loader. An empty path means defaults and environment only.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		viper:      viper.New(),
	}
}

// Viper exposes the underlying instance so callers can bind flags.
func (l *Loader) Viper() *viper.Viper {
	return l.viper
}

// Load merges defaults, the config file and the environment, then validates.
func (l *Loader) Load() (*Config, error) {
	v := l.viper
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if l.configPath != "" {
		v.SetConfigFile(l.configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Load is shorthand for NewLoader(path).Load().
func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Default returns the configuration with no file and no environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 15446)
	v.SetDefault("server.path", "/")
	v.SetDefault("server.heartbeat_interval", "1000ms")
	v.SetDefault("server.handshake_timeout", "10s")
	v.SetDefault("server.max_message_size", 16<<20)

	v.SetDefault("scan.port", 8888)
	v.SetDefault("scan.timeout", "1s")
	v.SetDefault("scan.cidr", "")
	v.SetDefault("scan.max_hosts", 65534)

	v.SetDefault("announce.enabled", false)
	v.SetDefault("announce.interval", "30s")
	v.SetDefault("announce.max_age", 1800)

	v.SetDefault("describe.timeout", "2s")
	v.SetDefault("describe.oui_db", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.file_path", "logs/peerlink.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.compress", true)
}

// Validate checks ranges and enum values.
func (c *Config) Validate() error {
	var errs []error

	if err := validPort("server.port", c.Server.Port); err != nil {
		errs = append(errs, err)
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		errs = append(errs, fmt.Errorf("server.path must start with '/': %q", c.Server.Path))
	}
	if c.Server.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("server.heartbeat_interval must be positive"))
	}
	if c.Server.HandshakeTimeout <= 0 {
		errs = append(errs, errors.New("server.handshake_timeout must be positive"))
	}
	if c.Server.MaxMessageSize <= 0 {
		errs = append(errs, errors.New("server.max_message_size must be positive"))
	}

	if err := validPort("scan.port", c.Scan.Port); err != nil {
		errs = append(errs, err)
	}
	if c.Scan.Timeout <= 0 {
		errs = append(errs, errors.New("scan.timeout must be positive"))
	}
	if c.Scan.CIDR != "" {
		if _, _, err := net.ParseCIDR(c.Scan.CIDR); err != nil {
			errs = append(errs, fmt.Errorf("scan.cidr: %w", err))
		}
	}
	if c.Scan.MaxHosts < 0 {
		errs = append(errs, errors.New("scan.max_hosts must not be negative"))
	}

	if c.Announce.Enabled && c.Announce.Interval <= 0 {
		errs = append(errs, errors.New("announce.interval must be positive"))
	}
	if c.Describe.Timeout <= 0 {
		errs = append(errs, errors.New("describe.timeout must be positive"))
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported log format: %s", c.Log.Format))
	}
	switch strings.ToLower(c.Log.Output) {
	case "stdout", "stderr":
	case "file":
		if c.Log.FilePath == "" {
			errs = append(errs, errors.New("log.file_path is required when output is file"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported log output: %s", c.Log.Output))
	}

	return errors.Join(errs...)
}

// ServerAddr joins host and port.
func (c *Config) ServerAddr() string {
	return net.JoinHostPort(c.Server.Host, fmt.Sprint(c.Server.Port))
}

func validPort(key string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s out of range: %d", key, port)
	}
	return nil
}
