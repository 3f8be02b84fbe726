// Package config holds the HCL configuration surface: which backend to
// drive, where snapshots live, and how the feeds are fetched.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"asnblock/internal/backend"
	"asnblock/internal/brand"
)

// Default feed endpoints; iptoasn.com publishes both families as
// gzipped TSV.
const (
	DefaultFeedV4URL = "https://iptoasn.com/data/ip2asn-v4.tsv.gz"
	DefaultFeedV6URL = "https://iptoasn.com/data/ip2asn-v6.tsv.gz"
)

// Config is the top-level configuration.
type Config struct {
	Backend   string `hcl:"backend,optional"`
	SetPrefix string `hcl:"set_prefix,optional"`
	Zone      string `hcl:"zone,optional"`
	CacheDir  string `hcl:"cache_dir,optional"`
	GeoIPDir  string `hcl:"geoip_dir,optional"`

	Feed *FeedConfig `hcl:"feed,block"`
	Log  *LogConfig  `hcl:"log,block"`
}

// FeedConfig controls dataset downloads.
type FeedConfig struct {
	IPv4URL        string `hcl:"ipv4_url,optional"`
	IPv6URL        string `hcl:"ipv6_url,optional"`
	TimeoutSeconds int    `hcl:"timeout_seconds,optional"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `hcl:"level,optional"`
	JSON   bool   `hcl:"json,optional"`
	Syslog bool   `hcl:"syslog,optional"`

	SyslogAddress string `hcl:"syslog_address,optional"`
	SyslogTag     string `hcl:"syslog_tag,optional"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = "iptables"
	}
	if c.SetPrefix == "" {
		c.SetPrefix = "ASN"
	}
	if c.Zone == "" {
		c.Zone = backend.DefaultZone
	}
	if c.CacheDir == "" {
		c.CacheDir = brand.DefaultCacheDir
	}
	if c.Feed == nil {
		c.Feed = &FeedConfig{}
	}
	if c.Feed.IPv4URL == "" {
		c.Feed.IPv4URL = DefaultFeedV4URL
	}
	if c.Feed.IPv6URL == "" {
		c.Feed.IPv6URL = DefaultFeedV6URL
	}
	if c.Feed.TimeoutSeconds <= 0 {
		c.Feed.TimeoutSeconds = 60
	}
	if c.Log == nil {
		c.Log = &LogConfig{}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.SyslogAddress == "" {
		c.Log.SyslogAddress = "/dev/log"
	}
	if c.Log.SyslogTag == "" {
		c.Log.SyslogTag = brand.BinaryName
	}
}

// FeedTimeout returns the fetch timeout as a duration.
func (c *Config) FeedTimeout() time.Duration {
	return time.Duration(c.Feed.TimeoutSeconds) * time.Second
}

// Validate checks the configuration for values that would only fail
// later, deep inside an action.
func (c *Config) Validate() error {
	valid := false
	for _, name := range backend.Names {
		if c.Backend == name {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid backend %q (expected one of %v)", c.Backend, backend.Names)
	}
	if c.Feed.IPv4URL == "" || c.Feed.IPv6URL == "" {
		return fmt.Errorf("feed URLs must not be empty")
	}
	return nil
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	return filepath.Join(brand.DefaultConfigDir, brand.ConfigFileName)
}

// Load reads the config file at path, filling in defaults for anything
// unset. A missing file is not an error; the defaults are a complete,
// working configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.applyDefaults()
		return cfg, nil
	}
	if err := hclsimple.DecodeFile(path, nil, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
