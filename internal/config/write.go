package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// Render serializes the config as HCL.
func (c *Config) Render() []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	body.SetAttributeValue("backend", cty.StringVal(c.Backend))
	body.SetAttributeValue("set_prefix", cty.StringVal(c.SetPrefix))
	body.SetAttributeValue("zone", cty.StringVal(c.Zone))
	body.SetAttributeValue("cache_dir", cty.StringVal(c.CacheDir))
	if c.GeoIPDir != "" {
		body.SetAttributeValue("geoip_dir", cty.StringVal(c.GeoIPDir))
	}

	if c.Feed != nil {
		body.AppendNewline()
		feedBody := body.AppendNewBlock("feed", nil).Body()
		feedBody.SetAttributeValue("ipv4_url", cty.StringVal(c.Feed.IPv4URL))
		feedBody.SetAttributeValue("ipv6_url", cty.StringVal(c.Feed.IPv6URL))
		feedBody.SetAttributeValue("timeout_seconds", cty.NumberIntVal(int64(c.Feed.TimeoutSeconds)))
	}

	if c.Log != nil {
		body.AppendNewline()
		logBody := body.AppendNewBlock("log", nil).Body()
		logBody.SetAttributeValue("level", cty.StringVal(c.Log.Level))
		if c.Log.JSON {
			logBody.SetAttributeValue("json", cty.BoolVal(true))
		}
		if c.Log.Syslog {
			logBody.SetAttributeValue("syslog", cty.BoolVal(true))
			logBody.SetAttributeValue("syslog_address", cty.StringVal(c.Log.SyslogAddress))
			logBody.SetAttributeValue("syslog_tag", cty.StringVal(c.Log.SyslogTag))
		}
	}

	return f.Bytes()
}

// WriteFile writes the rendered config to path, refusing to clobber an
// existing file.
func (c *Config) WriteFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, c.Render(), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
