// Package brand centralizes the project's identity constants so that
// usage text, default paths and log tags stay consistent across commands.
package brand

const (
	Name        = "asnblock"
	Description = "ASN-based firewall blocking via ipset and friends"

	BinaryName     = "asnblock"
	ConfigFileName = "asnblock.hcl"

	DefaultConfigDir = "/etc/asnblock"
	DefaultCacheDir  = "/var/cache/asnblock"
)

// Version is overridden at build time via -ldflags.
var (
	Version   = "dev"
	BuildTime = ""
)
