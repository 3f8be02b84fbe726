// Package cmd implements the CLI subcommands. Each Run* function owns
// its own flag set and maps errors to ordinary returns; main translates
// those into exit codes.
package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/pflag"

	"asnblock/internal/backend"
	"asnblock/internal/config"
	"asnblock/internal/engine"
	"asnblock/internal/feed"
	"asnblock/internal/logging"
	"asnblock/internal/runner"
	"asnblock/internal/store"
)

// commonFlags adds the flags every subcommand carries.
func commonFlags(fs *pflag.FlagSet) *string {
	return fs.StringP("config", "c", config.DefaultPath(), "Configuration file")
}

// loadConfig loads the config and applies its logging settings to the
// default logger.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = level
	logCfg.JSON = cfg.Log.JSON

	if cfg.Log.Syslog {
		sysCfg := logging.DefaultSyslogConfig()
		sysCfg.Enabled = true
		sysCfg.Address = cfg.Log.SyslogAddress
		sysCfg.Tag = cfg.Log.SyslogTag
		if w, err := logging.NewSyslogWriter(sysCfg); err == nil {
			logCfg.Output = logging.MultiWriter(logCfg.Output, w)
		} else {
			logging.Warn("Syslog unavailable, logging to console only", "error", err)
		}
	}
	logging.SetDefault(logging.New(logCfg))
	return cfg, nil
}

// parseASN validates a user-supplied ASN. AS0 and the reserved maximum
// are rejected; neither can announce prefixes.
func parseASN(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid ASN %q: expected a number", s)
	}
	if n == 0 || n == 4294967295 {
		return 0, fmt.Errorf("invalid ASN %d: outside the assignable range", n)
	}
	return uint32(n), nil
}

// buildEngine wires the store, backend and engine for the configured
// variant.
func buildEngine(cfg *config.Config) (*engine.Engine, backend.Backend, error) {
	r := runner.DefaultCommandRunner
	be, err := backend.Select(cfg.Backend, r, cfg.Zone)
	if err != nil {
		return nil, nil, err
	}
	st := store.NewIPSet(r)
	return engine.New(st, be, r, cfg.SetPrefix, logging.Default()), be, nil
}

// loadSnapshots reads both cached snapshots. A family with no cache yet
// comes back nil; having neither is an error the caller surfaces as
// "run update first".
func loadSnapshots(cfg *config.Config) (*feed.Snapshot, *feed.Snapshot, error) {
	cache := feed.NewCache(cfg.CacheDir)

	snap4, err := cache.Load(feed.FamilyV4)
	if err != nil && !errors.Is(err, feed.ErrNoSnapshot) {
		return nil, nil, err
	}
	snap6, err := cache.Load(feed.FamilyV6)
	if err != nil && !errors.Is(err, feed.ErrNoSnapshot) {
		return nil, nil, err
	}
	if snap4 == nil && snap6 == nil {
		return nil, nil, feed.ErrNoSnapshot
	}
	return snap4, snap6, nil
}
