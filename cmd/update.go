package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"asnblock/internal/clock"
	"asnblock/internal/engine"
	"asnblock/internal/feed"
)

// RunUpdate handles the "update" command: download and normalize both
// family datasets into the local cache.
func RunUpdate(args []string) error {
	fs := pflag.NewFlagSet("update", pflag.ContinueOnError)
	configFile := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}

	updater := engine.NewUpdater(
		feed.NewFetcher(cfg.FeedTimeout()),
		feed.NewCache(cfg.CacheDir),
		map[feed.Family]string{
			feed.FamilyV4: cfg.Feed.IPv4URL,
			feed.FamilyV6: cfg.Feed.IPv6URL,
		},
		&clock.RealClock{},
		nil,
	)

	started := time.Now()
	stats, err := updater.Update(context.Background())
	if err != nil {
		return err
	}

	for _, family := range feed.Families {
		s := stats[family]
		fmt.Printf("%s: %d rows, %d valid, %d skipped\n", family, s.Total, s.Valid, s.Skipped)
	}
	fmt.Printf("update finished in %s\n", time.Since(started).Round(time.Millisecond))
	return nil
}
