package engine

import (
	"bytes"
	"context"
	"fmt"

	"asnblock/internal/clock"
	"asnblock/internal/feed"
	"asnblock/internal/logging"
)

// Updater refreshes the local snapshot cache from the upstream datasets.
// It never touches sets or rules; the next block action picks up the new
// data. A corrupt download aborts before the cache is written, so the
// previous snapshot stays authoritative.
type Updater struct {
	fetcher *feed.Fetcher
	cache   *feed.Cache
	urls    map[feed.Family]string
	clock   clock.Clock
	logger  *logging.Logger
}

// NewUpdater creates an updater downloading from urls into cache.
func NewUpdater(fetcher *feed.Fetcher, cache *feed.Cache, urls map[feed.Family]string, clk clock.Clock, logger *logging.Logger) *Updater {
	if clk == nil {
		clk = &clock.RealClock{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Updater{
		fetcher: fetcher,
		cache:   cache,
		urls:    urls,
		clock:   clk,
		logger:  logger.WithComponent("update"),
	}
}

// Update downloads and normalizes both family datasets, returning decode
// stats per family. The first family that fails aborts the run; a family
// already written stays written, which is safe because snapshots are
// independent per family.
func (u *Updater) Update(ctx context.Context) (map[feed.Family]feed.Stats, error) {
	results := make(map[feed.Family]feed.Stats, len(feed.Families))
	for _, family := range feed.Families {
		url, ok := u.urls[family]
		if !ok || url == "" {
			return results, fmt.Errorf("no dataset URL configured for family %s", family)
		}

		u.logger.Info("Downloading dataset", "family", string(family), "url", url)
		data, err := u.fetcher.Fetch(ctx, url)
		if err != nil {
			return results, fmt.Errorf("failed to fetch %s dataset: %w", family, err)
		}

		snap, stats, err := feed.Normalize(bytes.NewReader(data), family, u.clock.Now())
		if err != nil {
			return results, fmt.Errorf("failed to normalize %s dataset: %w", family, err)
		}

		if err := u.cache.Save(snap); err != nil {
			return results, fmt.Errorf("failed to cache %s snapshot: %w", family, err)
		}

		u.logger.Info("Snapshot cached",
			"family", string(family), "asns", snap.Len(),
			"rows", stats.Total, "skipped", stats.Skipped)
		results[family] = stats
	}
	return results, nil
}
