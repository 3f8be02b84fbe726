package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"asnblock/internal/feed"
	"asnblock/internal/runner"
	"asnblock/internal/store"
)

// RunStatus handles the "status" command: report cached snapshot ages
// and which ASNs currently have address sets on this host.
func RunStatus(args []string) error {
	fs := pflag.NewFlagSet("status", pflag.ContinueOnError)
	configFile := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}

	fmt.Printf("backend: %s\n", cfg.Backend)

	cache := feed.NewCache(cfg.CacheDir)
	for _, family := range feed.Families {
		snap, err := cache.Load(family)
		if errors.Is(err, feed.ErrNoSnapshot) {
			fmt.Printf("%s dataset: not cached (run 'update')\n", family)
			continue
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s dataset: %d ASNs, fetched %s\n",
			family, snap.Len(), snap.FetchedAt().Format("2006-01-02 15:04:05 MST"))
	}

	st := store.NewIPSet(runner.DefaultCommandRunner)
	names, err := st.Names()
	if err != nil {
		if errors.Is(err, runner.ErrUnavailable) {
			fmt.Println("blocked ASNs: unknown (ipset not available)")
			return nil
		}
		return err
	}

	blocked := make(map[uint32][]feed.Family)
	for _, name := range names {
		if asn, family, ok := store.ParseSetName(cfg.SetPrefix, name); ok {
			blocked[asn] = append(blocked[asn], family)
		}
	}
	if len(blocked) == 0 {
		fmt.Println("blocked ASNs: none")
		return nil
	}

	asns := make([]uint32, 0, len(blocked))
	for asn := range blocked {
		asns = append(asns, asn)
	}
	sort.Slice(asns, func(i, j int) bool { return asns[i] < asns[j] })

	fmt.Printf("blocked ASNs: %d\n", len(asns))
	for _, asn := range asns {
		var fams []string
		for _, f := range blocked[asn] {
			fams = append(fams, string(f))
		}
		fmt.Printf("  AS%d (%s)\n", asn, strings.Join(fams, ","))
	}
	return nil
}
