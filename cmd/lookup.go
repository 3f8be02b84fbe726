package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/spf13/pflag"

	"asnblock/internal/feed"
	"asnblock/internal/lookup"
)

// RunLookup handles the "lookup" command. The argument may be an ASN,
// an IP address, or a hostname; each is matched against the cached
// datasets.
func RunLookup(args []string) error {
	fs := pflag.NewFlagSet("lookup", pflag.ContinueOnError)
	configFile := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: lookup [flags] <ASN|IP|hostname>")
	}
	target := fs.Arg(0)

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}
	snap4, snap6, err := loadSnapshots(cfg)
	if err != nil {
		if errors.Is(err, feed.ErrNoSnapshot) {
			return fmt.Errorf("no cached dataset; run 'update' first")
		}
		return err
	}

	svc := lookup.New(snap4, snap6, cfg.GeoIPDir)
	defer svc.Close()

	// ASN first: a bare number is never a hostname worth resolving.
	if asn, err := parseASN(target); err == nil {
		return lookupASN(snap4, snap6, asn)
	}

	if addr, err := netip.ParseAddr(target); err == nil {
		printMatch(svc.MatchAddr(addr))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	addrs, err := svc.ResolveHost(ctx, target)
	if err != nil {
		return err
	}
	fmt.Printf("%s resolves to %d address(es)\n", target, len(addrs))
	for _, addr := range addrs {
		printMatch(svc.MatchAddr(addr))
	}
	return nil
}

func lookupASN(snap4, snap6 *feed.Snapshot, asn uint32) error {
	found := false
	for _, pair := range []struct {
		family feed.Family
		snap   *feed.Snapshot
	}{{feed.FamilyV4, snap4}, {feed.FamilyV6, snap6}} {
		if pair.snap == nil {
			continue
		}
		prefixes, ok := pair.snap.Lookup(asn)
		if !ok {
			continue
		}
		found = true
		if name := pair.snap.ASNName(asn); name != "" {
			fmt.Printf("AS%d (%s) %s: %d prefixes\n", asn, name, pair.family, len(prefixes))
		} else {
			fmt.Printf("AS%d %s: %d prefixes\n", asn, pair.family, len(prefixes))
		}
		for _, p := range prefixes {
			fmt.Printf("  %s\n", p)
		}
	}
	if !found {
		return fmt.Errorf("AS%d not found in cached datasets", asn)
	}
	return nil
}

func printMatch(m lookup.Match) {
	line := m.Addr.String()
	if m.Country != "" {
		line += " [" + m.Country + "]"
	}
	if !m.Found {
		fmt.Printf("%s: no ASN match\n", line)
		return
	}
	if m.ASNName != "" {
		fmt.Printf("%s: AS%d (%s) via %s\n", line, m.ASN, m.ASNName, m.Prefix)
	} else {
		fmt.Printf("%s: AS%d via %s\n", line, m.ASN, m.Prefix)
	}
}
