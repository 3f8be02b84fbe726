package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"asnblock/internal/engine"
	"asnblock/internal/feed"
)

// RunBlock handles the "block" command: reconcile the firewall so all
// traffic from the ASN's announced prefixes is dropped.
func RunBlock(args []string) error {
	return runReconcile("block", args)
}

// RunUnblock handles the "unblock" command: remove the ASN's rules and
// destroy its address sets.
func RunUnblock(args []string) error {
	return runReconcile("unblock", args)
}

func runReconcile(action string, args []string) error {
	fs := pflag.NewFlagSet(action, pflag.ContinueOnError)
	configFile := commonFlags(fs)
	dryRun := fs.BoolP("dry-run", "n", false, "Print the plan without applying it")
	verbose := fs.BoolP("verbose", "v", false, "Show set content diffs in dry-run output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: %s [flags] <ASN>", action)
	}

	asn, err := parseASN(fs.Arg(0))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}

	eng, be, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	var plan *engine.Plan
	if action == "block" {
		snap4, snap6, err := loadSnapshots(cfg)
		if err != nil {
			if errors.Is(err, feed.ErrNoSnapshot) {
				return fmt.Errorf("no cached dataset; run 'update' first")
			}
			return err
		}
		plan, err = eng.PlanBlock(snap4, snap6, asn)
		if err != nil {
			return err
		}
	} else {
		plan, err = eng.PlanUnblock(asn)
		if err != nil {
			return err
		}
	}

	if *dryRun {
		fmt.Print(plan.Describe(*verbose))
		return nil
	}

	if err := be.Available(); err != nil {
		return err
	}
	if err := eng.Apply(context.Background(), plan); err != nil {
		return err
	}
	if plan.Empty() {
		fmt.Printf("AS%d already %sed\n", asn, action)
	} else {
		fmt.Printf("AS%d %sed (%d steps)\n", asn, action, len(plan.Steps))
	}
	return nil
}
