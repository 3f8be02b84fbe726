package engine

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sort"

	"asnblock/internal/backend"
	"asnblock/internal/feed"
	"asnblock/internal/logging"
	"asnblock/internal/runner"
	"asnblock/internal/store"
)

// ErrASNNotFound indicates the ASN appears in neither family's snapshot.
// An ASN present with zero prefixes is not this error.
var ErrASNNotFound = errors.New("ASN not found in cached datasets")

// PartialApplyError reports a plan that failed mid-way. Completed lists
// the steps that committed before the failure; because every step is
// idempotent, re-running the same action resumes where this one stopped.
type PartialApplyError struct {
	Plan      *Plan
	Completed []Step
	Failed    Step
	Err       error
}

func (e *PartialApplyError) Error() string {
	return fmt.Sprintf("plan %s failed at step %q after %d completed step(s): %v",
		e.Plan.ID, e.Failed, len(e.Completed), e.Err)
}

func (e *PartialApplyError) Unwrap() error { return e.Err }

// Engine plans and applies reconciliation against one store and one
// backend, chosen at construction. It holds no state between actions;
// all state lives in the kernel and the snapshot cache.
type Engine struct {
	store     store.Store
	backend   backend.Backend
	runner    runner.CommandRunner
	setPrefix string
	logger    *logging.Logger
}

// New creates an engine.
func New(st store.Store, be backend.Backend, r runner.CommandRunner, setPrefix string, logger *logging.Logger) *Engine {
	if r == nil {
		r = runner.DefaultCommandRunner
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		store:     st,
		backend:   be,
		runner:    r,
		setPrefix: setPrefix,
		logger:    logger.WithComponent("engine"),
	}
}

// snapshotFor returns the snapshot matching family, from the pair the
// caller loaded. Either may be nil when that family was never updated.
func snapshotFor(snap4, snap6 *feed.Snapshot, family feed.Family) *feed.Snapshot {
	if family == feed.FamilyV6 {
		return snap6
	}
	return snap4
}

// PlanBlock computes the steps that bring the ASN to blocked state.
// Planning probes the store and backend so an already-blocked ASN with
// unchanged prefixes yields an empty plan.
func (e *Engine) PlanBlock(snap4, snap6 *feed.Snapshot, asn uint32) (*Plan, error) {
	found := false
	for _, family := range feed.Families {
		snap := snapshotFor(snap4, snap6, family)
		if snap == nil {
			continue
		}
		if _, ok := snap.Lookup(asn); ok {
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: AS%d", ErrASNNotFound, asn)
	}

	plan := newPlan(ActionBlock, asn)
	for _, family := range feed.Families {
		snap := snapshotFor(snap4, snap6, family)
		if snap == nil {
			continue
		}
		desired := snap.PrefixStrings(asn)
		if len(desired) == 0 {
			continue
		}

		name := store.SetName(e.setPrefix, asn, family)
		set := store.Set{Name: name, Family: family}

		exists, haveFamily, err := e.store.Probe(name)
		if err != nil {
			return nil, err
		}
		if exists && haveFamily != "" && haveFamily != family {
			return nil, fmt.Errorf("%w: set %s is %s, want %s",
				store.ErrFamilyMismatch, name, haveFamily, family)
		}

		var current []string
		if exists {
			current, err = e.store.Contents(name)
			if err != nil {
				return nil, err
			}
		} else {
			plan.Steps = append(plan.Steps, Step{
				Op:   OpEnsureSet,
				Set:  set,
				Cmds: e.store.EnsureCmds(name, family),
			})
		}

		if !exists || !sameContents(current, desired) {
			plan.Steps = append(plan.Steps, Step{
				Op:   OpReplaceContents,
				Set:  set,
				Cmds: e.store.ReplaceCmds(name, family, desired),
				Old:  current,
				New:  desired,
			})
		}

		binding := backend.Binding{Set: set, Prefixes: desired}
		installed, err := e.backend.Installed(binding)
		if err != nil {
			return nil, err
		}
		if !installed {
			plan.Steps = append(plan.Steps, Step{
				Op:   OpInstallRule,
				Set:  set,
				Cmds: e.backend.InstallCmds(binding),
			})
		}
	}
	return plan, nil
}

// PlanUnblock computes the steps that remove the ASN's rules and sets.
// All rule removals come before any set destruction; destroying a set a
// live rule still references is undefined in most backends. An ASN that
// was never blocked yields an empty plan, not an error.
func (e *Engine) PlanUnblock(asn uint32) (*Plan, error) {
	plan := newPlan(ActionUnblock, asn)

	var destroys []Step
	for _, family := range feed.Families {
		name := store.SetName(e.setPrefix, asn, family)
		set := store.Set{Name: name, Family: family}

		exists, _, err := e.store.Probe(name)
		if err != nil {
			return nil, err
		}

		var contents []string
		if exists {
			contents, err = e.store.Contents(name)
			if err != nil {
				return nil, err
			}
		}

		binding := backend.Binding{Set: set, Prefixes: contents}
		installed, err := e.backend.Installed(binding)
		if err != nil {
			return nil, err
		}
		if installed {
			plan.Steps = append(plan.Steps, Step{
				Op:   OpRemoveRule,
				Set:  set,
				Cmds: e.backend.RemoveCmds(binding),
			})
		}
		if exists {
			destroys = append(destroys, Step{
				Op:   OpDestroySet,
				Set:  set,
				Cmds: e.store.DestroyCmds(name),
			})
		}
	}
	plan.Steps = append(plan.Steps, destroys...)
	return plan, nil
}

// Apply executes the plan's steps in order. The first failing step
// aborts the plan and reports exactly what committed before it.
func (e *Engine) Apply(ctx context.Context, plan *Plan) error {
	if plan.Empty() {
		e.logger.Info("Nothing to reconcile", "action", string(plan.Action), "asn", plan.ASN)
		return nil
	}

	var completed []Step
	for _, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return &PartialApplyError{Plan: plan, Completed: completed, Failed: step, Err: err}
		}
		e.logger.Info("Applying step",
			"plan", plan.ID.String(), "op", string(step.Op), "set", step.Set.Name)
		for _, cmd := range step.Cmds {
			if err := cmd.Exec(e.runner); err != nil {
				e.logger.Error("Step failed",
					"plan", plan.ID.String(), "op", string(step.Op), "set", step.Set.Name, "error", err)
				return &PartialApplyError{Plan: plan, Completed: completed, Failed: step, Err: err}
			}
		}
		completed = append(completed, step)
	}
	e.logger.Info("Plan applied",
		"plan", plan.ID.String(), "action", string(plan.Action), "asn", plan.ASN, "steps", len(completed))
	return nil
}

// sameContents compares two CIDR lists as sets. Tool output order is not
// meaningful, and ipset prints single hosts without the /32 or /128
// suffix, so entries are canonicalized before comparing.
func sameContents(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := canonicalEntries(a)
	bs := canonicalEntries(b)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func canonicalEntries(entries []string) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		if p, err := netip.ParsePrefix(e); err == nil {
			out[i] = p.Masked().String()
			continue
		}
		if a, err := netip.ParseAddr(e); err == nil {
			out[i] = netip.PrefixFrom(a, a.BitLen()).String()
			continue
		}
		out[i] = e
	}
	return out
}
