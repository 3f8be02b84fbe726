// Package engine computes and applies reconciliation plans: the ordered
// operation sequence that moves the firewall from its current state to
// "ASN blocked" or "ASN unblocked". Planning reads current state through
// the store and backend; applying executes exactly the commands the plan
// carries, so a printed dry-run and a live run cannot diverge.
package engine

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"

	"asnblock/internal/runner"
	"asnblock/internal/store"
)

// Action is the user-level operation a plan implements.
type Action string

const (
	ActionBlock   Action = "block"
	ActionUnblock Action = "unblock"
)

// Op is one kind of plan step.
type Op string

const (
	OpEnsureSet       Op = "ensure-set"
	OpReplaceContents Op = "replace-contents"
	OpInstallRule     Op = "install-rule"
	OpRemoveRule      Op = "remove-rule"
	OpDestroySet      Op = "destroy-set"
)

// Step is one operation of a plan. Cmds holds the exact external
// commands that implement it; Old and New carry set contents for
// replace steps so dry-run can render a diff.
type Step struct {
	Op   Op
	Set  store.Set
	Cmds []runner.Cmd
	Old  []string
	New  []string
}

func (s Step) String() string {
	return fmt.Sprintf("%s %s", s.Op, s.Set.Name)
}

// Plan is the full ordered operation sequence for one action. An empty
// Steps slice means the system is already in the desired state.
type Plan struct {
	ID     uuid.UUID
	Action Action
	ASN    uint32
	Steps  []Step
}

// Empty reports whether the plan has nothing to do.
func (p *Plan) Empty() bool {
	return len(p.Steps) == 0
}

func newPlan(action Action, asn uint32) *Plan {
	return &Plan{ID: uuid.New(), Action: action, ASN: asn}
}

// Describe renders the plan as the command lines a live run would
// execute, one "would run:" line per command. With verbose set, replace
// steps additionally carry a unified diff of the set contents.
func (p *Plan) Describe(verbose bool) string {
	var b strings.Builder
	if p.Empty() {
		fmt.Fprintf(&b, "nothing to do: %s %d already reconciled\n", p.Action, p.ASN)
		return b.String()
	}
	for _, step := range p.Steps {
		for _, cmd := range step.Cmds {
			fmt.Fprintf(&b, "would run: %s\n", cmd)
		}
		if verbose && step.Op == OpReplaceContents {
			diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
				A:        diffLines(step.Old),
				B:        diffLines(step.New),
				FromFile: step.Set.Name + " (current)",
				ToFile:   step.Set.Name + " (desired)",
				Context:  2,
			})
			if err == nil && diff != "" {
				b.WriteString(diff)
			}
		}
	}
	return b.String()
}

func diffLines(entries []string) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e + "\n"
	}
	return out
}
