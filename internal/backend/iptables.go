package backend

import (
	"errors"
	"fmt"

	"asnblock/internal/feed"
	"asnblock/internal/runner"
)

// IPTables drives iptables and ip6tables, one per address family. Rules
// are inserted at the head of INPUT so they precede any default-accept
// rule. Rules do not survive a reboot; persistence is left to the host's
// own iptables-save machinery.
type IPTables struct {
	runner runner.CommandRunner
}

func (t *IPTables) Name() string { return "iptables" }

func tool(family feed.Family) string {
	if family == feed.FamilyV6 {
		return "ip6tables"
	}
	return "iptables"
}

func matchSetArgs(setName string) []string {
	return []string{"INPUT", "-m", "set", "--match-set", setName, "src", "-j", "DROP"}
}

// Available probes both tools; blocking an ASN touches both families.
func (t *IPTables) Available() error {
	for _, family := range feed.Families {
		if _, err := t.runner.Output(tool(family), "--version"); err != nil {
			return fmt.Errorf("%w: %s", runner.ErrUnavailable, tool(family))
		}
	}
	return nil
}

// Installed uses the check flag, which exits nonzero when the rule is
// absent. A missing tool still surfaces as ErrUnavailable.
func (t *IPTables) Installed(b Binding) (bool, error) {
	args := append([]string{"-C"}, matchSetArgs(b.Set.Name)...)
	err := t.runner.Run(tool(b.Set.Family), args...)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, runner.ErrUnavailable) {
		return false, err
	}
	return false, nil
}

func (t *IPTables) InstallCmds(b Binding) []runner.Cmd {
	args := append([]string{"-I"}, matchSetArgs(b.Set.Name)...)
	// -I INPUT defaults to position 1.
	return []runner.Cmd{{Name: tool(b.Set.Family), Args: args}}
}

func (t *IPTables) RemoveCmds(b Binding) []runner.Cmd {
	args := append([]string{"-D"}, matchSetArgs(b.Set.Name)...)
	return []runner.Cmd{{Name: tool(b.Set.Family), Args: args}}
}
