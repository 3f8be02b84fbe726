package backend

import (
	"bufio"
	"fmt"
	"strings"

	"asnblock/internal/runner"
)

// UFW expresses blocks as one deny rule per CIDR, since ufw has no
// native match on a named address set. The address sets are still
// maintained alongside so switching backends later keeps working; only
// the rule shape differs. Best effort by nature: large ASNs turn into
// long rule lists.
type UFW struct {
	runner runner.CommandRunner
}

func (u *UFW) Name() string { return "ufw" }

func (u *UFW) Available() error {
	out, err := u.runner.Output("ufw", "status")
	if err != nil {
		return fmt.Errorf("%w: ufw: %v", runner.ErrUnavailable, err)
	}
	if strings.Contains(strings.ToLower(string(out)), "inactive") {
		return fmt.Errorf("%w: ufw is inactive", runner.ErrUnavailable)
	}
	return nil
}

// Installed reports true when any of the binding's prefixes already has
// a deny rule. A partial rule list reads as installed; rerunning block
// after fixing the gap is the recovery path.
func (u *UFW) Installed(b Binding) (bool, error) {
	out, err := u.runner.Output("ufw", "status")
	if err != nil {
		return false, err
	}

	present := make(map[string]bool)
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		// Rule lines look like "Anywhere DENY 1.2.3.0/24"; the source is
		// the last field.
		if len(fields) >= 3 && fields[1] == "DENY" {
			present[fields[len(fields)-1]] = true
		}
	}

	for _, cidr := range b.Prefixes {
		if present[cidr] {
			return true, nil
		}
	}
	return false, nil
}

func (u *UFW) InstallCmds(b Binding) []runner.Cmd {
	cmds := make([]runner.Cmd, 0, len(b.Prefixes))
	for _, cidr := range b.Prefixes {
		cmds = append(cmds, runner.Cmd{Name: "ufw", Args: []string{"deny", "from", cidr}})
	}
	return cmds
}

func (u *UFW) RemoveCmds(b Binding) []runner.Cmd {
	cmds := make([]runner.Cmd, 0, len(b.Prefixes))
	for _, cidr := range b.Prefixes {
		cmds = append(cmds, runner.Cmd{Name: "ufw", Args: []string{"delete", "deny", "from", cidr}})
	}
	return cmds
}
