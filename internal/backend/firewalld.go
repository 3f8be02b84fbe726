package backend

import (
	"errors"
	"fmt"
	"strings"

	"asnblock/internal/runner"
)

// DefaultZone is the firewalld zone sources are attached to when the
// configuration does not name one. The stock "block" zone rejects all
// inbound traffic from its sources.
const DefaultZone = "block"

// Firewalld attaches address sets as sources of a drop zone through
// firewall-cmd. Changes are made permanent and followed by one reload,
// scoped to the single source change, so unrelated runtime state is not
// rebuilt more often than necessary.
type Firewalld struct {
	runner runner.CommandRunner
	zone   string
}

func (f *Firewalld) Name() string { return "firewalld" }

func (f *Firewalld) zoneName() string {
	if f.zone == "" {
		return DefaultZone
	}
	return f.zone
}

func sourceArg(setName string) string {
	return "ipset:" + setName
}

// Available checks the daemon is actually running, not just that the
// binary exists; firewall-cmd without firewalld is useless.
func (f *Firewalld) Available() error {
	out, err := f.runner.Output("firewall-cmd", "--state")
	if err != nil {
		return fmt.Errorf("%w: firewalld: %v", runner.ErrUnavailable, err)
	}
	if strings.TrimSpace(string(out)) != "running" {
		return fmt.Errorf("%w: firewalld is not running", runner.ErrUnavailable)
	}
	return nil
}

// Installed queries the permanent configuration; that is what install
// and remove mutate.
func (f *Firewalld) Installed(b Binding) (bool, error) {
	err := f.runner.Run("firewall-cmd", "--permanent", "--zone="+f.zoneName(),
		"--query-source="+sourceArg(b.Set.Name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, runner.ErrUnavailable) {
		return false, err
	}
	// query-source exits nonzero when the source is absent.
	return false, nil
}

func (f *Firewalld) InstallCmds(b Binding) []runner.Cmd {
	return []runner.Cmd{
		{Name: "firewall-cmd", Args: []string{"--permanent", "--zone=" + f.zoneName(), "--add-source=" + sourceArg(b.Set.Name)}},
		{Name: "firewall-cmd", Args: []string{"--reload"}},
	}
}

func (f *Firewalld) RemoveCmds(b Binding) []runner.Cmd {
	return []runner.Cmd{
		{Name: "firewall-cmd", Args: []string{"--permanent", "--zone=" + f.zoneName(), "--remove-source=" + sourceArg(b.Set.Name)}},
		{Name: "firewall-cmd", Args: []string{"--reload"}},
	}
}
