// Package backend reconciles packet-drop rules against one of the
// supported firewall frontends. Each variant knows how to express "drop
// traffic matching address set X", how to detect whether that rule is
// already present, and how to take it back out. The engine picks exactly
// one variant per invocation and is otherwise backend-agnostic.
package backend

import (
	"fmt"

	"asnblock/internal/runner"
	"asnblock/internal/store"
)

// Binding associates one address set with the drop rule that should
// reference it. Prefixes carries the set's target contents for variants
// that cannot match on a named set and fall back to per-CIDR rules.
type Binding struct {
	Set      store.Set
	Prefixes []string
}

// Backend is one firewall frontend variant.
type Backend interface {
	// Name returns the variant name as used in configuration.
	Name() string

	// Available checks the frontend can be driven at all.
	Available() error

	// Installed reports whether the binding's drop rule is already in
	// place. The engine consults this before emitting install commands,
	// never trusting the frontend to deduplicate.
	Installed(b Binding) (bool, error)

	// InstallCmds returns the commands that add the drop rule.
	InstallCmds(b Binding) []runner.Cmd

	// RemoveCmds returns the commands that take the drop rule out.
	RemoveCmds(b Binding) []runner.Cmd
}

// Names lists the supported backend variants.
var Names = []string{"iptables", "firewalld", "ufw"}

// Select returns the named backend variant. The set of variants is
// closed; unknown names are a configuration error, not a probe failure.
func Select(name string, r runner.CommandRunner, zone string) (Backend, error) {
	if r == nil {
		r = runner.DefaultCommandRunner
	}
	switch name {
	case "iptables":
		return &IPTables{runner: r}, nil
	case "firewalld":
		return &Firewalld{runner: r, zone: zone}, nil
	case "ufw":
		return &UFW{runner: r}, nil
	}
	return nil, fmt.Errorf("unknown backend %q (expected one of %v)", name, Names)
}
