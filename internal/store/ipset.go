package store

import (
	"bufio"
	"fmt"
	"strings"

	"asnblock/internal/feed"
	"asnblock/internal/runner"
)

// IPSet drives the ipset tool. Sets are created as hash:net with the
// matching inet family; contents are replaced by staging into a
// temporary set and swapping, so rules matching the set never observe a
// half-filled state.
type IPSet struct {
	runner runner.CommandRunner
}

// NewIPSet creates an ipset-backed store.
func NewIPSet(r runner.CommandRunner) *IPSet {
	if r == nil {
		r = runner.DefaultCommandRunner
	}
	return &IPSet{runner: r}
}

func inetFamily(family feed.Family) string {
	if family == feed.FamilyV6 {
		return "inet6"
	}
	return "inet"
}

func stagingName(name string) string {
	return name + "-tmp"
}

// Probe checks for the set and parses its family from the header output.
func (s *IPSet) Probe(name string) (bool, feed.Family, error) {
	if !ValidSetName(name) {
		return false, "", fmt.Errorf("invalid set name: %s", name)
	}
	out, err := s.runner.Output("ipset", "list", name, "-t")
	if err != nil {
		if strings.Contains(err.Error(), "does not exist") {
			return false, "", nil
		}
		return false, "", err
	}

	sc := bufio.NewScanner(strings.NewReader(string(out)))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "Header:") {
			continue
		}
		if strings.Contains(line, "family inet6") {
			return true, feed.FamilyV6, nil
		}
		if strings.Contains(line, "family inet") {
			return true, feed.FamilyV4, nil
		}
	}
	// Header without a family field; report existence and let the caller
	// treat the family as unknown.
	return true, "", nil
}

// Contents lists the set's members.
func (s *IPSet) Contents(name string) ([]string, error) {
	if !ValidSetName(name) {
		return nil, fmt.Errorf("invalid set name: %s", name)
	}
	out, err := s.runner.Output("ipset", "list", name)
	if err != nil {
		return nil, err
	}

	var members []string
	inMembers := false
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "Members:" {
			inMembers = true
			continue
		}
		if inMembers && line != "" {
			// Entries may carry options after the address; the address is
			// always the first token.
			members = append(members, strings.Fields(line)[0])
		}
	}
	return members, nil
}

// EnsureCmds creates the set if it does not exist yet.
func (s *IPSet) EnsureCmds(name string, family feed.Family) []runner.Cmd {
	return []runner.Cmd{
		{Name: "ipset", Args: []string{"create", name, "hash:net", "family", inetFamily(family), "-exist"}},
	}
}

// ReplaceCmds stages the new contents into a scratch set and swaps it in.
// The swap is atomic from the kernel's point of view; rules referencing
// the set see either the old contents or the new, never a mixture.
func (s *IPSet) ReplaceCmds(name string, family feed.Family, cidrs []string) []runner.Cmd {
	staging := stagingName(name)

	var script strings.Builder
	fmt.Fprintf(&script, "flush %s\n", staging)
	for _, cidr := range cidrs {
		fmt.Fprintf(&script, "add %s %s\n", staging, cidr)
	}

	return []runner.Cmd{
		{Name: "ipset", Args: []string{"create", staging, "hash:net", "family", inetFamily(family), "-exist"}},
		{Name: "ipset", Args: []string{"restore", "-exist"}, Input: script.String()},
		{Name: "ipset", Args: []string{"swap", staging, name}},
		{Name: "ipset", Args: []string{"destroy", staging}},
	}
}

// Names lists every set name currently known to the kernel.
func (s *IPSet) Names() ([]string, error) {
	out, err := s.runner.Output("ipset", "list", "-n")
	if err != nil {
		return nil, err
	}
	var names []string
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// DestroyCmds removes the set.
func (s *IPSet) DestroyCmds(name string) []runner.Cmd {
	return []runner.Cmd{
		{Name: "ipset", Args: []string{"destroy", name}},
	}
}
