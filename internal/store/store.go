// Package store manages named address sets, the kernel-side containers
// the rule backends match against. The only implementation shells out to
// ipset; the interface exists so the engine and its tests never depend
// on a live kernel.
package store

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"asnblock/internal/feed"
	"asnblock/internal/runner"
)

// ErrFamilyMismatch indicates an existing set carries a different address
// family than the caller wants. The set is left untouched; destroying a
// set someone else created is never safe to do implicitly.
var ErrFamilyMismatch = errors.New("existing set has a different address family")

var validSetNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// ValidSetName reports whether name is safe to pass to the external tools.
func ValidSetName(name string) bool {
	return name != "" && len(name) <= 27 && validSetNameRegex.MatchString(name)
}

// Set is a handle to one named, family-tagged address set.
type Set struct {
	Name   string
	Family feed.Family
}

// SetName builds the canonical set name for an ASN and family,
// e.g. "ASN64500_v4".
func SetName(prefix string, asn uint32, family feed.Family) string {
	return fmt.Sprintf("%s%d_%s", prefix, asn, family)
}

// ParseSetName is the inverse of SetName. It reports false for names
// that were not produced by this tool under the given prefix.
func ParseSetName(prefix, name string) (uint32, feed.Family, bool) {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok {
		return 0, "", false
	}
	num, famStr, ok := strings.Cut(rest, "_")
	if !ok {
		return 0, "", false
	}
	family := feed.Family(famStr)
	if !family.Valid() {
		return 0, "", false
	}
	asn, err := strconv.ParseUint(num, 10, 32)
	if err != nil || asn == 0 {
		return 0, "", false
	}
	return uint32(asn), family, true
}

// Store abstracts the address-set tool. Read operations execute
// immediately; mutations are returned as commands so the engine can
// print them in dry-run mode and execute them unchanged in live mode.
type Store interface {
	// Probe reports whether the named set exists and, if so, its family.
	Probe(name string) (bool, feed.Family, error)

	// Contents returns the set's current members in tool output order.
	Contents(name string) ([]string, error)

	// EnsureCmds returns the commands that create the set if missing.
	EnsureCmds(name string, family feed.Family) []runner.Cmd

	// ReplaceCmds returns the commands that atomically replace the set's
	// contents with cidrs. The set must already exist.
	ReplaceCmds(name string, family feed.Family, cidrs []string) []runner.Cmd

	// DestroyCmds returns the commands that remove the set.
	DestroyCmds(name string) []runner.Cmd
}
