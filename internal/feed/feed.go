// Package feed turns the raw iptoasn.com IP-to-ASN datasets into
// canonical per-ASN prefix sets. A Snapshot is built once per update,
// cached on disk, and read-only afterwards; the next update supersedes
// it rather than merging into it.
package feed

import (
	"net/netip"
	"sort"
	"time"
)

// Family identifies the address family of a dataset, set or rule.
type Family string

const (
	FamilyV4 Family = "v4"
	FamilyV6 Family = "v6"
)

// Families lists both families in canonical order (v4 first, like the
// upstream dataset pair).
var Families = []Family{FamilyV4, FamilyV6}

// Valid reports whether f is one of the two known families.
func (f Family) Valid() bool {
	return f == FamilyV4 || f == FamilyV6
}

// Record is one decoded dataset row: an inclusive IP range announced by
// an ASN. ASN 0 marks unrouted space.
type Record struct {
	Start netip.Addr
	End   netip.Addr
	ASN   uint32
	Name  string
}

// Stats counts the outcome of a dataset decode. Malformed rows are
// skipped and counted, never fatal on their own.
type Stats struct {
	Total   int
	Valid   int
	Skipped int
}

// Snapshot is the normalized form of one downloaded dataset: a mapping
// from ASN to its minimal CIDR blocks, tagged with family and fetch time.
type Snapshot struct {
	family    Family
	fetchedAt time.Time
	prefixes  map[uint32][]netip.Prefix
	names     map[uint32]string
}

// Family returns the snapshot's address family.
func (s *Snapshot) Family() Family { return s.family }

// FetchedAt returns when the underlying dataset was fetched.
func (s *Snapshot) FetchedAt() time.Time { return s.fetchedAt }

// Len returns the number of ASNs with at least one prefix.
func (s *Snapshot) Len() int { return len(s.prefixes) }

// Lookup returns the ASN's prefix set and whether the ASN appears in the
// snapshot at all. An empty-but-present result is possible in theory and
// is not an error; see the engine's not-found handling.
func (s *Snapshot) Lookup(asn uint32) ([]netip.Prefix, bool) {
	p, ok := s.prefixes[asn]
	return p, ok
}

// PrefixStrings returns the ASN's prefixes in canonical CIDR notation.
func (s *Snapshot) PrefixStrings(asn uint32) []string {
	prefixes, ok := s.prefixes[asn]
	if !ok {
		return nil
	}
	out := make([]string, len(prefixes))
	for i, p := range prefixes {
		out[i] = p.String()
	}
	return out
}

// ASNName returns the AS description from the dataset, if any.
func (s *Snapshot) ASNName(asn uint32) string {
	return s.names[asn]
}

// FindIP returns the ASN announcing addr and the matching prefix.
// Linear over ASNs; used by the lookup command, not by reconciliation.
func (s *Snapshot) FindIP(addr netip.Addr) (uint32, netip.Prefix, bool) {
	for asn, prefixes := range s.prefixes {
		for _, p := range prefixes {
			if p.Contains(addr) {
				return asn, p, true
			}
		}
	}
	return 0, netip.Prefix{}, false
}

// ASNs returns all ASNs in the snapshot in ascending order.
func (s *Snapshot) ASNs() []uint32 {
	out := make([]uint32, 0, len(s.prefixes))
	for asn := range s.prefixes {
		out = append(out, asn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
