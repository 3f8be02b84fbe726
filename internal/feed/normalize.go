package feed

import (
	"bufio"
	"errors"
	"io"
	"net/netip"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrFeedCorrupt indicates the dataset produced zero valid records.
// Callers must keep the previous cached snapshot and abort the update.
var ErrFeedCorrupt = errors.New("feed corrupt: no valid records")

// Normalize parses a raw iptoasn TSV dataset for one address family and
// collapses each ASN's ranges into minimal, non-overlapping CIDR blocks.
// Rows are "start<TAB>end<TAB>asn[<TAB>country<TAB>name]". Malformed rows
// (bad IP, wrong family, non-numeric ASN, start > end) are skipped and
// counted. ASN 0 rows mark unrouted space and yield no snapshot entry.
func Normalize(r io.Reader, family Family, fetchedAt time.Time) (*Snapshot, Stats, error) {
	var stats Stats

	type rng struct{ start, end netip.Addr }
	ranges := make(map[uint32][]rng)
	names := make(map[uint32]string)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		stats.Total++

		rec, ok := parseRow(line, family)
		if !ok {
			stats.Skipped++
			continue
		}
		stats.Valid++

		if rec.ASN == 0 {
			continue
		}
		ranges[rec.ASN] = append(ranges[rec.ASN], rng{start: rec.Start, end: rec.End})
		if rec.Name != "" {
			names[rec.ASN] = rec.Name
		}
	}
	if err := sc.Err(); err != nil {
		return nil, stats, err
	}
	if stats.Valid == 0 {
		return nil, stats, ErrFeedCorrupt
	}

	prefixes := make(map[uint32][]netip.Prefix, len(ranges))
	for asn, rs := range ranges {
		sort.Slice(rs, func(i, j int) bool { return rs[i].start.Less(rs[j].start) })

		// Merge overlapping and adjacent ranges before decomposition so
		// the resulting block list is minimal.
		merged := []rng{rs[0]}
		for _, cur := range rs[1:] {
			last := &merged[len(merged)-1]
			if cur.start.Compare(last.end) <= 0 || contiguous(last.end, cur.start) {
				if last.end.Less(cur.end) {
					last.end = cur.end
				}
				continue
			}
			merged = append(merged, cur)
		}

		var blocks []netip.Prefix
		for _, m := range merged {
			ps, err := RangeToPrefixes(m.start, m.end)
			if err != nil {
				continue
			}
			blocks = append(blocks, ps...)
		}
		sortPrefixes(blocks)
		prefixes[asn] = blocks
	}

	return &Snapshot{
		family:    family,
		fetchedAt: fetchedAt,
		prefixes:  prefixes,
		names:     names,
	}, stats, nil
}

func parseRow(line string, family Family) (Record, bool) {
	fields := strings.Split(line, "\t")
	if len(fields) < 3 {
		return Record{}, false
	}

	start, err := netip.ParseAddr(strings.TrimSpace(fields[0]))
	if err != nil {
		return Record{}, false
	}
	end, err := netip.ParseAddr(strings.TrimSpace(fields[1]))
	if err != nil {
		return Record{}, false
	}
	asn64, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 32)
	if err != nil {
		return Record{}, false
	}

	wantV4 := family == FamilyV4
	if start.Is4() != wantV4 || end.Is4() != wantV4 {
		return Record{}, false
	}
	if end.Less(start) {
		return Record{}, false
	}

	rec := Record{Start: start, End: end, ASN: uint32(asn64)}
	if len(fields) >= 5 {
		rec.Name = strings.TrimSpace(fields[4])
	}
	return rec, true
}

// contiguous reports whether b immediately follows a.
func contiguous(a, b netip.Addr) bool {
	next := a.Next()
	return next.IsValid() && next == b
}

func sortPrefixes(ps []netip.Prefix) {
	sort.Slice(ps, func(i, j int) bool {
		if c := ps[i].Addr().Compare(ps[j].Addr()); c != 0 {
			return c < 0
		}
		return ps[i].Bits() < ps[j].Bits()
	})
}
