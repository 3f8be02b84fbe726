// Package lookup answers "who announces this?" questions against the
// cached snapshots: by ASN, by address, or by hostname. It exists for
// operators deciding what to block, not for the reconciliation path.
package lookup

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"os"
	"path/filepath"

	"github.com/miekg/dns"
	"github.com/oschwald/geoip2-golang"

	"asnblock/internal/feed"
)

// Match is one resolved address with its announcing ASN.
type Match struct {
	Addr    netip.Addr
	ASN     uint32
	ASNName string
	Prefix  netip.Prefix
	Country string
	Found   bool
}

// Service resolves hostnames and matches addresses against snapshots.
type Service struct {
	snap4     *feed.Snapshot
	snap6     *feed.Snapshot
	countryDB *geoip2.Reader
	resolv    string
}

// New creates a lookup service over the given snapshots. geoipDir may
// name a directory holding GeoLite2-Country.mmdb; enrichment is skipped
// when the database is absent.
func New(snap4, snap6 *feed.Snapshot, geoipDir string) *Service {
	s := &Service{snap4: snap4, snap6: snap6, resolv: "/etc/resolv.conf"}
	if geoipDir != "" {
		path := filepath.Join(geoipDir, "GeoLite2-Country.mmdb")
		if _, err := os.Stat(path); err == nil {
			if db, err := geoip2.Open(path); err == nil {
				s.countryDB = db
			}
		}
	}
	return s
}

// Close releases the GeoIP database handle, if one was opened.
func (s *Service) Close() {
	if s.countryDB != nil {
		s.countryDB.Close()
	}
}

// MatchAddr finds the ASN announcing addr in the family's snapshot.
func (s *Service) MatchAddr(addr netip.Addr) Match {
	m := Match{Addr: addr}

	snap := s.snap4
	if addr.Is6() && !addr.Is4In6() {
		snap = s.snap6
	}
	if snap == nil {
		return s.enrich(m)
	}

	if asn, prefix, ok := snap.FindIP(addr.Unmap()); ok {
		m.ASN = asn
		m.ASNName = snap.ASNName(asn)
		m.Prefix = prefix
		m.Found = true
	}
	return s.enrich(m)
}

func (s *Service) enrich(m Match) Match {
	if s.countryDB == nil {
		return m
	}
	record, err := s.countryDB.Country(net.IP(m.Addr.Unmap().AsSlice()))
	if err == nil && record != nil {
		m.Country = record.Country.IsoCode
	}
	return m
}

// ResolveHost resolves host to its A and AAAA records using the
// system's configured nameserver.
func (s *Service) ResolveHost(ctx context.Context, host string) ([]netip.Addr, error) {
	cfg, _ := dns.ClientConfigFromFile(s.resolv)
	if cfg == nil || len(cfg.Servers) == 0 {
		cfg = &dns.ClientConfig{Servers: []string{"1.1.1.1"}, Port: "53", Timeout: 2}
	}
	server := net.JoinHostPort(cfg.Servers[0], cfg.Port)

	client := new(dns.Client)
	var addrs []netip.Addr
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(host), qtype)
		resp, _, err := client.ExchangeContext(ctx, msg, server)
		if err != nil || resp == nil || resp.Rcode != dns.RcodeSuccess {
			continue
		}
		for _, ans := range resp.Answer {
			switch rr := ans.(type) {
			case *dns.A:
				if a, ok := netip.AddrFromSlice(rr.A.To4()); ok {
					addrs = append(addrs, a)
				}
			case *dns.AAAA:
				if a, ok := netip.AddrFromSlice(rr.AAAA); ok {
					addrs = append(addrs, a)
				}
			}
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no addresses found for %s", host)
	}
	return addrs, nil
}
