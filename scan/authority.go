package scan

import (
	"context"
	"net"

	"github.com/42wim/dnsmon/structs"
	"github.com/miekg/dns"
	"github.com/pkg/errors"
)

var (
	ErrNoAuthorityFound = errors.New("no authoritative nameserver found")
	ErrNameDoesNotExist = errors.New("name does not exist")
	ErrDelegationWalk   = errors.New("delegation walk failed")
)

type walk struct {
	s      *Scan
	server structs.ServerRef
	rd     bool
	nsset  []string
	soa    *dns.SOA
	// addrs caches NS name lookups, including misses.
	addrs map[string][]net.IP
}

// FindAuthorities walks the delegation chain from the root down to name and
// returns the nameservers currently authoritative for it.
func (s *Scan) FindAuthorities(ctx context.Context, name string) (structs.AuthorityMap, error) {
	w := &walk{
		s:     s,
		addrs: make(map[string][]net.IP),
	}

	if s.WalkStart != "" {
		w.server = structs.ServerRef{Address: s.WalkStart}
	} else {
		w.server = s.local[0]
		w.rd = true
	}

	if err := w.run(ctx, dns.Fqdn(name)); err != nil {
		return nil, err
	}

	return w.authorities(ctx)
}

// FindParentAuthorities finds the nameservers of the zone one label above
// name, where DS records for name live.
func (s *Scan) FindParentAuthorities(ctx context.Context, name string) (structs.AuthorityMap, error) {
	return s.FindAuthorities(ctx, getParentDomain(dns.Fqdn(name)))
}

func (w *walk) run(ctx context.Context, name string) error {
	for _, zone := range zones(name) {
		in, _, err := w.s.exchange(ctx, zone, dns.TypeNS, w.server, w.rd, w.s.LookupTimeout)
		if err != nil {
			return errors.Wrapf(ErrDelegationWalk, "%s NS at %s: %s", zone, w.server, err)
		}

		switch in.Rcode {
		case dns.RcodeSuccess:
		case dns.RcodeNameError:
			return errors.Wrapf(ErrNameDoesNotExist, "%s at %s", zone, w.server)
		default:
			return errors.Wrapf(ErrDelegationWalk, "%s NS at %s: %s", zone, w.server, dns.RcodeToString[in.Rcode])
		}

		if soa := findSOA(in); soa != nil {
			log.Debugf("%s is authoritative for %s", w.server, zone)
			w.soa = soa

			return nil
		}

		rrset := extractRR(append(append([]dns.RR{}, in.Answer...), in.Ns...), dns.TypeNS)
		if len(rrset) == 0 {
			log.Debugf("No delegation for %s at %s", zone, w.server)
			continue
		}

		w.nsset = w.nsset[:0]
		for _, rr := range rrset {
			w.nsset = append(w.nsset, dns.CanonicalName(rr.(*dns.NS).Ns))
		}

		w.glue(in.Extra)

		if (in.Authoritative && len(in.Answer) > 0) || w.names(w.server.Name) {
			continue
		}

		next, ok := w.pick(ctx)
		if !ok {
			return errors.Wrapf(ErrDelegationWalk, "cannot resolve any nameserver of %s", zone)
		}

		log.Debugf("Following delegation of %s to %s", zone, next)

		w.server = next
		w.rd = false
	}

	return nil
}

func (w *walk) names(name string) bool {
	if name == "" {
		return false
	}

	for _, ns := range w.nsset {
		if ns == name {
			return true
		}
	}

	return false
}

func (w *walk) glue(extra []dns.RR) {
	for _, rr := range extractRR(extra, dns.TypeA) {
		owner := dns.CanonicalName(rr.Header().Name)
		if !w.names(owner) {
			continue
		}

		ip := rr.(*dns.A).A
		if !containsIP(w.addrs[owner], ip) {
			w.addrs[owner] = append(w.addrs[owner], ip)
		}
	}
}

func containsIP(ips []net.IP, ip net.IP) bool {
	for _, i := range ips {
		if i.Equal(ip) {
			return true
		}
	}

	return false
}

func (w *walk) pick(ctx context.Context) (structs.ServerRef, bool) {
	for _, ns := range w.nsset {
		if ips := w.resolve(ctx, ns); len(ips) > 0 {
			return structs.ServerRef{Name: ns, Address: ips[0].String()}, true
		}
	}

	return structs.ServerRef{}, false
}

// resolve returns the IPv4 addresses of an NS name, from glue or from a single
// lookup through the local resolvers.
func (w *walk) resolve(ctx context.Context, ns string) []net.IP {
	if ips, ok := w.addrs[ns]; ok {
		return ips
	}

	var ips []net.IP

	for _, server := range w.s.local {
		in, _, err := w.s.exchange(ctx, ns, dns.TypeA, server, true, w.s.LookupTimeout)
		if err != nil {
			log.Debugf("Lookup of %s at %s failed: %s", ns, server, err)
			continue
		}

		ips = extractIP(extractRR(in.Answer, dns.TypeA))

		break
	}

	w.addrs[ns] = ips

	return ips
}

func (w *walk) authorities(ctx context.Context) (structs.AuthorityMap, error) {
	auth := make(structs.AuthorityMap)

	for _, ns := range w.nsset {
		ips := w.resolve(ctx, ns)
		if len(ips) == 0 {
			log.Warnf("Cannot resolve address of nameserver %s, skipping", ns)
			continue
		}

		auth[ns] = ips
	}

	if len(w.nsset) == 0 && w.soa != nil {
		name := w.server.Name
		if name == "" {
			name = dns.CanonicalName(w.soa.Ns)
		}

		if ip := net.ParseIP(hostOnly(w.server.Address)); ip != nil {
			auth[name] = []net.IP{ip}
		}
	}

	if len(auth) == 0 {
		return nil, ErrNoAuthorityFound
	}

	return auth, nil
}

func findSOA(in *dns.Msg) *dns.SOA {
	rrset := extractRR(append(append([]dns.RR{}, in.Answer...), in.Ns...), dns.TypeSOA)
	if len(rrset) == 0 {
		return nil
	}

	return rrset[0].(*dns.SOA)
}
