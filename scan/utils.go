package scan

import (
	"context"
	"net"

	"github.com/42wim/dnsmon/structs"
	"github.com/ammario/ipisp"
	"github.com/miekg/dns"
	"github.com/pkg/errors"
)

func prepMsg() *dns.Msg {
	m := new(dns.Msg)

	m.Id = dns.Id()
	m.RecursionDesired = true
	m.Question = make([]dns.Question, 1)

	return m
}

func extractIP(rrset []dns.RR) []net.IP {
	var ips []net.IP

	for _, rr := range rrset {
		switch rr := rr.(type) {
		case *dns.A:
			ips = append(ips, rr.A)
		case *dns.AAAA:
			ips = append(ips, rr.AAAA)
		}
	}

	return ips
}

func extractRR(rrset []dns.RR, qtypes ...uint16) []dns.RR {
	var out []dns.RR

	m := make(map[uint16]bool)

	for _, qtype := range qtypes {
		m[qtype] = true
	}

	for _, rr := range rrset {
		if _, ok := m[rr.Header().Rrtype]; ok {
			out = append(out, rr)
		}
	}

	return out
}

func getParentDomain(domain string) string {
	i, end := dns.NextLabel(domain, 0)
	if !end {
		return domain[i:]
	}

	return "."
}

// zones lists name and all its ancestors, root first.
func zones(name string) []string {
	name = dns.CanonicalName(name)
	out := []string{"."}

	if name == "." {
		return out
	}

	idx := dns.Split(name)
	for i := len(idx) - 1; i >= 0; i-- {
		out = append(out, name[idx[i]:])
	}

	return out
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var nerr net.Error

	return errors.As(err, &nerr) && nerr.Timeout()
}

func classify(err error) structs.Failure {
	if isTimeout(err) {
		return structs.FailureTimeout
	}

	return structs.FailureTransport
}

func hostOnly(address string) string {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return address
	}

	return host
}

// ASNInfo looks up origin AS, ISP and country of an authority address.
func ASNInfo(ip net.IP) (structs.IPInfo, error) {
	client, err := ipisp.NewDNSClient()
	if err != nil {
		return structs.IPInfo{}, err
	}
	defer client.Close()

	resp, err := client.LookupIP(ip)
	if err != nil {
		return structs.IPInfo{IP: ip}, errors.Wrapf(err, "asn lookup of %s", ip)
	}

	return structs.IPInfo{
		IP:  ip,
		Loc: resp.Country,
		ASN: resp.ASN,
		ISP: resp.Name.Raw,
	}, nil
}
