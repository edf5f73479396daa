package structs

import (
	"fmt"
	"net"
	"strings"

	"github.com/miekg/dns"
)

// NewAnswerSet keeps only records of qtype, so CNAME links in a recursive
// answer don't end up in the comparison.
func NewAnswerSet(rrset []dns.RR, qtype uint16) AnswerSet {
	var a AnswerSet

	first := true

	for _, rr := range rrset {
		if rr.Header().Rrtype != qtype {
			continue
		}

		if first || rr.Header().Ttl < a.MinTTL {
			a.MinTTL = rr.Header().Ttl
			first = false
		}

		a.Values = append(a.Values, Normalize(rr))
	}

	return a
}

// Normalize returns the record data without owner, TTL, class and type.
func Normalize(rr dns.RR) string {
	switch rr := rr.(type) {
	case *dns.A:
		return rr.A.String()
	case *dns.AAAA:
		return rr.AAAA.String()
	case *dns.NS:
		return dns.CanonicalName(rr.Ns)
	case *dns.CNAME:
		return dns.CanonicalName(rr.Target)
	case *dns.PTR:
		return dns.CanonicalName(rr.Ptr)
	case *dns.DNAME:
		return dns.CanonicalName(rr.Target)
	case *dns.MX:
		return fmt.Sprintf("%d %s", rr.Preference, dns.CanonicalName(rr.Mx))
	case *dns.TXT:
		return strings.Join(rr.Txt, "")
	case *dns.SPF:
		return strings.Join(rr.Txt, "")
	}

	return strings.TrimSpace(strings.TrimPrefix(rr.String(), rr.Header().String()))
}

// NormalizeValue brings an operator supplied value into the form Normalize
// produces for the same record type.
func NormalizeValue(qtype uint16, value string) string {
	value = strings.TrimSpace(value)

	switch qtype {
	case dns.TypeA, dns.TypeAAAA:
		if ip := net.ParseIP(value); ip != nil {
			return ip.String()
		}
	case dns.TypeNS, dns.TypeCNAME, dns.TypePTR, dns.TypeDNAME:
		return dns.CanonicalName(value)
	case dns.TypeMX:
		fields := strings.Fields(value)
		if len(fields) == 2 {
			return fields[0] + " " + dns.CanonicalName(fields[1])
		}
	case dns.TypeTXT, dns.TypeSPF:
		return strings.Trim(value, `"`)
	}

	return strings.Join(strings.Fields(value), " ")
}

// ParseExpected splits a comma separated list of values. TXT and SPF data
// may contain commas, so their value is taken as a single record.
func ParseExpected(qtype uint16, value string) AnswerSet {
	var a AnswerSet

	values := strings.Split(value, ",")
	if qtype == dns.TypeTXT || qtype == dns.TypeSPF {
		values = []string{value}
	}

	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}

		a.Values = append(a.Values, NormalizeValue(qtype, v))
	}

	return a
}
