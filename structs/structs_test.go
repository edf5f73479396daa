package structs

import (
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()

	rr, err := dns.NewRR(s)
	require.NoError(t, err)

	return rr
}

func TestAnswerSetEqualIgnoresOrder(t *testing.T) {
	a := AnswerSet{Values: []string{"192.0.2.1", "192.0.2.2", "192.0.2.3"}}
	b := AnswerSet{Values: []string{"192.0.2.3", "192.0.2.1", "192.0.2.2"}}

	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))
	assert.Equal(t, "192.0.2.1, 192.0.2.2, 192.0.2.3", a.String())
	assert.Equal(t, []string{"192.0.2.3", "192.0.2.1", "192.0.2.2"}, b.Values, "display order kept")
}

func TestAnswerSetNotEqual(t *testing.T) {
	a := AnswerSet{Values: []string{"192.0.2.1"}}

	assert.False(t, a.Equal(AnswerSet{Values: []string{"192.0.2.2"}}))
	assert.False(t, a.Equal(AnswerSet{Values: []string{"192.0.2.1", "192.0.2.2"}}))
	assert.False(t, a.Equal(AnswerSet{}))
	assert.True(t, AnswerSet{}.Equal(AnswerSet{}))
}

func TestNewAnswerSet(t *testing.T) {
	rrset := []dns.RR{
		mustRR(t, "www.example.com. 300 IN CNAME example.com."),
		mustRR(t, "example.com. 120 IN A 93.184.216.34"),
		mustRR(t, "example.com. 60 IN A 93.184.216.35"),
	}

	a := NewAnswerSet(rrset, dns.TypeA)
	assert.Equal(t, []string{"93.184.216.34", "93.184.216.35"}, a.Values)
	assert.Equal(t, uint32(60), a.MinTTL)

	c := NewAnswerSet(rrset, dns.TypeCNAME)
	assert.Equal(t, []string{"example.com."}, c.Values)
	assert.Equal(t, uint32(300), c.MinTTL)
}

func TestNormalizeStripsHeader(t *testing.T) {
	a := mustRR(t, "example.com. 100 IN SOA ns.example.com. hostmaster.example.com. 1 2 3 4 5")
	b := mustRR(t, "example.com. 3600 IN SOA ns.example.com. hostmaster.example.com. 1 2 3 4 5")

	assert.Equal(t, Normalize(a), Normalize(b))
	assert.Equal(t, "ns.example.com. hostmaster.example.com. 1 2 3 4 5", Normalize(a))
	assert.Equal(t, "ns1.example.com.", Normalize(mustRR(t, "example.com. IN NS NS1.Example.COM.")))
	assert.Equal(t, "10 mx.example.com.", Normalize(mustRR(t, "example.com. IN MX 10 MX.example.com.")))
	assert.Equal(t, "v=spf1 -all", Normalize(mustRR(t, `example.com. IN TXT "v=spf1 -all"`)))
}

func TestParseExpected(t *testing.T) {
	a := ParseExpected(dns.TypeA, " 192.0.2.1 ,192.0.2.2,")
	assert.Equal(t, []string{"192.0.2.1", "192.0.2.2"}, a.Values)

	ns := ParseExpected(dns.TypeNS, "NS1.example.com")
	assert.Equal(t, []string{"ns1.example.com."}, ns.Values)

	mx := ParseExpected(dns.TypeMX, "10 mx.example.com")
	assert.True(t, mx.Equal(NewAnswerSet([]dns.RR{mustRR(t, "example.com. IN MX 10 mx.example.com.")}, dns.TypeMX)))

	txt := ParseExpected(dns.TypeTXT, `"v=spf1 -all"`)
	assert.Equal(t, []string{"v=spf1 -all"}, txt.Values)

	txt = ParseExpected(dns.TypeTXT, "v=DKIM1, k=rsa")
	assert.Equal(t, []string{"v=DKIM1, k=rsa"}, txt.Values)
	assert.True(t, txt.Equal(NewAnswerSet([]dns.RR{mustRR(t, `example.com. IN TXT "v=DKIM1, k=rsa"`)}, dns.TypeTXT)))

	spf := ParseExpected(dns.TypeSPF, `"v=spf1 a, mx -all"`)
	assert.True(t, spf.Equal(NewAnswerSet([]dns.RR{mustRR(t, `example.com. IN SPF "v=spf1 a, mx -all"`)}, dns.TypeSPF)))

	assert.Empty(t, ParseExpected(dns.TypeA, " , ").Values)
}

func TestNewQuestion(t *testing.T) {
	q, err := NewQuestion("example.com", "dnskey")
	require.NoError(t, err)
	assert.Equal(t, "example.com.", q.Name)
	assert.Equal(t, dns.TypeDNSKEY, q.Qtype)
	assert.Equal(t, "example.com. DNSKEY", q.String())

	_, err = NewQuestion("example.com", "BOGUS")
	assert.Error(t, err)

	_, err = NewQuestion(" ", "A")
	assert.Error(t, err)
}

func TestServerRef(t *testing.T) {
	s := ServerRef{Address: "192.0.2.53"}
	assert.Equal(t, "192.0.2.53", s.ID())
	assert.Equal(t, "192.0.2.53:53", s.HostPort())

	s = ServerRef{Name: "ns1.example.com.", Address: "127.0.0.1:5353"}
	assert.Equal(t, "ns1.example.com.", s.ID())
	assert.Equal(t, "127.0.0.1:5353", s.HostPort())
	assert.Equal(t, "ns1.example.com. (127.0.0.1:5353)", s.String())

	v6 := ServerRef{Address: "2001:db8::53"}
	assert.Equal(t, "[2001:db8::53]:53", v6.HostPort())
}

func TestAuthorityMapServers(t *testing.T) {
	m := AuthorityMap{
		"b.iana-servers.net.": {net.ParseIP("192.0.2.2"), net.ParseIP("192.0.2.3")},
		"a.iana-servers.net.": {net.ParseIP("192.0.2.1")},
		"lame.example.net.":   {},
	}

	assert.Equal(t, []ServerRef{
		{Name: "a.iana-servers.net.", Address: "192.0.2.1"},
		{Name: "b.iana-servers.net.", Address: "192.0.2.2"},
	}, m.Servers())
}

func TestQueryResultLocalTTL(t *testing.T) {
	r := &QueryResult{}
	_, ok := r.LocalTTL()
	assert.False(t, ok)

	r.Local = &Outcome{Failure: FailureTimeout}
	_, ok = r.LocalTTL()
	assert.False(t, ok)

	r.Local = &Outcome{Answer: AnswerSet{Values: []string{"x"}, MinTTL: 42}}
	ttl, ok := r.LocalTTL()
	assert.True(t, ok)
	assert.Equal(t, uint32(42), ttl)
}
