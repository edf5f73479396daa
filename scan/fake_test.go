package scan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

type fakeKey struct {
	server string
	name   string
	qtype  uint16
}

type fakeReply struct {
	rcode  int
	aa     bool
	answer []dns.RR
	ns     []dns.RR
	extra  []dns.RR
	err    error
}

type fakeTimeout struct{}

func (fakeTimeout) Error() string   { return "i/o timeout" }
func (fakeTimeout) Timeout() bool   { return true }
func (fakeTimeout) Temporary() bool { return true }

// fakeTransport answers from a table keyed by (server, qname, qtype). Unknown
// keys time out.
type fakeTransport struct {
	mu      sync.Mutex
	replies map[fakeKey]fakeReply
	asked   []fakeKey
	rd      []bool
}

func newFake() *fakeTransport {
	return &fakeTransport{replies: make(map[fakeKey]fakeReply)}
}

func (f *fakeTransport) on(server, name string, qtype uint16, r fakeReply) *fakeTransport {
	f.replies[fakeKey{server, dns.CanonicalName(name), qtype}] = r
	return f
}

func (f *fakeTransport) Exchange(ctx context.Context, m *dns.Msg, server string, timeout time.Duration) (*dns.Msg, time.Duration, error) {
	q := m.Question[0]
	k := fakeKey{server, dns.CanonicalName(q.Name), q.Qtype}

	f.mu.Lock()
	f.asked = append(f.asked, k)
	f.rd = append(f.rd, m.RecursionDesired)
	r, ok := f.replies[k]
	f.mu.Unlock()

	if !ok {
		return nil, timeout, fakeTimeout{}
	}

	if r.err != nil {
		return nil, 0, r.err
	}

	out := new(dns.Msg)
	out.SetRcode(m, r.rcode)
	out.Authoritative = r.aa
	out.Answer = r.answer
	out.Ns = r.ns
	out.Extra = r.extra

	return out, time.Millisecond, nil
}

func (f *fakeTransport) count(server string, qtype uint16) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0

	for _, k := range f.asked {
		if (server == "" || k.server == server) && k.qtype == qtype {
			n++
		}
	}

	return n
}

func (f *fakeTransport) countName(name string, qtype uint16) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0

	for _, k := range f.asked {
		if k.name == name && k.qtype == qtype {
			n++
		}
	}

	return n
}

func rrs(t *testing.T, records ...string) []dns.RR {
	t.Helper()

	out := make([]dns.RR, 0, len(records))

	for _, s := range records {
		rr, err := dns.NewRR(s)
		require.NoError(t, err)

		out = append(out, rr)
	}

	return out
}

func newTestScan(t *testing.T, f Transport, cfg *Config) *Scan {
	t.Helper()

	if cfg == nil {
		cfg = &Config{}
	}

	if len(cfg.LocalDNS) == 0 {
		cfg.LocalDNS = []string{"127.0.0.53"}
	}

	s, err := New(cfg, f)
	require.NoError(t, err)

	return s
}
