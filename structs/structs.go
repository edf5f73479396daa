package structs

import (
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/ammario/ipisp"
	"github.com/miekg/dns"
)

type Question struct {
	Name  string
	Qtype uint16
}

// NewQuestion accepts a type mnemonic like "A" or "dnskey".
func NewQuestion(name, rrtype string) (Question, error) {
	qtype, ok := dns.StringToType[strings.ToUpper(strings.TrimSpace(rrtype))]
	if !ok {
		return Question{}, fmt.Errorf("cannot query for unknown RR-type '%s'", rrtype)
	}

	if strings.TrimSpace(name) == "" {
		return Question{}, fmt.Errorf("no host to query")
	}

	return Question{Name: dns.Fqdn(strings.TrimSpace(name)), Qtype: qtype}, nil
}

func (q Question) Type() string {
	return dns.TypeToString[q.Qtype]
}

func (q Question) String() string {
	return q.Name + " " + q.Type()
}

// AnswerSet keeps response order for display, comparison ignores it.
type AnswerSet struct {
	Values []string
	MinTTL uint32
}

func (a AnswerSet) Empty() bool {
	return len(a.Values) == 0
}

func (a AnswerSet) Sorted() []string {
	out := append([]string{}, a.Values...)
	sort.Strings(out)

	return out
}

func (a AnswerSet) String() string {
	if a.Empty() {
		return "(empty)"
	}

	return strings.Join(a.Values, ", ")
}

func (a AnswerSet) set() map[string]bool {
	m := make(map[string]bool, len(a.Values))
	for _, v := range a.Values {
		m[v] = true
	}

	return m
}

func (a AnswerSet) Equal(b AnswerSet) bool {
	ma, mb := a.set(), b.set()
	if len(ma) != len(mb) {
		return false
	}

	for v := range ma {
		if !mb[v] {
			return false
		}
	}

	return true
}

type ServerRef struct {
	Name    string
	Address string
}

func (s ServerRef) ID() string {
	if s.Name != "" {
		return s.Name
	}

	return s.Address
}

func (s ServerRef) HostPort() string {
	if _, _, err := net.SplitHostPort(s.Address); err == nil {
		return s.Address
	}

	return net.JoinHostPort(s.Address, "53")
}

func (s ServerRef) String() string {
	if s.Name != "" && s.Address != "" {
		return fmt.Sprintf("%s (%s)", s.Name, s.Address)
	}

	return s.ID()
}

type AuthorityMap map[string][]net.IP

// Servers returns one ServerRef per authority, using its first address.
func (m AuthorityMap) Servers() []ServerRef {
	names := make([]string, 0, len(m))
	for name, ips := range m {
		if len(ips) > 0 {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	servers := make([]ServerRef, 0, len(names))
	for _, name := range names {
		servers = append(servers, ServerRef{Name: name, Address: m[name][0].String()})
	}

	return servers
}

type Failure int

const (
	FailureNone Failure = iota
	FailureTimeout
	FailureNoAnswer
	FailureNameError
	FailureServer
	FailureTransport
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "ok"
	case FailureTimeout:
		return "timeout"
	case FailureNoAnswer:
		return "no answer"
	case FailureNameError:
		return "NXDOMAIN"
	case FailureServer:
		return "server failure"
	case FailureTransport:
		return "transport error"
	}

	return "unknown"
}

type Outcome struct {
	Server  ServerRef
	Answer  AnswerSet
	Failure Failure
	Err     error
	Rtt     time.Duration
}

func (o Outcome) OK() bool {
	return o.Failure == FailureNone
}

type QueryResult struct {
	Question    Question
	Local       *Outcome
	Authorities []Outcome
	Additional  []Outcome
	Diagnostics []string
}

// LocalTTL is the lowest TTL seen in the local answer, the soonest a change can show up.
func (r *QueryResult) LocalTTL() (uint32, bool) {
	if r.Local == nil || !r.Local.OK() {
		return 0, false
	}

	return r.Local.Answer.MinTTL, true
}

// Remote returns authority outcomes followed by additional server outcomes.
func (r *QueryResult) Remote() []Outcome {
	out := make([]Outcome, 0, len(r.Authorities)+len(r.Additional))
	out = append(out, r.Authorities...)

	return append(out, r.Additional...)
}

type MonitorState struct {
	LastOK              time.Time
	Baseline            *AnswerSet
	ConsecutiveFailures int
	Cycles              int
}

type IPInfo struct {
	IP  net.IP
	Loc string
	ASN ipisp.ASN
	ISP string
}
