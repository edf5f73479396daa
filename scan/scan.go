package scan

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/42wim/dnsmon/structs"
	"github.com/miekg/dns"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var log = logrus.New()

const defaultResolvConf = "/etc/resolv.conf"

type Config struct {
	Debug       bool
	Concurrency int
	// LocalDNS overrides the resolvers from ResolvConf.
	LocalDNS   []string
	ResolvConf string
	// WalkStart is where the delegation walk begins. Empty means the first
	// local resolver.
	WalkStart string
	// LookupTimeout bounds every walk step and NS address lookup.
	LookupTimeout time.Duration
}

type Scan struct {
	*Config
	transport Transport
	local     []structs.ServerRef
}

// Targets is the set of servers a single Run queries besides the local
// resolver.
type Targets struct {
	OmitLocal   bool
	Authorities structs.AuthorityMap
	Additional  []structs.ServerRef
}

func SetDebug(debug bool) {
	if debug {
		log.Level = logrus.DebugLevel
	}
}

func New(cfg *Config, transport Transport) (*Scan, error) {
	s := &Scan{
		Config:    cfg,
		transport: transport,
	}

	SetDebug(cfg.Debug)

	if s.transport == nil {
		s.transport = NewTransport()
	}

	if s.LookupTimeout == 0 {
		s.LookupTimeout = 5 * time.Second
	}

	local, err := localServers(cfg)
	if err != nil {
		return nil, err
	}

	s.local = local

	return s, nil
}

func localServers(cfg *Config) ([]structs.ServerRef, error) {
	var servers []structs.ServerRef

	if len(cfg.LocalDNS) > 0 {
		for _, addr := range cfg.LocalDNS {
			servers = append(servers, structs.ServerRef{Address: addr})
		}

		return servers, nil
	}

	path := cfg.ResolvConf
	if path == "" {
		path = defaultResolvConf
	}

	cc, err := dns.ClientConfigFromFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading local resolvers from %s", path)
	}

	for _, server := range cc.Servers {
		servers = append(servers, structs.ServerRef{Address: net.JoinHostPort(server, cc.Port)})
	}

	if len(servers) == 0 {
		return nil, fmt.Errorf("no local resolvers in %s", path)
	}

	return servers, nil
}

// Local returns the local resolvers in the order they are tried.
func (s *Scan) Local() []structs.ServerRef {
	return s.local
}

func (s *Scan) exchange(ctx context.Context, name string, qtype uint16, server structs.ServerRef, rd bool, timeout time.Duration) (*dns.Msg, time.Duration, error) {
	m := prepMsg()
	m.RecursionDesired = rd
	m.Question[0] = dns.Question{
		Name:   dns.Fqdn(name),
		Qtype:  qtype,
		Qclass: dns.ClassINET,
	}

	log.Debugf("Asking %s about %s (%s)", server, name, dns.TypeToString[qtype])

	return s.transport.Exchange(ctx, m, server.HostPort(), timeout)
}

func (s *Scan) ask(ctx context.Context, q structs.Question, server structs.ServerRef, rd bool, timeout time.Duration) structs.Outcome {
	o := structs.Outcome{Server: server}

	in, rtt, err := s.exchange(ctx, q.Name, q.Qtype, server, rd, timeout)
	o.Rtt = rtt

	switch {
	case err != nil:
		o.Failure = classify(err)
		o.Err = err
	case in.Rcode == dns.RcodeNameError:
		o.Failure = structs.FailureNameError
	case in.Rcode != dns.RcodeSuccess:
		o.Failure = structs.FailureServer
		o.Err = fmt.Errorf("%s from %s", dns.RcodeToString[in.Rcode], server)
	default:
		o.Answer = structs.NewAnswerSet(in.Answer, q.Qtype)
		if o.Answer.Empty() {
			o.Failure = structs.FailureNoAnswer
		}
	}

	log.Debugf("%s answered %s: %s (%s)", server, q, o.Answer, o.Failure)

	return o
}

// askLocal tries the local resolvers in order until one of them answers.
// NXDOMAIN and empty answers count as answers.
func (s *Scan) askLocal(ctx context.Context, q structs.Question, timeout time.Duration) structs.Outcome {
	var o structs.Outcome

	for _, server := range s.local {
		o = s.ask(ctx, q, server, true, timeout)
		if o.Failure != structs.FailureTimeout && o.Failure != structs.FailureTransport {
			return o
		}
	}

	return o
}

// QueryLocal asks only the local resolvers.
func (s *Scan) QueryLocal(ctx context.Context, q structs.Question, timeout time.Duration) structs.Outcome {
	return s.askLocal(ctx, q, timeout)
}

// Run queries the local resolver, every authority and every additional server
// concurrently. A failing target never aborts the others.
func (s *Scan) Run(ctx context.Context, q structs.Question, t Targets, timeout time.Duration) *structs.QueryResult {
	authorities := t.Authorities.Servers()

	res := &structs.QueryResult{
		Question:    q,
		Authorities: make([]structs.Outcome, len(authorities)),
		Additional:  make([]structs.Outcome, len(t.Additional)),
	}

	var local structs.Outcome

	g := new(errgroup.Group)
	if s.Concurrency > 0 {
		g.SetLimit(s.Concurrency)
	}

	if !t.OmitLocal {
		g.Go(func() error {
			local = s.askLocal(ctx, q, timeout)
			return nil
		})
	}

	for i, server := range authorities {
		i, server := i, server

		g.Go(func() error {
			res.Authorities[i] = s.ask(ctx, q, server, false, timeout)
			return nil
		})
	}

	for i, server := range t.Additional {
		i, server := i, server

		g.Go(func() error {
			res.Additional[i] = s.ask(ctx, q, server, true, timeout)
			return nil
		})
	}

	// Workers record failures in their Outcome and never return an error;
	// the group is only used for its concurrency limit.
	_ = g.Wait()

	if !t.OmitLocal {
		res.Local = &local
		if d := diagnose("local server", local); d != "" {
			res.Diagnostics = append(res.Diagnostics, d)
		}
	}

	for _, o := range res.Authorities {
		if d := diagnose("authority", o); d != "" {
			res.Diagnostics = append(res.Diagnostics, d)
		}
	}

	answered := 0

	for _, o := range res.Additional {
		if o.OK() {
			answered++
		}

		if d := diagnose("additional DNS", o); d != "" {
			res.Diagnostics = append(res.Diagnostics, d)
		}
	}

	if len(res.Additional) > 0 && answered == 0 {
		res.Diagnostics = append(res.Diagnostics, "No additional DNS answers received!")
	}

	return res
}

func diagnose(kind string, o structs.Outcome) string {
	switch o.Failure {
	case structs.FailureNone:
		return ""
	case structs.FailureTimeout:
		if kind == "local server" {
			return fmt.Sprintf("Timed out on local server %s", o.Server.ID())
		}

		return fmt.Sprintf("Timed out on %s %s query", kind, o.Server.ID())
	case structs.FailureNameError:
		return fmt.Sprintf("%s %s returned NXDOMAIN", kind, o.Server.ID())
	case structs.FailureNoAnswer:
		return fmt.Sprintf("%s %s returned no records", kind, o.Server.ID())
	}

	return fmt.Sprintf("%s %s: %s: %v", kind, o.Server.ID(), o.Failure, o.Err)
}
