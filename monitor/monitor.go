package monitor

import (
	"context"
	"time"

	"github.com/42wim/dnsmon/check"
	"github.com/42wim/dnsmon/scan"
	"github.com/42wim/dnsmon/structs"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

var (
	ErrLocalQuery     = errors.New("local query failed")
	ErrNotInitialized = errors.New("monitor not initialized")
)

func SetDebug(debug bool) {
	if debug {
		log.Level = logrus.DebugLevel
	}
}

type State int

const (
	StateInit State = iota
	StatePolling
	StateSuccess
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StatePolling:
		return "polling"
	case StateSuccess:
		return "success"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	}

	return "unknown"
}

type Runner interface {
	Run(ctx context.Context, q structs.Question, t scan.Targets, timeout time.Duration) *structs.QueryResult
	QueryLocal(ctx context.Context, q structs.Question, timeout time.Duration) structs.Outcome
}

type Resolver interface {
	FindAuthorities(ctx context.Context, name string) (structs.AuthorityMap, error)
	FindParentAuthorities(ctx context.Context, name string) (structs.AuthorityMap, error)
}

// Status is emitted once per cycle.
type Status struct {
	Time    time.Time
	Result  *structs.QueryResult
	Verdict check.Verdict
	State   structs.MonitorState
}

type Reporter interface {
	Authorities(zone string, m structs.AuthorityMap)
	Baseline(a structs.AnswerSet)
	Status(s Status)
	Waiting(d time.Duration)
	Done(r Result)
}

type Config struct {
	Question   structs.Question
	Mode       check.Mode
	Additional []structs.ServerRef
	// Interval 0 runs a single pass.
	Interval      time.Duration
	StopOnSuccess bool
	Timeout       time.Duration
	// Refresh re-discovers authorities when this much time has passed.
	Refresh time.Duration
}

type Result struct {
	State        State
	Cycles       int
	LastVerdict  check.Verdict
	MonitorState structs.MonitorState
}

type Monitor struct {
	cfg      Config
	policy   check.Policy
	runner   Runner
	resolver Resolver
	reporter Reporter

	state  State
	ms     structs.MonitorState
	last   check.Verdict
	auth   structs.AuthorityMap
	authAt time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config, policy check.Policy, runner Runner, resolver Resolver, reporter Reporter) *Monitor {
	if reporter == nil {
		reporter = nopReporter{}
	}

	return &Monitor{
		cfg:      cfg,
		policy:   policy,
		runner:   runner,
		resolver: resolver,
		reporter: reporter,
		now:      time.Now,
		sleep:    sleep,
	}
}

func (m *Monitor) State() State {
	return m.state
}

func (m *Monitor) Authorities() structs.AuthorityMap {
	return m.auth
}

// Init discovers the authorities the mode needs and captures the baseline
// for change detection. Any failure here is fatal.
func (m *Monitor) Init(ctx context.Context) error {
	if m.cfg.Mode.Authorities() != check.ScopeNone {
		auth, zone, err := m.findAuthorities(ctx)
		if err != nil {
			m.state = StateFailed
			return err
		}

		m.setAuthorities(zone, auth)
	}

	if b, ok := m.policy.(check.Baseliner); ok {
		o := m.runner.QueryLocal(ctx, m.cfg.Question, m.cfg.Timeout)
		if !o.OK() {
			m.state = StateFailed
			return errors.Wrapf(ErrLocalQuery, "%s at %s: %s", m.cfg.Question, o.Server.ID(), o.Failure)
		}

		b.SetBaseline(o.Answer)
		m.ms.Baseline = b.Baseline()
		m.reporter.Baseline(*m.ms.Baseline)
	}

	m.state = StatePolling

	return nil
}

func (m *Monitor) findAuthorities(ctx context.Context) (structs.AuthorityMap, string, error) {
	name := m.cfg.Question.Name

	if m.cfg.Mode.Authorities() == check.ScopeParent {
		auth, err := m.resolver.FindParentAuthorities(ctx, name)
		return auth, "parent of " + name, err
	}

	auth, err := m.resolver.FindAuthorities(ctx, name)

	return auth, name, err
}

func (m *Monitor) setAuthorities(zone string, auth structs.AuthorityMap) {
	m.auth = auth
	m.authAt = m.now()
	m.reporter.Authorities(zone, auth)
}

func (m *Monitor) refresh(ctx context.Context) {
	if m.cfg.Refresh <= 0 || m.cfg.Mode.Authorities() == check.ScopeNone {
		return
	}

	if m.now().Sub(m.authAt) < m.cfg.Refresh {
		return
	}

	auth, zone, err := m.findAuthorities(ctx)
	if err != nil {
		log.Warnf("Refreshing authorities failed, keeping previous set: %s", err)

		m.authAt = m.now()

		return
	}

	log.Debugf("Refreshed authorities for %s", zone)

	m.setAuthorities(zone, auth)
}

func (m *Monitor) targets() scan.Targets {
	return scan.Targets{
		OmitLocal:   !m.cfg.Mode.UsesLocal(),
		Authorities: m.auth,
		Additional:  m.cfg.Additional,
	}
}

// Run polls until the policy passes with StopOnSuccess set, a single pass is
// done or ctx is cancelled. Queries of a started cycle are never cancelled.
func (m *Monitor) Run(ctx context.Context) (Result, error) {
	if m.state != StatePolling {
		return Result{State: m.state}, ErrNotInitialized
	}

	for m.state == StatePolling {
		if ctx.Err() != nil {
			m.state = StateCancelled
			break
		}

		m.refresh(ctx)
		m.cycle(ctx)

		switch {
		case m.last.Pass && m.cfg.StopOnSuccess:
			m.state = StateSuccess
		case m.cfg.Interval == 0 && m.last.Pass:
			m.state = StateSuccess
		case m.cfg.Interval == 0:
			m.state = StateFailed
		case ctx.Err() != nil:
			m.state = StateCancelled
		}

		if m.state != StatePolling {
			break
		}

		m.reporter.Waiting(m.cfg.Interval)

		if err := m.sleep(ctx, m.cfg.Interval); err != nil {
			m.state = StateCancelled
		}
	}

	r := Result{
		State:        m.state,
		Cycles:       m.ms.Cycles,
		LastVerdict:  m.last,
		MonitorState: m.ms,
	}

	m.reporter.Done(r)

	return r, nil
}

func (m *Monitor) cycle(ctx context.Context) {
	res := m.runner.Run(context.WithoutCancel(ctx), m.cfg.Question, m.targets(), m.cfg.Timeout)
	v := m.policy.Evaluate(res)
	now := m.now()

	m.ms.Cycles++

	if v.Pass {
		m.ms.LastOK = now
		m.ms.ConsecutiveFailures = 0
	} else {
		m.ms.ConsecutiveFailures++
	}

	m.last = v

	log.Debugf("Cycle %d of %s: pass=%v", m.ms.Cycles, m.policy.Name(), v.Pass)

	m.reporter.Status(Status{
		Time:    now,
		Result:  res,
		Verdict: v,
		State:   m.ms,
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type nopReporter struct{}

func (nopReporter) Authorities(string, structs.AuthorityMap) {}
func (nopReporter) Baseline(structs.AnswerSet)               {}
func (nopReporter) Status(Status)                            {}
func (nopReporter) Waiting(time.Duration)                    {}
func (nopReporter) Done(Result)                              {}
