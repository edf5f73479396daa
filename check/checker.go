package check

import (
	"fmt"
	"strings"

	"github.com/42wim/dnsmon/structs"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func SetDebug(debug bool) {
	if debug {
		log.Level = logrus.DebugLevel
	}
}

// Policy decides whether one QueryResult is the state the operator waits for.
type Policy interface {
	Name() string
	Evaluate(r *structs.QueryResult) Verdict
}

// Baseliner is a Policy comparing against a local answer captured once
// before polling starts.
type Baseliner interface {
	Policy
	SetBaseline(structs.AnswerSet)
	Baseline() *structs.AnswerSet
}

type Verdict struct {
	Pass     bool
	Messages []string
	OK       []string
	// NoAnswer lists servers that did not answer. They never decide Pass.
	NoAnswer []string
	Summary  Summary
}

type Mismatch struct {
	Server     structs.ServerRef
	Additional bool
	Got        structs.AnswerSet
}

// Summary is the fold of all per-server outcomes of one cycle.
type Summary struct {
	Total      int
	Answered   int
	Matched    int
	Mismatches []Mismatch
	NoAnswer   []string
}

func (v Verdict) String() string {
	if v.Pass {
		return "ok"
	}

	return strings.Join(v.Messages, "\n")
}

type Report struct {
	Type   string
	Result []ReportResult
}

type ReportResult struct {
	Result string
	Status bool
}

// Report renders the verdict as OK/WARN/FAIL lines, ok lines only when verbose.
func (v Verdict) Report(name string, verbose bool) Report {
	r := Report{Type: name}

	if verbose {
		for _, line := range v.OK {
			r.Result = append(r.Result, ReportResult{Result: fmt.Sprintf("OK  : %s", line), Status: true})
		}
	}

	for _, line := range v.NoAnswer {
		r.Result = append(r.Result, ReportResult{Result: fmt.Sprintf("WARN: %s", line), Status: true})
	}

	for _, line := range v.Messages {
		r.Result = append(r.Result, ReportResult{Result: fmt.Sprintf("FAIL: %s", line)})
	}

	return r
}

func (r Report) String() string {
	var sb strings.Builder

	for _, res := range r.Result {
		sb.WriteString(res.Result)
		sb.WriteString("\n")
	}

	return sb.String()
}

type Mode int

const (
	ModeLocalExpected Mode = iota + 1
	ModeLocalChange
	ModeAuthorityMatchesLocal
	ModeRemoteExpected
	ModeParentMatchesLocal
)

func (m Mode) String() string {
	switch m {
	case ModeLocalExpected:
		return "monitor-local-expected"
	case ModeLocalChange:
		return "monitor-local-change"
	case ModeAuthorityMatchesLocal:
		return "match-authoritative-to-local"
	case ModeRemoteExpected:
		return "monitor-remote-expected"
	case ModeParentMatchesLocal:
		return "match-parent-authoritative-to-local"
	}

	return "unknown"
}

type Scope int

const (
	ScopeNone Scope = iota
	ScopeZone
	ScopeParent
)

// Authorities tells which authorities a mode compares against.
func (m Mode) Authorities() Scope {
	switch m {
	case ModeAuthorityMatchesLocal, ModeRemoteExpected:
		return ScopeZone
	case ModeParentMatchesLocal:
		return ScopeParent
	}

	return ScopeNone
}

func (m Mode) UsesLocal() bool {
	return m != ModeRemoteExpected
}

// New returns the policy for mode. expected is only used by the modes that
// compare against an operator supplied value.
func New(mode Mode, expected structs.AnswerSet) (Policy, error) {
	switch mode {
	case ModeLocalExpected:
		return NewExpectedValue(expected), nil
	case ModeLocalChange:
		return NewChangeDetected(), nil
	case ModeAuthorityMatchesLocal, ModeParentMatchesLocal:
		return &AuthorityMatchesLocal{name: mode.String()}, nil
	case ModeRemoteExpected:
		return NewAuthorityMatchesExpected(expected), nil
	}

	return nil, fmt.Errorf("unknown mode %d", mode)
}
