package check

import (
	"fmt"

	"github.com/42wim/dnsmon/structs"
)

// ChangeDetected waits for the local answer to differ from the one seen when
// monitoring started.
type ChangeDetected struct {
	baseline *structs.AnswerSet
}

func NewChangeDetected() *ChangeDetected {
	return &ChangeDetected{}
}

func (p *ChangeDetected) Name() string {
	return ModeLocalChange.String()
}

// SetBaseline only takes the first value, a baseline is never replaced.
func (p *ChangeDetected) SetBaseline(a structs.AnswerSet) {
	if p.baseline != nil {
		return
	}

	p.baseline = &a
}

func (p *ChangeDetected) Baseline() *structs.AnswerSet {
	return p.baseline
}

func (p *ChangeDetected) Evaluate(r *structs.QueryResult) Verdict {
	v := Verdict{Summary: Summary{Total: 1}}

	if p.baseline == nil {
		v.Messages = append(v.Messages, "No initial local result to compare with!")
		return v
	}

	if msg := localFailure(r); msg != "" {
		v.Messages = append(v.Messages, msg)
		v.Summary.NoAnswer = append(v.Summary.NoAnswer, localID(r))

		return v
	}

	v.Summary.Answered = 1

	if r.Local.Answer.Equal(*p.baseline) {
		v.Summary.Matched = 1
		v.Messages = append(v.Messages, fmt.Sprintf("Local result unchanged: %s", r.Local.Answer))

		return v
	}

	v.Summary.Mismatches = []Mismatch{{Server: r.Local.Server, Got: r.Local.Answer}}
	v.OK = append(v.OK, fmt.Sprintf("Local changed from %s to %s", p.baseline, r.Local.Answer))
	v.Pass = true

	return v
}
