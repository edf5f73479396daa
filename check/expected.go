package check

import (
	"fmt"

	"github.com/42wim/dnsmon/structs"
)

// ExpectedValue waits for the local resolver to return the expected set.
type ExpectedValue struct {
	Expected structs.AnswerSet
}

func NewExpectedValue(expected structs.AnswerSet) *ExpectedValue {
	return &ExpectedValue{Expected: expected}
}

func (p *ExpectedValue) Name() string {
	return ModeLocalExpected.String()
}

func (p *ExpectedValue) Evaluate(r *structs.QueryResult) Verdict {
	v := Verdict{Summary: Summary{Total: 1}}

	if msg := localFailure(r); msg != "" {
		v.Messages = append(v.Messages, msg)
		v.Summary.NoAnswer = append(v.Summary.NoAnswer, localID(r))

		return v
	}

	v.Summary.Answered = 1

	if !r.Local.Answer.Equal(p.Expected) {
		v.Summary.Mismatches = []Mismatch{{Server: r.Local.Server, Got: r.Local.Answer}}
		v.Messages = append(v.Messages, fmt.Sprintf("Local not returning expected result! returned: %s, expected %s",
			r.Local.Answer, p.Expected))

		return v
	}

	v.Summary.Matched = 1
	v.OK = append(v.OK, fmt.Sprintf("Local ok. returned: %s", r.Local.Answer))
	v.Pass = true

	log.Debugf("%s: local matches %s", p.Name(), p.Expected)

	return v
}

func localID(r *structs.QueryResult) string {
	if r.Local == nil {
		return "local"
	}

	return fmt.Sprintf("%s (%s)", r.Local.Server.ID(), r.Local.Failure)
}
