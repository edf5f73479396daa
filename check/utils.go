package check

import (
	"fmt"

	"github.com/42wim/dnsmon/structs"
)

// localFailure returns the reason the local answer can't be used, if any.
func localFailure(r *structs.QueryResult) string {
	if r.Local == nil {
		return "Local server was not queried!"
	}

	switch r.Local.Failure {
	case structs.FailureNone:
		return ""
	case structs.FailureTimeout:
		return fmt.Sprintf("Timed out on local server %s", r.Local.Server.ID())
	case structs.FailureNoAnswer:
		return "No local answers received!"
	}

	return fmt.Sprintf("Local server %s failed: %s", r.Local.Server.ID(), r.Local.Failure)
}

func fold(s *Summary, target structs.AnswerSet, outcomes []structs.Outcome, additional bool) {
	for _, o := range outcomes {
		s.Total++

		if !o.OK() {
			s.NoAnswer = append(s.NoAnswer, fmt.Sprintf("%s (%s)", o.Server.ID(), o.Failure))
			continue
		}

		s.Answered++

		if o.Answer.Equal(target) {
			s.Matched++
			continue
		}

		s.Mismatches = append(s.Mismatches, Mismatch{Server: o.Server, Additional: additional, Got: o.Answer})
	}
}

// compareRemote folds authority and additional outcomes against target.
// against names the target in mismatch messages ("local", "expected").
func compareRemote(r *structs.QueryResult, target structs.AnswerSet, against string) Verdict {
	var v Verdict

	fold(&v.Summary, target, r.Authorities, false)
	fold(&v.Summary, target, r.Additional, true)

	s := v.Summary

	if len(r.Authorities) == 0 {
		v.Messages = append(v.Messages, "No authoritative servers to compare against!")
		return v
	}

	for _, m := range s.Mismatches {
		if m.Additional {
			v.Messages = append(v.Messages, fmt.Sprintf("Additional DNS %s fail! returned: %s", m.Server.ID(), m.Got))
			continue
		}

		v.Messages = append(v.Messages, fmt.Sprintf("Authority %s not returning %s result! returned: %s, expected %s",
			m.Server.ID(), against, m.Got, target))
	}

	noAuthority := len(r.Authorities) > 0 && !anyOK(r.Authorities)
	if noAuthority {
		v.Messages = append(v.Messages, "No authority answers received!")
	} else if s.Answered == 0 {
		v.Messages = append(v.Messages, "No additional DNS answers received!")
	}

	for _, o := range r.Remote() {
		switch {
		case !o.OK():
			v.NoAnswer = append(v.NoAnswer, fmt.Sprintf("%s no answer (%s)", o.Server.ID(), o.Failure))
		case o.Answer.Equal(target):
			v.OK = append(v.OK, fmt.Sprintf("%s ok. returned: %s", o.Server.ID(), o.Answer))
		}
	}

	v.Pass = s.Answered > 0 && !noAuthority && s.Matched == s.Answered

	return v
}

func anyOK(outcomes []structs.Outcome) bool {
	for _, o := range outcomes {
		if o.OK() {
			return true
		}
	}

	return false
}
