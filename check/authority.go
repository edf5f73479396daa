package check

import (
	"github.com/42wim/dnsmon/structs"
)

// AuthorityMatchesLocal waits for every authority and additional server to
// agree with the local resolver.
type AuthorityMatchesLocal struct {
	name string
}

func NewAuthorityMatchesLocal() *AuthorityMatchesLocal {
	return &AuthorityMatchesLocal{name: ModeAuthorityMatchesLocal.String()}
}

func (p *AuthorityMatchesLocal) Name() string {
	return p.name
}

func (p *AuthorityMatchesLocal) Evaluate(r *structs.QueryResult) Verdict {
	if msg := localFailure(r); msg != "" {
		return Verdict{Messages: []string{msg}}
	}

	v := compareRemote(r, r.Local.Answer, "local")

	log.Debugf("%s: %d/%d matched, %d answered", p.name, v.Summary.Matched, v.Summary.Total, v.Summary.Answered)

	return v
}

// AuthorityMatchesExpected waits for every authority and additional server to
// return the expected set. The local resolver is not involved.
type AuthorityMatchesExpected struct {
	Expected structs.AnswerSet
}

func NewAuthorityMatchesExpected(expected structs.AnswerSet) *AuthorityMatchesExpected {
	return &AuthorityMatchesExpected{Expected: expected}
}

func (p *AuthorityMatchesExpected) Name() string {
	return ModeRemoteExpected.String()
}

func (p *AuthorityMatchesExpected) Evaluate(r *structs.QueryResult) Verdict {
	return compareRemote(r, p.Expected, "expected")
}
