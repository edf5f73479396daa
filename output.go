package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/42wim/dnsmon/check"
	"github.com/42wim/dnsmon/monitor"
	"github.com/42wim/dnsmon/scan"
	"github.com/42wim/dnsmon/structs"
	"github.com/briandowns/spinner"
	"github.com/dustin/go-humanize"
	"github.com/ryanuber/columnize"
)

const timeFormat = "2006-01-02 15:04:05"

type console struct {
	w       io.Writer
	cfg     *config
	policy  check.Policy
	spinner *spinner.Spinner
	asnInfo func(net.IP) (structs.IPInfo, error)
}

func newConsole(w io.Writer, cfg *config, policy check.Policy) *console {
	return &console{
		w:       w,
		cfg:     cfg,
		policy:  policy,
		spinner: spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr)),
		asnInfo: scan.ASNInfo,
	}
}

func (c *console) Local(servers []structs.ServerRef) {
	ids := make([]string, 0, len(servers))
	for _, s := range servers {
		ids = append(ids, s.ID())
	}

	fmt.Fprintf(c.w, "Comparing against your local nameserver: %s\n", strings.Join(ids, ", "))
}

func (c *console) Authorities(zone string, m structs.AuthorityMap) {
	header := "NS | IP"
	if c.cfg.ASNInfo {
		header += " | LOC | ASN | ISP"
	}

	lines := []string{header}

	for _, server := range m.Servers() {
		for i, ip := range m[server.Name] {
			name := server.Name
			if i > 0 {
				name = ""
			}

			line := fmt.Sprintf("%s | %s", name, ip)

			if c.cfg.ASNInfo {
				info, err := c.asnInfo(ip)
				if err != nil {
					line += " | - | - | -"
				} else {
					line += fmt.Sprintf(" | %s | %v | %.40s", info.Loc, info.ASN, info.ISP)
				}
			}

			lines = append(lines, line)
		}
	}

	fmt.Fprintf(c.w, "Found following authorities for %s:\n%s\n", zone, columnize.SimpleFormat(lines))

	if len(c.cfg.Additional) > 0 {
		fmt.Fprintf(c.w, "Also using following DNS: %s\n", strings.Join(c.cfg.Additional, ", "))
	}
}

func (c *console) Baseline(a structs.AnswerSet) {
	fmt.Fprintf(c.w, "Initial local result: %s\n", a)
}

func (c *console) Waiting(d time.Duration) {
	c.spinner.Suffix = fmt.Sprintf(" next check in %s", d)
	c.spinner.Start()
}

func (c *console) Status(s monitor.Status) {
	c.spinner.Stop()

	if s.Verdict.Pass && c.cfg.PrintOnlyFail {
		return
	}

	fmt.Fprintln(c.w, statusLine(s))

	if !s.Verdict.Pass || c.cfg.Verbose || len(s.Verdict.NoAnswer) > 0 {
		fmt.Fprint(c.w, s.Verdict.Report(c.policy.Name(), c.cfg.Verbose))
	}

	if c.cfg.Verbose && s.Result != nil {
		for _, d := range s.Result.Diagnostics {
			fmt.Fprintf(c.w, "INFO: %s\n", d)
		}
	}
}

func (c *console) Done(r monitor.Result) {
	c.spinner.Stop()

	fmt.Fprintf(c.w, "Stopped (%s) after %d %s. Last ok: %s\n",
		r.State, r.Cycles, plural(r.Cycles, "cycle"), lastOK(r.MonitorState.LastOK))
}

func statusLine(s monitor.Status) string {
	var sb strings.Builder

	sb.WriteString(s.Time.Format(timeFormat))

	if s.Verdict.Pass {
		sb.WriteString(" - queries ok.")
	} else {
		sb.WriteString(" - Fail!")

		if sum := s.Verdict.Summary; sum.Total > 1 {
			fmt.Fprintf(&sb, " %d out of %d ok.", sum.Matched, sum.Total)
		}
	}

	if s.Result != nil {
		if ttl, ok := s.Result.LocalTTL(); ok {
			fmt.Fprintf(&sb, " Local DNS TTL %d seconds (%s).", ttl,
				strings.TrimSuffix(humanize.RelTime(s.Time, s.Time.Add(time.Duration(ttl)*time.Second), "", ""), " "))
		}
	}

	if !s.Verdict.Pass {
		fmt.Fprintf(&sb, " Last ok: %s", lastOK(s.State.LastOK))
	}

	return sb.String()
}

func lastOK(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	return humanize.Time(t)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}

	return word + "s"
}
