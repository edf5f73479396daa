package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/42wim/dnsmon/check"
	"github.com/42wim/dnsmon/structs"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type config struct {
	Host              string
	RRType            string
	LocalDNS          []string
	Additional        []string
	Interval          time.Duration
	ContinueOnSuccess bool
	PrintOnlyFail     bool
	Timeout           time.Duration
	Verbose           bool
	Debug             bool
	ASNInfo           bool
	RootServer        string
	Refresh           time.Duration
	Concurrency       int

	LocalExpected    string
	LocalChange      bool
	AuthorityToLocal bool
	RemoteExpected   string
	ParentToLocal    bool
}

func addFlags(f *pflag.FlagSet) {
	f.String("config", "", "config file (default is $HOME/.dnsmon.yaml)")
	f.StringP("rr-type", "t", "A", "record type to query")
	f.StringSlice("override-local-dns", nil, "use this DNS as local instead of the system resolvers (repeatable)")
	f.StringSliceP("dns", "d", nil, "also query this DNS (repeatable)")
	f.StringP("interval", "i", "0", "keep querying with this interval (seconds or duration), 0 runs once")
	f.Bool("continue-on-success", false, "keep monitoring after success")
	f.Bool("print-only-fail", false, "only print failed cycles")
	f.StringP("timeout", "W", "5s", "per query timeout (seconds or duration)")
	f.BoolP("verbose", "v", false, "print per server results")
	f.Bool("debug", false, "debug logging")
	f.Bool("asn-info", false, "show ASN, ISP and country of authoritative nameservers")
	f.String("root-server", "", "start the delegation walk at this server instead of the local resolver")
	f.String("refresh", "0", "re-discover authoritative nameservers this often, 0 disables")
	f.Int("concurrency", 16, "maximum parallel queries per cycle")

	f.String("mode-monitor-local-expected", "", "wait for the expected value to appear in local DNS")
	f.Bool("mode-monitor-local-change", false, "wait for the local DNS value to change")
	f.Bool("mode-match-authoritative-to-local", false, "wait for authoritative and local DNS to match")
	f.String("mode-monitor-remote-expected", "", "wait for the expected value to appear on the authoritative DNS")
	f.Bool("mode-match-parent-authoritative-to-local", false, "wait for the parent zone's authoritative DNS to match local")
}

// initConfig reads the config file and environment into v.
func initConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix("DNSMON")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)

		return errors.Wrapf(v.ReadInConfig(), "reading config %s", cfgFile)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	path := filepath.Join(home, ".dnsmon.yaml")
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	v.SetConfigFile(path)

	return errors.Wrapf(v.ReadInConfig(), "reading config %s", path)
}

func loadConfig(v *viper.Viper, flags *pflag.FlagSet, args []string) (*config, error) {
	if err := v.BindPFlags(flags); err != nil {
		return nil, err
	}

	if err := initConfig(v, v.GetString("config")); err != nil {
		return nil, err
	}

	cfg := &config{
		RRType:            v.GetString("rr-type"),
		LocalDNS:          v.GetStringSlice("override-local-dns"),
		Additional:        v.GetStringSlice("dns"),
		ContinueOnSuccess: v.GetBool("continue-on-success"),
		PrintOnlyFail:     v.GetBool("print-only-fail"),
		Verbose:           v.GetBool("verbose"),
		Debug:             v.GetBool("debug"),
		ASNInfo:           v.GetBool("asn-info"),
		RootServer:        v.GetString("root-server"),
		Concurrency:       v.GetInt("concurrency"),
		LocalExpected:     v.GetString("mode-monitor-local-expected"),
		LocalChange:       v.GetBool("mode-monitor-local-change"),
		AuthorityToLocal:  v.GetBool("mode-match-authoritative-to-local"),
		RemoteExpected:    v.GetString("mode-monitor-remote-expected"),
		ParentToLocal:     v.GetBool("mode-match-parent-authoritative-to-local"),
	}

	if len(args) > 0 {
		cfg.Host = args[0]
	}

	var err error

	if cfg.Interval, err = parseSeconds(v.GetString("interval")); err != nil {
		return nil, errors.Wrap(err, "interval")
	}

	if cfg.Timeout, err = parseSeconds(v.GetString("timeout")); err != nil {
		return nil, errors.Wrap(err, "timeout")
	}

	if cfg.Refresh, err = parseSeconds(v.GetString("refresh")); err != nil {
		return nil, errors.Wrap(err, "refresh")
	}

	return cfg, cfg.Validate()
}

// parseSeconds accepts a plain number of seconds or a duration like "1m30s".
func parseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < 0 {
			return 0, fmt.Errorf("negative value %s", s)
		}

		return time.Duration(f * float64(time.Second)), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}

	if d < 0 {
		return 0, fmt.Errorf("negative value %s", s)
	}

	return d, nil
}

func (c *config) modes() []check.Mode {
	var modes []check.Mode

	if c.LocalExpected != "" {
		modes = append(modes, check.ModeLocalExpected)
	}

	if c.LocalChange {
		modes = append(modes, check.ModeLocalChange)
	}

	if c.AuthorityToLocal {
		modes = append(modes, check.ModeAuthorityMatchesLocal)
	}

	if c.RemoteExpected != "" {
		modes = append(modes, check.ModeRemoteExpected)
	}

	if c.ParentToLocal {
		modes = append(modes, check.ModeParentMatchesLocal)
	}

	return modes
}

func (c *config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("no host to query")
	}

	if _, err := c.question(); err != nil {
		return err
	}

	switch modes := c.modes(); len(modes) {
	case 0:
		return fmt.Errorf("no mode given, use one of the --mode-* flags")
	case 1:
	default:
		names := make([]string, 0, len(modes))
		for _, m := range modes {
			names = append(names, "--mode-"+m.String())
		}

		return fmt.Errorf("conflicting modes: %s", strings.Join(names, ", "))
	}

	if m := c.modes()[0]; m == check.ModeLocalExpected || m == check.ModeRemoteExpected {
		q, _ := c.question()
		if len(c.expected(q.Qtype).Values) == 0 {
			return fmt.Errorf("--mode-%s needs at least one expected value", m)
		}
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if c.ParentToLocal && dnsParentless(c.Host) {
		return fmt.Errorf("%s has no parent zone", c.Host)
	}

	return nil
}

func dnsParentless(host string) bool {
	return strings.Count(strings.Trim(host, "."), ".") == 0
}

func (c *config) mode() check.Mode {
	return c.modes()[0]
}

func (c *config) question() (structs.Question, error) {
	return structs.NewQuestion(c.Host, c.RRType)
}

func (c *config) expected(qtype uint16) structs.AnswerSet {
	switch c.mode() {
	case check.ModeLocalExpected:
		return structs.ParseExpected(qtype, c.LocalExpected)
	case check.ModeRemoteExpected:
		return structs.ParseExpected(qtype, c.RemoteExpected)
	}

	return structs.AnswerSet{}
}

func (c *config) additional() []structs.ServerRef {
	servers := make([]structs.ServerRef, 0, len(c.Additional))
	for _, addr := range c.Additional {
		servers = append(servers, structs.ServerRef{Address: addr})
	}

	return servers
}
