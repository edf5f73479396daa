package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/42wim/dnsmon/check"
	"github.com/42wim/dnsmon/monitor"
	"github.com/42wim/dnsmon/scan"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	exitOK      = 0
	exitUsage   = 1
	exitFailure = 2
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}

	return e.err.Error()
}

func newRootCmd(v *viper.Viper, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dnsmon [flags] host",
		Short: "Monitor DNS record propagation across local, authoritative and extra nameservers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, cmd.Flags(), args)
			if err != nil {
				return &exitError{code: exitUsage, err: err}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return monitorHost(ctx, cfg, stdout)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addFlags(cmd.Flags())

	return cmd
}

func monitorHost(ctx context.Context, cfg *config, stdout io.Writer) error {
	scan.SetDebug(cfg.Debug)
	check.SetDebug(cfg.Debug)
	monitor.SetDebug(cfg.Debug)

	q, err := cfg.question()
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	s, err := scan.New(&scan.Config{
		Debug:         cfg.Debug,
		Concurrency:   cfg.Concurrency,
		LocalDNS:      cfg.LocalDNS,
		WalkStart:     cfg.RootServer,
		LookupTimeout: cfg.Timeout,
	}, nil)
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}

	policy, err := check.New(cfg.mode(), cfg.expected(q.Qtype))
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	out := newConsole(stdout, cfg, policy)

	if cfg.mode().UsesLocal() {
		out.Local(s.Local())
	}

	m := monitor.New(monitor.Config{
		Question:      q,
		Mode:          cfg.mode(),
		Additional:    cfg.additional(),
		Interval:      cfg.Interval,
		StopOnSuccess: !cfg.ContinueOnSuccess,
		Timeout:       cfg.Timeout,
		Refresh:       cfg.Refresh,
	}, policy, s, s, out)

	if err := m.Init(ctx); err != nil {
		return &exitError{code: exitFailure, err: err}
	}

	res, err := m.Run(ctx)
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}

	if res.State == monitor.StateFailed {
		return &exitError{code: exitFailure}
	}

	return nil
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(viper.New(), stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return exitOK
	}

	var e *exitError
	if !errors.As(err, &e) {
		e = &exitError{code: exitUsage, err: err}
	}

	if e.err != nil {
		fmt.Fprintln(stderr, "Error:", e.err)
	}

	if e.code == exitUsage {
		fmt.Fprintln(stderr, "Run 'dnsmon --help' for usage.")
	}

	return e.code
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
