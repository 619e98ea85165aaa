// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/app"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/diagnostics"
)

// ErrDiagnosticsFailed is returned by `ssl diagnose` when a check fails.
var ErrDiagnosticsFailed = errors.New("cli: diagnostics reported failures")

func (rt *runtime) sslCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ssl",
		Short: "Inspect the TLS policy and test connections",
	}

	var (
		port      int
		withChain bool
		timeout   time.Duration
	)
	test := &cobra.Command{
		Use:   "test HOST",
		Short: "Perform a TLS handshake with HOST and report the result",
		Args:  cobra.ExactArgs(1),
		RunE: rt.run(func(ctx context.Context, a *app.App, out io.Writer, args []string) error {
			report, err := diagnostics.TestConnection(ctx, args[0], port, timeout, withChain,
				diagnostics.WithCABundle(a.SSL.Policy().CABundlePath))
			if err != nil {
				return err
			}
			return rt.emit(out, report, func(w io.Writer) {
				fmt.Fprintf(w, "Host:     %s:%d\n", report.Host, report.Port)
				fmt.Fprintf(w, "Protocol: %s\n", report.Protocol)
				fmt.Fprintf(w, "Cipher:   %s\n", report.Cipher)
				fmt.Fprintf(w, "Latency:  %s\n", report.Latency.Round(time.Millisecond))
				if report.Verified {
					fmt.Fprintln(w, "Verified: yes")
				} else {
					fmt.Fprintf(w, "Verified: no (%s)\n", report.VerifyError)
				}
				if withChain {
					fmt.Fprintln(w)
					fmt.Fprint(w, diagnostics.RenderChainTable(report.Chain))
				}
			})
		}),
	}
	test.Flags().IntVarP(&port, "port", "p", 443, "TCP port")
	test.Flags().BoolVar(&withChain, "chain", false, "show the presented certificate chain")
	test.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "dial and handshake timeout")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the active TLS policy",
			Args:  cobra.NoArgs,
			RunE: rt.run(func(_ context.Context, a *app.App, out io.Writer, _ []string) error {
				p := a.SSL.Policy()
				return rt.emit(out, p, func(w io.Writer) { fieldTable(w, p) })
			}),
		},
		&cobra.Command{
			Use:   "diagnose",
			Short: "Run the CA bundle, policy, cache and rotation checks",
			Args:  cobra.NoArgs,
			RunE: rt.run(func(_ context.Context, a *app.App, out io.Writer, _ []string) error {
				report := a.Diagnose()
				err := rt.emit(out, report, func(w io.Writer) {
					fmt.Fprint(w, report.RenderTable())
					fmt.Fprintf(w, "Overall: %s\n", report.Overall())
				})
				if err != nil {
					return err
				}
				if report.Overall() == diagnostics.Fail {
					return ErrDiagnosticsFailed
				}
				return nil
			}),
		},
		test,
	)
	return cmd
}
