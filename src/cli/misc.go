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
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/app"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/httpcache"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/resilience"
)

// ErrInvalidParam is returned by `fetch` for a --param without '='.
var ErrInvalidParam = errors.New("cli: parameters must be given as key=value")

func (rt *runtime) latencyCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "latency HOST",
		Short: "Show recorded request latencies for HOST",
		Args:  cobra.ExactArgs(1),
		RunE: rt.run(func(_ context.Context, a *app.App, out io.Writer, args []string) error {
			host := lower(args[0])
			tracker := a.Timeouts.Latency()
			summary := tracker.Summary(host)
			samples := tracker.History(host)
			if limit > 0 && len(samples) > limit {
				samples = samples[len(samples)-limit:]
			}

			view := struct {
				Summary resilience.LatencySummary `json:"summary"`
				Samples []resilience.LatencySample `json:"samples"`
			}{summary, samples}

			return rt.emit(out, view, func(w io.Writer) {
				if summary.Count == 0 {
					fmt.Fprintf(w, "No latency samples recorded for %s\n", host)
					return
				}
				fmt.Fprintf(w, "%s: %d samples, avg %.3fs, p95 %.3fs, max %.3fs\n",
					host, summary.Count, summary.Avg, summary.P95, summary.Max)
				rows := make([][]string, 0, len(samples))
				for _, s := range samples {
					rows = append(rows, []string{
						s.Timestamp.UTC().Format(time.RFC3339),
						s.Method,
						fmt.Sprintf("%.3fs", s.Latency),
					})
				}
				renderTable(w, []string{"Time", "Method", "Latency"}, rows)
			})
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of recent samples to list (0 for all)")
	return cmd
}

func (rt *runtime) fetchCommand() *cobra.Command {
	var (
		params []string
		group  string
	)
	cmd := &cobra.Command{
		Use:   "fetch ENDPOINT",
		Short: "GET an ERP API endpoint through the cache and retry layers",
		Args:  cobra.ExactArgs(1),
		RunE: rt.run(func(ctx context.Context, a *app.App, out io.Writer, args []string) error {
			g, err := httpcache.ParseGroup(group)
			if err != nil {
				return err
			}
			values := make(map[string]any, len(params))
			for _, p := range params {
				k, v, ok := strings.Cut(p, "=")
				if !ok || k == "" {
					return fmt.Errorf("%w: %q", ErrInvalidParam, p)
				}
				values[k] = v
			}

			res, err := a.ERP.Get(ctx, args[0], values, g)
			if err != nil {
				return err
			}
			view := struct {
				URL        string `json:"url"`
				StatusCode int    `json:"status_code"`
				Cached     bool   `json:"cached"`
				Body       string `json:"body"`
			}{res.URL, res.StatusCode, res.Cached, string(res.Body)}

			return rt.emit(out, view, func(w io.Writer) {
				source := "origin"
				if res.Cached {
					source = "cache"
				}
				rt.log.Printf("GET %s -> %d (%s)", res.URL, res.StatusCode, source)
				_, _ = w.Write(res.Body)
				if len(res.Body) > 0 && res.Body[len(res.Body)-1] != '\n' {
					fmt.Fprintln(w)
				}
			})
		}),
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "query parameter as key=value (repeatable)")
	cmd.Flags().StringVarP(&group, "group", "g", string(httpcache.GroupGlobal), "cache group (product, order, config, global)")
	return cmd
}
