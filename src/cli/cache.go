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
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/app"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/httpcache"
)

var (
	// ErrInvalidToggle is returned by `cache toggle` for anything but on or off.
	ErrInvalidToggle = errors.New("cli: toggle expects on or off")

	// ErrInvalidTTL is returned by `cache ttl` for a non-positive or malformed value.
	ErrInvalidTTL = errors.New("cli: ttl must be a positive number of seconds")
)

func (rt *runtime) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the API response cache",
	}

	var group string
	flush := &cobra.Command{
		Use:   "flush",
		Short: "Remove cached responses, all of them or one group",
		Args:  cobra.NoArgs,
		RunE: rt.run(func(ctx context.Context, a *app.App, out io.Writer, _ []string) error {
			var (
				n   int
				err error
				g   httpcache.Group
			)
			if group != "" {
				if g, err = httpcache.ParseGroup(group); err != nil {
					return err
				}
				n = a.Cache.FlushGroup(ctx, g)
			} else {
				n = a.Cache.FlushAll(ctx)
			}
			return rt.emit(out, map[string]any{"group": group, "deleted": n}, func(w io.Writer) {
				if group == "" {
					fmt.Fprintf(w, "Flushed %d cached responses\n", n)
					return
				}
				fmt.Fprintf(w, "Flushed %d cached responses from group %s\n", n, g)
			})
		}),
	}
	flush.Flags().StringVarP(&group, "group", "g", "", "flush only this group (product, order, config, global)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show cache size, entries per group and settings",
			Args:  cobra.NoArgs,
			RunE: rt.run(func(ctx context.Context, a *app.App, out io.Writer, _ []string) error {
				stats := a.Cache.ExtendedStats(ctx)
				return rt.emit(out, stats, func(w io.Writer) {
					rows := [][]string{
						{"enabled", onOff(stats.Enabled)},
						{"default ttl", (time.Duration(stats.DefaultTTL) * time.Second).String()},
						{"entries", strconv.Itoa(stats.TotalEntries)},
						{"size", stats.SizeFormatted},
					}
					for _, g := range httpcache.Groups {
						rows = append(rows, []string{"group " + g.String(), strconv.Itoa(stats.ByGroup[g])})
					}
					renderTable(w, []string{"Metric", "Value"}, rows)
				})
			}),
		},
		flush,
		&cobra.Command{
			Use:       "toggle on|off",
			Short:     "Enable or disable response caching",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{"on", "off"},
			RunE: rt.run(func(ctx context.Context, a *app.App, out io.Writer, args []string) error {
				var enabled bool
				switch lower(args[0]) {
				case "on", "true", "enable", "1":
					enabled = true
				case "off", "false", "disable", "0":
				default:
					return fmt.Errorf("%w: %q", ErrInvalidToggle, args[0])
				}
				a.Cache.SetEnabled(enabled)
				if err := a.Cache.SaveSettings(ctx); err != nil {
					return err
				}
				return rt.emit(out, map[string]bool{"enabled": enabled}, func(w io.Writer) {
					fmt.Fprintf(w, "Response cache %s\n", onOff(enabled))
				})
			}),
		},
		&cobra.Command{
			Use:   "ttl SECONDS",
			Short: "Set the default cache TTL",
			Args:  cobra.ExactArgs(1),
			RunE: rt.run(func(ctx context.Context, a *app.App, out io.Writer, args []string) error {
				secs, err := strconv.Atoi(args[0])
				if err != nil || secs <= 0 {
					return fmt.Errorf("%w: %q", ErrInvalidTTL, args[0])
				}
				ttl := time.Duration(secs) * time.Second
				a.Cache.SetDefaultTTL(ttl)
				if err := a.Cache.SaveSettings(ctx); err != nil {
					return err
				}
				return rt.emit(out, map[string]int{"ttl_default": secs}, func(w io.Writer) {
					fmt.Fprintf(w, "Default cache TTL set to %s\n", ttl)
				})
			}),
		},
	)
	return cmd
}
