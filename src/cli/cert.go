// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/app"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/x509/bundlecache"
	x509certs "github.com/H0llyW00dzZ/verial-resilience/src/internal/x509/certs"
)

func (rt *runtime) certCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Manage cached certificates and the CA bundle",
	}

	var (
		force      bool
		outputFile string
	)
	fetch := &cobra.Command{
		Use:   "fetch SOURCE",
		Short: "Load a certificate bundle from a file or HTTPS URL through the certificate cache",
		Args:  cobra.ExactArgs(1),
		RunE: rt.run(func(ctx context.Context, a *app.App, out io.Writer, args []string) error {
			data, err := a.Certs.Get(ctx, args[0], force)
			if err != nil {
				return err
			}
			if outputFile != "" {
				if err := os.WriteFile(outputFile, data, 0o644); err != nil {
					return fmt.Errorf("failed to write output file: %w", err)
				}
			}
			count := x509certs.CountPEMCertificates(data)
			summary := map[string]any{
				"source":       args[0],
				"certificates": count,
				"size":         len(data),
				"cache_file":   bundlecache.FileName(args[0]),
			}
			return rt.emit(out, summary, func(w io.Writer) {
				fmt.Fprintf(w, "Loaded %d certificates (%d bytes) from %s\n", count, len(data), args[0])
				if outputFile != "" {
					fmt.Fprintf(w, "Written to %s\n", outputFile)
				}
			})
		}),
	}
	fetch.Flags().BoolVarP(&force, "force", "f", false, "bypass the cache")
	fetch.Flags().StringVarP(&outputFile, "output", "o", "", "write the bundle to OUTPUT_FILE")

	var forceRotate bool
	rotate := &cobra.Command{
		Use:   "rotate",
		Short: "Replace the managed CA bundle when it is due",
		Args:  cobra.NoArgs,
		RunE: rt.run(func(ctx context.Context, a *app.App, out io.Writer, _ []string) error {
			rt.log.Printf("Checking CA bundle %s...", a.Rotator.Config().BundlePath)
			res, err := a.Rotator.Rotate(ctx, forceRotate)
			if err != nil {
				return err
			}
			return rt.emit(out, res, func(w io.Writer) {
				if !res.Rotated {
					fmt.Fprintln(w, "CA bundle is current, nothing to do (use --force to rotate anyway)")
					return
				}
				fmt.Fprintf(w, "Rotated CA bundle from %s (%d certificates)\n", res.Source, res.Certificates)
				if res.Backup != "" {
					fmt.Fprintf(w, "Backup:      %s\n", res.Backup)
				}
				fmt.Fprintf(w, "Permissions: %s\n", res.Permissions)
			})
		}),
	}
	rotate.Flags().BoolVarP(&forceRotate, "force", "f", false, "rotate even when the bundle is current")

	cmd.AddCommand(
		fetch,
		&cobra.Command{
			Use:   "cache-stats",
			Short: "Show the certificate cache directory statistics",
			Args:  cobra.NoArgs,
			RunE: rt.run(func(_ context.Context, a *app.App, out io.Writer, _ []string) error {
				stats, err := a.Certs.Stats()
				if err != nil {
					return err
				}
				return rt.emit(out, stats, func(w io.Writer) {
					fmt.Fprint(w, bundlecache.FormatStats(stats))
				})
			}),
		},
		&cobra.Command{
			Use:   "cache-clear [SOURCE]",
			Short: "Drop one cached source or the whole certificate cache",
			Args:  cobra.MaximumNArgs(1),
			RunE: rt.run(func(_ context.Context, a *app.App, out io.Writer, args []string) error {
				source := ""
				if len(args) == 1 {
					source = args[0]
				}
				if err := a.Certs.Clear(source); err != nil {
					return err
				}
				return rt.emit(out, map[string]any{"cleared": true, "source": source}, func(w io.Writer) {
					if source == "" {
						fmt.Fprintln(w, "Certificate cache cleared")
						return
					}
					fmt.Fprintf(w, "Removed %s from the certificate cache\n", source)
				})
			}),
		},
		rotate,
		&cobra.Command{
			Use:   "status",
			Short: "Show the CA bundle rotation state",
			Args:  cobra.NoArgs,
			RunE: rt.run(func(_ context.Context, a *app.App, out io.Writer, _ []string) error {
				st, err := a.Rotator.Status()
				if err != nil {
					return err
				}
				return rt.emit(out, st, func(w io.Writer) {
					stamp := func(t *time.Time) string {
						if t == nil {
							return "never"
						}
						return t.UTC().Format(time.RFC3339)
					}
					fmt.Fprintf(w, "Bundle:         %s\n", st.BundlePath)
					fmt.Fprintf(w, "Last rotation:  %s\n", stamp(st.LastRotation))
					fmt.Fprintf(w, "Next rotation:  %s\n", stamp(st.NextRotation))
					fmt.Fprintf(w, "Needs rotation: %t", st.NeedsRotation)
					if st.Reason != "" {
						fmt.Fprintf(w, " (%s)", st.Reason)
					}
					fmt.Fprintln(w)

					rows := make([][]string, 0, len(st.Sources))
					for _, s := range st.Sources {
						rows = append(rows, []string{strconv.Itoa(s.Priority), s.ID, s.Name, s.URL})
					}
					renderTable(w, []string{"Priority", "ID", "Name", "URL"}, rows)

					if len(st.Backups) > 0 {
						rows = rows[:0]
						for _, b := range st.Backups {
							rows = append(rows, []string{b.Created.UTC().Format(time.RFC3339), strconv.FormatInt(b.Size, 10), b.Path})
						}
						renderTable(w, []string{"Created", "Size", "Path"}, rows)
					}
				})
			}),
		},
	)
	return cmd
}
