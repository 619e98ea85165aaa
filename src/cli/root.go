// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/app"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/config"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/helper/posix"
	"github.com/H0llyW00dzZ/verial-resilience/src/logger"
)

// runtime is the per-invocation state shared by the subcommands.
type runtime struct {
	configPath string
	jsonOut    bool
	appOpts    []app.Option
	log        logger.Logger
}

// action is the body of a command that needs the wired application.
type action func(ctx context.Context, a *app.App, out io.Writer, args []string) error

// run loads the configuration, wires the application for the duration of fn
// and releases it afterwards.
func (rt *runtime) run(fn action) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		cfg, err := config.Load(rt.configPath)
		if err != nil {
			return err
		}

		opts := append([]app.Option{app.WithLogOutput(cmd.ErrOrStderr())}, rt.appOpts...)
		a, err := app.New(cmd.Context(), cfg, opts...)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()

		return fn(cmd.Context(), a, cmd.OutOrStdout(), args)
	}
}

// emit writes v as indented JSON in --json mode, text otherwise.
func (rt *runtime) emit(out io.Writer, v any, text func(w io.Writer)) error {
	if rt.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(out)
	return nil
}

// NewRootCommand builds the command tree. opts are passed to every
// application build.
func NewRootCommand(version string, log logger.Logger, opts ...app.Option) *cobra.Command {
	rt := &runtime{appOpts: opts, log: logger.OrNop(log)}

	root := &cobra.Command{
		Use:           posix.GetExecutableName(),
		Short:         "Response cache and TLS resilience administration for the Verial ERP connector",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&rt.configPath, "config", "c", "", "configuration file (.json, .yaml, .yml); defaults to $"+config.EnvConfigFile)
	root.PersistentFlags().BoolVar(&rt.jsonOut, "json", false, "emit JSON output")

	root.AddCommand(
		rt.cacheCommand(),
		rt.certCommand(),
		rt.sslCommand(),
		rt.latencyCommand(),
		rt.fetchCommand(),
	)
	return root
}

// Execute runs the root command with the process arguments.
func Execute(ctx context.Context, version string, log logger.Logger) error {
	return NewRootCommand(version, log).ExecuteContext(ctx)
}

// renderTable writes a plain table.
func renderTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewTable(w)
	table.Header(header)
	_ = table.Bulk(rows)
	_ = table.Render()
}

// fieldTable renders the JSON fields of v as a sorted key/value table.
func fieldTable(w io.Writer, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(w, "%v\n", v)
		return
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		fmt.Fprintf(w, "%s\n", raw)
		return
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		val := fields[k]
		var s string
		switch x := val.(type) {
		case nil:
			s = "-"
		case string:
			s = x
			if s == "" {
				s = "-"
			}
		case map[string]any, []any:
			b, _ := json.Marshal(x)
			s = string(b)
		default:
			s = fmt.Sprint(x)
		}
		rows = append(rows, []string{k, s})
	}
	renderTable(w, []string{"Setting", "Value"}, rows)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
