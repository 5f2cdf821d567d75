package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/platinummonkey/plugingate/pkg/history"
	"github.com/platinummonkey/plugingate/pkg/report"
	"github.com/spf13/cobra"
)

func newHistoryCommand(root *rootOptions) *cobra.Command {
	var (
		path   string
		plugin string
		runID  string
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded gate runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := report.ValidateFormat(format); err != nil {
				return usageError("%v", err)
			}

			cfg, _, err := root.load(cmd)
			if err != nil {
				return err
			}
			if path == "" {
				path = cfg.History.Path
			}
			if path == "" {
				return usageError("no history database: pass --history or set history.path")
			}

			store, err := history.Open(cmd.Context(), path)
			if err != nil {
				return err
			}
			defer store.Close()

			if runID != "" {
				rep, err := store.Get(cmd.Context(), runID)
				if err != nil {
					return err
				}
				return report.Write(cmd.OutOrStdout(), format, rep)
			}

			runs, err := store.List(cmd.Context(), plugin, limit)
			if err != nil {
				return err
			}
			if format == report.FormatText {
				return writeRunsText(cmd.OutOrStdout(), runs)
			}
			return report.Encode(cmd.OutOrStdout(), format, runs)
		},
	}

	cmd.Flags().StringVar(&path, "history", "", "history database (SQLite file or postgres:// URL)")
	cmd.Flags().StringVarP(&plugin, "plugin", "p", "", "only list runs of this plugin")
	cmd.Flags().StringVar(&runID, "run", "", "show the full report of one run")
	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultLimit, "maximum number of runs to list")
	cmd.Flags().StringVarP(&format, "format", "f", report.FormatText, "output format (text, json, yaml)")
	return cmd
}

func writeRunsText(w io.Writer, runs []*history.Run) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tPLUGIN\tSTARTED\tRESULT\tBINARY")
	for _, r := range runs {
		result := "PASS"
		if !r.Passed {
			result = "FAIL"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Plugin, r.StartedAt.Format(time.RFC3339), result, r.Binary)
	}
	return tw.Flush()
}
