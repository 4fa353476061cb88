package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/flynn33/ash-model/internal/report"
	"github.com/flynn33/ash-model/internal/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored runs",
		Long: `List, show and delete runs saved with 'ash run --save'.

Runs are addressed by full ID or any unique ID prefix.

Examples:
  ash runs list
  ash runs show 3f2a9c
  ash runs delete 3f2a9c`,
	}

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
		newRunsDeleteCmd(),
	)
	return cmd
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonFlag(cmd) {
				if runs == nil {
					runs = []store.RunRecord{}
				}
				return writeJSON(out, map[string]interface{}{
					"runs":        runs,
					"total_count": len(runs),
					"database":    s.Path(),
				})
			}

			if len(runs) == 0 {
				fmt.Fprintf(out, "No runs stored in %s\n", s.Path())
				return nil
			}

			fmt.Fprintf(out, "%-8s  %-16s  %3s  %6s  %6s  %-6s  %7s  %9s\n",
				"ID", "CREATED", "D", "N", "T", "P", "MEAN", "FIT P")
			for _, r := range runs {
				fit := "-"
				if r.Fit != nil {
					fit = fmt.Sprintf("%.3g", r.Fit.PValue)
				}
				fmt.Fprintf(out, "%-8s  %-16s  %3d  %6d  %6d  %-6s  %7.3f  %9s\n",
					shortID(r.ID),
					r.CreatedAt.Local().Format("2006-01-02 15:04"),
					r.Params.Dim, r.Params.Agents, r.Params.Ticks,
					strconv.FormatFloat(r.Params.NoiseProb, 'g', -1, 64),
					r.Mean, fit)
			}
			fmt.Fprintf(out, "Total: %d runs\n", len(runs))
			return nil
		},
	}
	cmd.Flags().Int("limit", 0, "Show at most this many runs (0: all)")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a stored run's report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := loadRun(cmd, args[0])
			if err != nil {
				return err
			}
			if jsonFlag(cmd) {
				return report.JSON(cmd.OutOrStdout(), data.report)
			}
			return report.RenderRun(cmd.OutOrStdout(), data.report)
		},
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			rec, err := s.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			if err := s.DeleteRun(ctx, rec.ID); err != nil {
				return fmt.Errorf("failed to delete run: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonFlag(cmd) {
				return writeJSON(out, map[string]interface{}{
					"status": "deleted",
					"run_id": rec.ID,
				})
			}
			fmt.Fprintf(out, "Deleted run %s\n", rec.ID)
			return nil
		},
	}
}
