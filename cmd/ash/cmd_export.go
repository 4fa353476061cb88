package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/flynn33/ash-model/internal/export"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <run-id|archive>",
		Short: "Export a run's population and history as CSV",
		Long: `Export the final population (one agent per row, columns dim1..dimD)
and the occupancy history (columns tick,w0..wD) of a stored or archived run.

Examples:
  ash export 3f2a9c                            # population CSV to stdout
  ash export 3f2a9c --population final.csv --history history.csv
  ash export .ash/archives/ash-run-20261016-101500-3f2a9c1b.ash.gz --history -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			popPath, _ := cmd.Flags().GetString("population")
			histPath, _ := cmd.Flags().GetString("history")
			if popPath == "" && histPath == "" {
				popPath = "-"
			}

			data, err := loadRun(cmd, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var written []string
			if popPath != "" {
				if err := writeFile(out, popPath, func(w io.Writer) error {
					return export.WritePopulationCSV(w, data.population.Matrix())
				}); err != nil {
					return fmt.Errorf("writing population CSV: %w", err)
				}
				written = append(written, popPath)
			}
			if histPath != "" {
				if err := writeFile(out, histPath, func(w io.Writer) error {
					return export.WriteHistoryCSV(w, data.history.Matrix())
				}); err != nil {
					return fmt.Errorf("writing history CSV: %w", err)
				}
				written = append(written, histPath)
			}

			if jsonFlag(cmd) && popPath != "-" && histPath != "-" {
				return writeJSON(out, map[string]interface{}{
					"run_id":  data.report.RunID,
					"written": written,
				})
			}
			return nil
		},
	}
	cmd.Flags().String("population", "", "Population CSV path (\"-\" for stdout)")
	cmd.Flags().String("history", "", "History CSV path (\"-\" for stdout)")
	return cmd
}
