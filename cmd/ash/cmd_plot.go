package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flynn33/ash-model/internal/visualization"
)

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot <run-id|archive>",
		Short: "Plot a run's occupancy",
		Long: `Render the final occupancy histogram of a stored or archived run, with
the Binomial(D, 1/2) expectation overlaid. The format follows the file
extension (png, svg, pdf).

Examples:
  ash plot 3f2a9c                              # writes ash-3f2a9c1b.png
  ash plot 3f2a9c --out final.svg --heatmap history.png
  ash plot 3f2a9c --text                       # ASCII bars only`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outPath, _ := cmd.Flags().GetString("out")
			heatmap, _ := cmd.Flags().GetString("heatmap")
			text, _ := cmd.Flags().GetBool("text")
			open, _ := cmd.Flags().GetBool("open")

			data, err := loadRun(cmd, args[0])
			if err != nil {
				return err
			}
			final := data.history.Final()
			out := cmd.OutOrStdout()

			if text {
				fmt.Fprint(out, visualization.RenderText(final, 0))
				return nil
			}

			if outPath == "" {
				outPath = fmt.Sprintf("ash-%s.png", shortID(data.report.RunID))
			}
			opts := visualization.HistogramOptions{
				Ticks:     data.report.Params.Ticks,
				NoiseProb: data.report.Params.NoiseProb,
				Expected:  true,
			}
			if err := visualization.RenderHistogram(final, opts, outPath); err != nil {
				return err
			}
			written := []string{outPath}

			if heatmap != "" {
				if err := visualization.RenderHeatmap(data.history, heatmap); err != nil {
					return err
				}
				written = append(written, heatmap)
			}

			if open {
				if err := visualization.Open(outPath); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Could not open %s: %v\n", outPath, err)
				}
			}

			if jsonFlag(cmd) {
				return writeJSON(out, map[string]interface{}{
					"run_id":  data.report.RunID,
					"written": written,
				})
			}
			for _, p := range written {
				fmt.Fprintf(out, "Wrote %s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().String("out", "", "Histogram image path (default ash-<id>.png)")
	cmd.Flags().String("heatmap", "", "Also render occupancy over time to this path")
	cmd.Flags().Bool("text", false, "Print ASCII bars instead of writing an image")
	cmd.Flags().Bool("open", false, "Open the histogram in the default viewer")
	return cmd
}
