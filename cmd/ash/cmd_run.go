package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/flynn33/ash-model/internal/archive"
	"github.com/flynn33/ash-model/internal/config"
	"github.com/flynn33/ash-model/internal/export"
	"github.com/flynn33/ash-model/internal/logging"
	"github.com/flynn33/ash-model/internal/metrics"
	"github.com/flynn33/ash-model/internal/pathutil"
	"github.com/flynn33/ash-model/internal/report"
	"github.com/flynn33/ash-model/internal/simulation"
	"github.com/flynn33/ash-model/internal/store"
	"github.com/flynn33/ash-model/internal/visualization"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation",
		Long: `Run one simulation and print the final occupancy per plane.

Parameters come from the config file, then ASH_* environment variables,
then the flags below.

Examples:
  ash run                                   # reference experiment
  ash run --seed 2025 --plot final.png      # reproducible, with histogram
  ash run --ticks 500 --noise-prob 0 --save # store in .ash/ash.db
  ash run --workers 8 --metrics-addr :9109  # parallel, with /metrics`,
		Args: cobra.NoArgs,
		RunE: runSimulation,
	}

	cmd.Flags().Int("dim", 0, "Hypercube dimension D")
	cmd.Flags().Int("agents", 0, "Number of agents N")
	cmd.Flags().Int("ticks", 0, "Number of ticks T")
	cmd.Flags().Float64("noise-prob", 0, "Per-agent bit-flip probability p")
	cmd.Flags().Uint64("seed", 0, "Random seed (default: fresh seed per run)")
	cmd.Flags().Int("workers", 0, "Parallel workers per tick (0 or 1: sequential)")
	cmd.Flags().String("preset", "", "Built-in codeword set (see 'ash presets')")
	cmd.Flags().StringSlice("codeword", nil, "Explicit codeword bit string (repeatable)")
	cmd.Flags().String("log-level", "", "Log level: info, debug, trace")

	cmd.Flags().Bool("save", false, "Store the run in the run database")
	cmd.Flags().String("csv", "", "Write the final population to this CSV file")
	cmd.Flags().String("history-csv", "", "Write the occupancy history to this CSV file")
	cmd.Flags().String("plot", "", "Render the final histogram (png, svg, pdf)")
	cmd.Flags().String("heatmap", "", "Render occupancy over time (png, svg, pdf)")
	cmd.Flags().Bool("archive", false, "Write a checksummed archive to .ash/archives")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address during the run")

	return cmd
}

// applyRunFlags copies explicitly set flags over the loaded configuration.
func applyRunFlags(cmd *cobra.Command, cfg *config.AshConfig) {
	f := cmd.Flags()
	sim := &cfg.Simulation
	if f.Changed("dim") {
		sim.Dim, _ = f.GetInt("dim")
	}
	if f.Changed("agents") {
		sim.Agents, _ = f.GetInt("agents")
	}
	if f.Changed("ticks") {
		sim.Ticks, _ = f.GetInt("ticks")
	}
	if f.Changed("noise-prob") {
		sim.NoiseProb, _ = f.GetFloat64("noise-prob")
	}
	if f.Changed("seed") {
		seed, _ := f.GetUint64("seed")
		sim.Seed = &seed
	}
	if f.Changed("workers") {
		sim.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("preset") {
		sim.Preset, _ = f.GetString("preset")
		sim.Codewords = nil
	}
	if f.Changed("codeword") {
		sim.Codewords, _ = f.GetStringSlice("codeword")
	}
	if f.Changed("log-level") {
		cfg.Logging.Level, _ = f.GetString("log-level")
	}
	if f.Changed("save") {
		cfg.Output.Save, _ = f.GetBool("save")
	}
	if f.Changed("metrics-addr") {
		cfg.Metrics.Addr, _ = f.GetString("metrics-addr")
	}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	params, set, err := cfg.Simulation.Params()
	if err != nil {
		return err
	}
	root, err := dataRoot(cmd, cfg)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
	trace := logging.NewTickTrace(store.LocalAshPath(root), cfg.Logging.Level)
	defer trace.Close()

	opts := []simulation.Option{
		simulation.WithLogger(logger),
		simulation.WithTrace(trace),
	}

	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		m, err := metrics.New(reg)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		srv, err := serveMetrics(cfg.Metrics.Addr, reg, logger)
		if err != nil {
			return err
		}
		defer shutdownMetrics(srv, logger)
		opts = append(opts, simulation.WithObserver(m))
	}

	loop, err := simulation.New(params, set, opts...)
	if err != nil {
		return err
	}

	ctx, stop := withInterrupt(cmd.Context())
	defer stop()

	res, err := loop.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("run %s interrupted at tick %d: %w", loop.RunID(), loop.Tick(), err)
		}
		return err
	}

	saved, err := writeRunOutputs(cmd, cfg, root, res, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	rep := report.FromResult(res)
	if jsonFlag(cmd) {
		return writeJSON(out, map[string]interface{}{
			"run":     rep,
			"outputs": saved,
		})
	}
	if err := report.RenderRun(out, rep); err != nil {
		return err
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, visualization.RenderText(res.History.Final(), 0))
	for _, s := range saved {
		fmt.Fprintf(out, "Wrote %s\n", s)
	}
	return nil
}

// writeRunOutputs writes every output the flags and config ask for and
// returns what was written.
func writeRunOutputs(cmd *cobra.Command, cfg *config.AshConfig, root string, res *simulation.Result, logger *slog.Logger) ([]string, error) {
	var written []string
	f := cmd.Flags()

	if path, _ := f.GetString("csv"); path != "" {
		if err := writeFile(cmd.OutOrStdout(), path, func(w io.Writer) error {
			return export.WritePopulationCSV(w, res.Final.Matrix())
		}); err != nil {
			return written, fmt.Errorf("writing population CSV: %w", err)
		}
		written = append(written, path)
	}

	if path, _ := f.GetString("history-csv"); path != "" {
		if err := writeFile(cmd.OutOrStdout(), path, func(w io.Writer) error {
			return export.WriteHistoryCSV(w, res.History.Matrix())
		}); err != nil {
			return written, fmt.Errorf("writing history CSV: %w", err)
		}
		written = append(written, path)
	}

	if path, _ := f.GetString("plot"); path != "" {
		opts := visualization.HistogramOptions{
			Ticks:     res.Params.Ticks,
			NoiseProb: res.Params.NoiseProb,
			Expected:  true,
		}
		if err := visualization.RenderHistogram(res.History.Final(), opts, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if path, _ := f.GetString("heatmap"); path != "" {
		if err := visualization.RenderHeatmap(res.History, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if cfg.Output.Save {
		s, err := store.NewSQLiteRunStore(root)
		if err != nil {
			return written, fmt.Errorf("failed to open run database: %w", err)
		}
		defer s.Close()
		if err := s.SaveRun(cmd.Context(), store.RunRecordFromResult(res)); err != nil {
			return written, fmt.Errorf("failed to save run: %w", err)
		}
		logger.Info("run saved", "run_id", res.RunID, "db", s.Path())
		written = append(written, s.Path())
	}

	if doArchive, _ := f.GetBool("archive"); doArchive {
		path, err := writeArchive(cfg, root, res, logger)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}

	return written, nil
}

// writeArchive writes res to the archive directory and then applies the
// configured retention.
func writeArchive(cfg *config.AshConfig, root string, res *simulation.Result, logger *slog.Logger) (string, error) {
	dir := store.ArchiveDir(root)
	a := archive.FromResult(res)
	path := archive.Path(dir, a)

	allowed, err := pathutil.ArchiveDirs(root)
	if err != nil {
		return "", err
	}
	if err := pathutil.ValidatePath(path, allowed); err != nil {
		return "", fmt.Errorf("archive path rejected: %w", err)
	}
	if err := archive.Write(path, a); err != nil {
		return "", fmt.Errorf("failed to write archive: %w", err)
	}

	policy, err := retentionPolicy(cfg.Output)
	if err != nil {
		return "", err
	}
	if policy != nil {
		deleted, err := archive.ApplyRetention(dir, policy)
		if err != nil {
			return path, fmt.Errorf("archive retention: %w", err)
		}
		if len(deleted) > 0 {
			logger.Info("old archives removed", "count", len(deleted))
		}
	}
	return path, nil
}

// retentionPolicy builds the archive policy from the output config. It
// returns nil when no limit is configured.
func retentionPolicy(o config.OutputConfig) (archive.RetentionPolicy, error) {
	maxAge, err := o.ParsedMaxAge()
	if err != nil {
		return nil, err
	}
	return buildPolicy(o.KeepArchives, maxAge), nil
}

func buildPolicy(keep int, maxAge time.Duration) archive.RetentionPolicy {
	var policies []archive.RetentionPolicy
	if keep > 0 {
		policies = append(policies, &archive.CountPolicy{MaxCount: keep})
	}
	if maxAge > 0 {
		policies = append(policies, &archive.AgePolicy{MaxAge: maxAge})
	}
	switch len(policies) {
	case 0:
		return nil
	case 1:
		return policies[0]
	default:
		return &archive.CompositePolicy{Policies: policies}
	}
}

// writeFile creates path and hands it to fn. "-" writes to stdout instead.
func writeFile(stdout io.Writer, path string, fn func(io.Writer) error) error {
	if path == "-" {
		return fn(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// serveMetrics starts the /metrics endpoint in the background.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Surface immediate bind failures.
	select {
	case err := <-errCh:
		if err != nil {
			return nil, fmt.Errorf("metrics server: %w", err)
		}
	case <-time.After(100 * time.Millisecond):
	}
	logger.Info("serving metrics", "addr", addr, "path", "/metrics")
	return srv, nil
}

func shutdownMetrics(srv *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown", "error", err)
	}
}
