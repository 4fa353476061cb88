package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/flynn33/ash-model/internal/config"
	"github.com/flynn33/ash-model/internal/constants"
	"github.com/flynn33/ash-model/internal/store"
	"github.com/spf13/cobra"
)

// Overridden with -ldflags "-X main.version=..." at release time.
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ash",
		Short: "ASH model - agents on the Boolean hypercube",
		Long: `ash simulates a population of agents on the D-dimensional Boolean
hypercube. Every tick one codeword is XOR-ed into every agent and each
agent may flip one random bit. The occupancy of each Hamming-weight plane
is recorded and compared against Binomial(D, 1/2).`,
		SilenceUsage: true,
	}

	addPersistentFlags(rootCmd)

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newRunsCmd(),
		newExportCmd(),
		newPlotCmd(),
		newArchiveCmd(),
		newConfigCmd(),
		newPresetsCmd(),
	)
	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool("json", false, "Output as JSON")
	cmd.PersistentFlags().String("root", ".", "Project root directory (local scope)")
	cmd.PersistentFlags().String("config", "", "Config file (default ~/.ash/config.yaml)")
	cmd.PersistentFlags().String("scope", "", "Data directory scope: local or global (default from config)")
}

// loadConfig loads the configuration named by --config, or the default one,
// with environment overrides applied.
func loadConfig(cmd *cobra.Command) (*config.AshConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// dataRoot returns the directory whose .ash subdirectory holds the run
// database and archives.
func dataRoot(cmd *cobra.Command, cfg *config.AshConfig) (string, error) {
	scope := constants.Scope(cfg.Output.Scope)
	if s, _ := cmd.Flags().GetString("scope"); s != "" {
		scope = constants.Scope(s)
	}
	if !scope.Valid() {
		return "", fmt.Errorf("invalid scope %q (valid: local, global)", scope)
	}
	projectRoot, _ := cmd.Flags().GetString("root")
	return store.RootFor(scope, projectRoot)
}

// openStore opens the run database selected by the flags and config.
func openStore(cmd *cobra.Command) (*store.SQLiteRunStore, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	root, err := dataRoot(cmd, cfg)
	if err != nil {
		return nil, err
	}
	s, err := store.NewSQLiteRunStore(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open run database: %w", err)
	}
	return s, nil
}

func jsonFlag(cmd *cobra.Command) bool {
	jsonOut, _ := cmd.Flags().GetBool("json")
	return jsonOut
}

func writeJSON(w io.Writer, v interface{}) error {
	return json.NewEncoder(w).Encode(v)
}

// shortID abbreviates a run ID for tables and default file names.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
