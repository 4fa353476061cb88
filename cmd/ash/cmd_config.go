package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flynn33/ash-model/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage ash configuration",
		Long: `View and modify ash configuration settings.

Configuration is stored in ~/.ash/config.yaml unless --config names
another file. ASH_* environment variables override file values.

Examples:
  ash config list                              # Show all settings
  ash config get simulation.ticks              # Get a specific setting
  ash config set simulation.noise_prob 0.02    # Set a setting
  ash config set simulation.seed none          # Clear the fixed seed`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
		newConfigPathCmd(),
	)
	return cmd
}

// configKeys lists the settable keys in display order.
var configKeys = []string{
	"simulation.dim",
	"simulation.agents",
	"simulation.ticks",
	"simulation.noise_prob",
	"simulation.seed",
	"simulation.workers",
	"simulation.preset",
	"simulation.codewords",
	"output.scope",
	"output.save",
	"output.keep_archives",
	"output.max_archive_age",
	"logging.level",
	"metrics.addr",
}

func configPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	return config.Path()
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonFlag(cmd) {
				return writeJSON(out, cfg)
			}

			path, _ := configPath(cmd)
			fmt.Fprintf(out, "Configuration (%s):\n", path)
			section := ""
			for _, key := range configKeys {
				if s, _, _ := strings.Cut(key, "."); s != section {
					section = s
					fmt.Fprintln(out)
				}
				value, _ := getConfigValue(cfg, key)
				fmt.Fprintf(out, "  %-24s %v\n", key+":", value)
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			value, found := getConfigValue(cfg, key)
			if !found {
				if jsonFlag(cmd) {
					writeJSON(out, map[string]interface{}{
						"error": "key not found",
						"key":   key,
					})
				}
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonFlag(cmd) {
				return writeJSON(out, map[string]interface{}{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(out, "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			// Read the file without env overrides so they are not persisted.
			cfg, err := config.ReadFile(path)
			if err != nil {
				return err
			}
			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonFlag(cmd) {
				return writeJSON(out, map[string]interface{}{
					"status": "updated",
					"key":    key,
					"value":  value,
				})
			}
			fmt.Fprintf(out, "Set %s = %s\n", key, value)
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			if jsonFlag(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"path": path})
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.AshConfig, key string) (interface{}, bool) {
	switch key {
	case "simulation.dim":
		return cfg.Simulation.Dim, true
	case "simulation.agents":
		return cfg.Simulation.Agents, true
	case "simulation.ticks":
		return cfg.Simulation.Ticks, true
	case "simulation.noise_prob":
		return cfg.Simulation.NoiseProb, true
	case "simulation.seed":
		if cfg.Simulation.Seed == nil {
			return "(random)", true
		}
		return strconv.FormatUint(*cfg.Simulation.Seed, 10), true
	case "simulation.workers":
		return cfg.Simulation.Workers, true
	case "simulation.preset":
		return cfg.Simulation.Preset, true
	case "simulation.codewords":
		if len(cfg.Simulation.Codewords) == 0 {
			return "(preset)", true
		}
		return strings.Join(cfg.Simulation.Codewords, ","), true
	case "output.scope":
		return cfg.Output.Scope, true
	case "output.save":
		return cfg.Output.Save, true
	case "output.keep_archives":
		return cfg.Output.KeepArchives, true
	case "output.max_archive_age":
		return valueOrDefault(cfg.Output.MaxArchiveAge, "(none)"), true
	case "logging.level":
		return cfg.Logging.Level, true
	case "metrics.addr":
		return valueOrDefault(cfg.Metrics.Addr, "(disabled)"), true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key. Range
// checks are left to AshConfig.Validate.
func setConfigValue(cfg *config.AshConfig, key, value string) error {
	atoi := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %s", key, value)
		}
		return n, nil
	}

	var err error
	switch key {
	case "simulation.dim":
		cfg.Simulation.Dim, err = atoi()
	case "simulation.agents":
		cfg.Simulation.Agents, err = atoi()
	case "simulation.ticks":
		cfg.Simulation.Ticks, err = atoi()
	case "simulation.workers":
		cfg.Simulation.Workers, err = atoi()
	case "output.keep_archives":
		cfg.Output.KeepArchives, err = atoi()
	case "simulation.noise_prob":
		f, perr := strconv.ParseFloat(value, 64)
		if perr != nil {
			return fmt.Errorf("invalid probability: %s (must be a number between 0 and 1)", value)
		}
		cfg.Simulation.NoiseProb = f
	case "simulation.seed":
		if value == "" || value == "none" || value == "random" {
			cfg.Simulation.Seed = nil
			return nil
		}
		n, perr := strconv.ParseUint(value, 10, 64)
		if perr != nil {
			return fmt.Errorf("invalid seed: %s (must be an unsigned integer or \"none\")", value)
		}
		cfg.Simulation.Seed = &n
	case "simulation.preset":
		cfg.Simulation.Preset = value
		cfg.Simulation.Codewords = nil
	case "simulation.codewords":
		if value == "" {
			cfg.Simulation.Codewords = nil
			return nil
		}
		cfg.Simulation.Codewords = strings.Split(value, ",")
	case "output.scope":
		cfg.Output.Scope = value
	case "output.save":
		cfg.Output.Save = value == "true" || value == "1"
	case "output.max_archive_age":
		cfg.Output.MaxArchiveAge = value
	case "logging.level":
		cfg.Logging.Level = value
	case "metrics.addr":
		cfg.Metrics.Addr = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return err
}

// valueOrDefault returns the value if non-empty, otherwise the default.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
