// Package config provides unified configuration loading for ash.
// It supports loading from YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/flynn33/ash-model/internal/archive"
	"github.com/flynn33/ash-model/internal/codeword"
	"github.com/flynn33/ash-model/internal/constants"
	"github.com/flynn33/ash-model/internal/hypercube"
	"github.com/flynn33/ash-model/internal/simulation"
)

// AshConfig contains all ash configuration settings.
type AshConfig struct {
	// Simulation holds the experiment parameters.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Output controls where results are written.
	Output OutputConfig `json:"output" yaml:"output"`

	// Logging contains settings for operational and tick logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// SimulationConfig describes one experiment.
type SimulationConfig struct {
	Dim       int     `json:"dim" yaml:"dim" validate:"gt=0"`
	Agents    int     `json:"agents" yaml:"agents" validate:"gt=0"`
	Ticks     int     `json:"ticks" yaml:"ticks" validate:"gte=0"`
	NoiseProb float64 `json:"noise_prob" yaml:"noise_prob" validate:"gte=0,lte=1"`

	// Seed fixes the random stream. Unset means a fresh seed per run.
	Seed *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	// Workers > 1 enables parallel ticks with per-agent noise streams.
	Workers int `json:"workers" yaml:"workers" validate:"gte=0"`

	// Preset names a built-in codeword set. Ignored when Codewords is set.
	Preset string `json:"preset" yaml:"preset"`

	// Codewords are explicit bit strings of length Dim.
	Codewords []string `json:"codewords,omitempty" yaml:"codewords,omitempty" validate:"omitempty,dive,bits"`
}

// OutputConfig controls persistence.
type OutputConfig struct {
	// Scope selects the data directory: "local" (./.ash) or "global" (~/.ash).
	Scope string `json:"scope" yaml:"scope" validate:"oneof=local global"`

	// Save stores every completed run in the run database.
	Save bool `json:"save" yaml:"save"`

	// KeepArchives is the number of archives kept by prune. Zero disables the count policy.
	KeepArchives int `json:"keep_archives" yaml:"keep_archives" validate:"gte=0"`

	// MaxArchiveAge removes archives older than this ("30d", "2w", "72h"). Empty disables it.
	MaxArchiveAge string `json:"max_archive_age,omitempty" yaml:"max_archive_age,omitempty"`
}

// LoggingConfig configures ash's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables the per-tick trace in .ash/ticks.jsonl.
	// "trace" additionally logs every tick to stderr.
	Level string `json:"level" yaml:"level" validate:"omitempty,oneof=info debug trace"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics, e.g. ":9109". Empty disables it.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty" validate:"omitempty,hostname_port"`
}

// ParsedMaxAge returns MaxArchiveAge as a duration, zero when unset.
func (o OutputConfig) ParsedMaxAge() (time.Duration, error) {
	if o.MaxArchiveAge == "" {
		return 0, nil
	}
	d, err := archive.ParseDuration(o.MaxArchiveAge)
	if err != nil {
		return 0, fmt.Errorf("%w: output.max_archive_age: %v", hypercube.ErrConfig, err)
	}
	return d, nil
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("bits", validateBits)
}

// validateBits accepts non-empty strings made only of '0' and '1'.
func validateBits(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '0' && r != '1' {
			return false
		}
	}
	return true
}

// Default returns an AshConfig with the reference experiment.
func Default() *AshConfig {
	return &AshConfig{
		Simulation: SimulationConfig{
			Dim:       constants.DefaultDim,
			Agents:    constants.DefaultAgents,
			Ticks:     constants.DefaultTicks,
			NoiseProb: constants.DefaultNoiseProb,
			Preset:    constants.DefaultPreset,
		},
		Output: OutputConfig{
			Scope:        string(constants.ScopeLocal),
			KeepArchives: constants.MaxArchiveRotation,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Path returns the user configuration file, ~/.ash/config.yaml.
func Path() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.DataDirName, constants.ConfigFileName), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.ash/config.yaml -> environment variables
func Load() (*AshConfig, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit config file. An empty path means the
// default location.
func LoadFrom(path string) (*AshConfig, error) {
	config, err := ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	return config, nil
}

// ReadFile returns the configuration stored at path, or the defaults when
// no file exists there. Environment overrides are not applied, so the result
// is safe to modify and Save. An empty path means the default location.
func ReadFile(path string) (*AshConfig, error) {
	if path == "" {
		p, err := Path()
		if err != nil {
			return Default(), nil
		}
		path = p
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys missing
// from the file keep their defaults.
func LoadFromFile(path string) (*AshConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: parsing config file: %v", hypercube.ErrConfig, err)
	}

	return config, nil
}

// Save writes the configuration to path, creating its directory.
func (c *AshConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid. Every failure wraps
// hypercube.ErrConfig.
func (c *AshConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", hypercube.ErrConfig, err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, describe(fe))
		}
		return fmt.Errorf("%w: %s", hypercube.ErrConfig, strings.Join(msgs, "; "))
	}

	sim := c.Simulation
	if len(sim.Codewords) == 0 {
		set, err := codeword.Preset(sim.Preset)
		if err != nil {
			return err
		}
		if set.Dim() != sim.Dim {
			return fmt.Errorf("%w: preset %q has length %d, dim is %d",
				hypercube.ErrConfig, sim.Preset, set.Dim(), sim.Dim)
		}
	}
	for _, cw := range sim.Codewords {
		if len(cw) != sim.Dim {
			return fmt.Errorf("%w: codeword %q has length %d, dim is %d",
				hypercube.ErrConfig, cw, len(cw), sim.Dim)
		}
	}
	if _, err := c.Output.ParsedMaxAge(); err != nil {
		return err
	}
	return nil
}

// describe turns a validator failure into "simulation.noise_prob: must be lte 1".
func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "bits":
		return fmt.Sprintf("%s: %q is not a bit string", field, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s: must be one of [%s], got %v", field, fe.Param(), fe.Value())
	case "hostname_port":
		return fmt.Sprintf("%s: %v is not a host:port address", field, fe.Value())
	default:
		return fmt.Sprintf("%s: must be %s %s, got %v", field, fe.Tag(), fe.Param(), fe.Value())
	}
}

// Params converts the simulation section into loop parameters and the
// resolved codeword set.
func (s SimulationConfig) Params() (simulation.Params, *codeword.Set, error) {
	var (
		set *codeword.Set
		err error
	)
	if len(s.Codewords) > 0 {
		set, err = codeword.Parse(s.Dim, s.Codewords)
	} else {
		set, err = codeword.Preset(s.Preset)
	}
	if err != nil {
		return simulation.Params{}, nil, err
	}

	p := simulation.Params{
		Dim:       s.Dim,
		Agents:    s.Agents,
		Ticks:     s.Ticks,
		NoiseProb: s.NoiseProb,
		Workers:   s.Workers,
	}
	if s.Seed != nil {
		p.Seed = simulation.SeedPtr(*s.Seed)
	}
	if err := p.Validate(set); err != nil {
		return simulation.Params{}, nil, err
	}
	return p, set, nil
}

// applyEnvOverrides applies ASH_* environment variable overrides. Values that
// do not parse are configuration errors rather than silently ignored.
func applyEnvOverrides(config *AshConfig) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"ASH_DIM", &config.Simulation.Dim},
		{"ASH_AGENTS", &config.Simulation.Agents},
		{"ASH_TICKS", &config.Simulation.Ticks},
		{"ASH_WORKERS", &config.Simulation.Workers},
		{"ASH_KEEP_ARCHIVES", &config.Output.KeepArchives},
	}
	for _, e := range ints {
		if v := os.Getenv(e.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s=%q is not an integer", hypercube.ErrConfig, e.key, v)
			}
			*e.dst = n
		}
	}

	if v := os.Getenv("ASH_NOISE_PROB"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: ASH_NOISE_PROB=%q is not a number", hypercube.ErrConfig, v)
		}
		config.Simulation.NoiseProb = f
	}

	if v := os.Getenv("ASH_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: ASH_SEED=%q is not an unsigned integer", hypercube.ErrConfig, v)
		}
		config.Simulation.Seed = &n
	}

	if v := os.Getenv("ASH_PRESET"); v != "" {
		config.Simulation.Preset = v
		config.Simulation.Codewords = nil
	}

	if v := os.Getenv("ASH_CODEWORDS"); v != "" {
		config.Simulation.Codewords = strings.Split(v, ",")
	}

	if v := os.Getenv("ASH_SCOPE"); v != "" {
		config.Output.Scope = v
	}

	if v := os.Getenv("ASH_SAVE"); v != "" {
		config.Output.Save = v == "true" || v == "1"
	}

	if v := os.Getenv("ASH_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("ASH_METRICS_ADDR"); v != "" {
		config.Metrics.Addr = v
	}
	return nil
}
