// Package constants provides named constants used throughout the ash-model codebase.
// This centralizes reference parameters and file names in one place.
package constants

// Reference experiment parameters.
const (
	// DefaultDim is the hypercube dimension D of the reference experiment.
	DefaultDim = 9

	// DefaultAgents is the population size N.
	DefaultAgents = 2000

	// DefaultTicks is the number of ticks T.
	DefaultTicks = 2000

	// DefaultNoiseProb is the per-agent, per-tick flip probability p.
	DefaultNoiseProb = 0.01

	// DefaultPreset names the codeword set used when none is configured.
	DefaultPreset = "adinkra"
)

// Goodness-of-fit thresholds.
const (
	// MinFitPValue is the p-value below which a final histogram is reported
	// as inconsistent with N * Binomial(D, 1/2).
	MinFitPValue = 1e-4
)

// On-disk layout. The data directory holds the run database, the tick
// trace and the archives directory.
const (
	// DataDirName is the per-project and per-user data directory.
	DataDirName = ".ash"

	// ConfigFileName is the YAML configuration file inside the user data directory.
	ConfigFileName = "config.yaml"

	// DatabaseFileName is the SQLite run database inside a data directory.
	DatabaseFileName = "ash.db"

	// ArchiveDirName is the archive subdirectory inside a data directory.
	ArchiveDirName = "archives"

	// ArchiveExtension is appended to archive file names.
	ArchiveExtension = ".ash.gz"
)

// Archive retention controls how many archive files are kept.
const (
	// MaxArchiveRotation is the default maximum number of archives to keep.
	MaxArchiveRotation = 10
)

// Plot defaults.
const (
	// DefaultPlotWidthInches and DefaultPlotHeightInches size rendered charts.
	DefaultPlotWidthInches  = 8
	DefaultPlotHeightInches = 5
)
