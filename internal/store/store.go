// Package store persists completed simulation runs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/flynn33/ash-model/internal/occupancy"
	"github.com/flynn33/ash-model/internal/population"
	"github.com/flynn33/ash-model/internal/simulation"
)

// ErrNotFound is returned when no run matches an ID or ID prefix.
var ErrNotFound = errors.New("run not found")

// RunRecord is one stored run. History and Final are populated by SaveRun
// callers; GetRun and ListRuns leave them nil, use LoadHistory and
// LoadPopulation for the bulk data.
type RunRecord struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Seed      uint64            `json:"seed"`
	Params    simulation.Params `json:"params"`
	Codewords []string          `json:"codewords"`
	Codes     []int             `json:"codes,omitempty"`
	Flips     int               `json:"flips"`
	Duration  time.Duration     `json:"duration"`
	Mean      float64           `json:"mean_weight"`
	Variance  float64           `json:"variance"`
	Fit       *occupancy.Fit    `json:"fit,omitempty"`

	History [][]int  `json:"history,omitempty"`
	Final   []string `json:"final,omitempty"`
}

// RunRecordFromResult captures a completed run and its summary statistics.
func RunRecordFromResult(res *simulation.Result) RunRecord {
	s := res.Summarize()
	return RunRecord{
		ID:        res.RunID,
		CreatedAt: res.Started.UTC(),
		Seed:      res.Seed,
		Params:    res.Params,
		Codewords: res.Codewords,
		Codes:     res.Codes,
		Flips:     res.Flips,
		Duration:  res.Duration,
		Mean:      s.Mean,
		Variance:  s.Variance,
		Fit:       s.Fit,
		History:   res.History.Matrix(),
		Final:     res.Final.Strings(),
	}
}

// RunStore defines the operations on the run database.
type RunStore interface {
	SaveRun(ctx context.Context, rec RunRecord) error

	// GetRun looks a run up by full ID or unique ID prefix.
	GetRun(ctx context.Context, id string) (*RunRecord, error)

	// ListRuns returns runs newest first. limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	LoadHistory(ctx context.Context, id string) (*occupancy.History, error)
	LoadPopulation(ctx context.Context, id string) (*population.Population, error)
	DeleteRun(ctx context.Context, id string) error
	Close() error
}
