// Package archive writes completed runs to portable, checksummed files and
// manages their retention.
package archive

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/flynn33/ash-model/internal/constants"
	"github.com/flynn33/ash-model/internal/occupancy"
	"github.com/flynn33/ash-model/internal/population"
	"github.com/flynn33/ash-model/internal/simulation"
)

// Archive is the payload of an archive file: everything needed to reproduce
// the run's outputs without the database.
type Archive struct {
	RunID     string            `json:"run_id"`
	CreatedAt time.Time         `json:"created_at"`
	Seed      uint64            `json:"seed"`
	Params    simulation.Params `json:"params"`
	Codewords []string          `json:"codewords"`
	Codes     []int             `json:"codes"`
	Flips     int               `json:"flips"`
	History   [][]int           `json:"history"`
	Final     []string          `json:"final"`
}

// FromResult captures a completed run.
func FromResult(res *simulation.Result) *Archive {
	return &Archive{
		RunID:     res.RunID,
		CreatedAt: time.Now().UTC(),
		Seed:      res.Seed,
		Params:    res.Params,
		Codewords: res.Codewords,
		Codes:     res.Codes,
		Flips:     res.Flips,
		History:   res.History.Matrix(),
		Final:     res.Final.Strings(),
	}
}

// Restore rebuilds the occupancy history and final population, checking
// that both agree with the recorded parameters.
func (a *Archive) Restore() (*occupancy.History, *population.Population, error) {
	h, err := occupancy.FromMatrix(a.Params.Dim, a.Params.Agents, a.History)
	if err != nil {
		return nil, nil, fmt.Errorf("archive %s: %w", a.RunID, err)
	}
	pop, err := population.FromStrings(a.Final)
	if err != nil {
		return nil, nil, fmt.Errorf("archive %s: %w", a.RunID, err)
	}
	if pop.Len() != a.Params.Agents || pop.Dim() != a.Params.Dim {
		return nil, nil, fmt.Errorf("archive %s: population is %dx%d, want %dx%d",
			a.RunID, pop.Len(), pop.Dim(), a.Params.Agents, a.Params.Dim)
	}
	return h, pop, nil
}

// FileName returns the archive file name for a run created at t. Names sort
// chronologically.
func FileName(runID string, t time.Time) string {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("ash-run-%s-%s%s", t.UTC().Format("20060102-150405"), short, constants.ArchiveExtension)
}

// Path joins dir and the file name for a.
func Path(dir string, a *Archive) string {
	return filepath.Join(dir, FileName(a.RunID, a.CreatedAt))
}

// Result rebuilds the run result recorded in a, so archived runs can be
// reported and exported like fresh ones.
func (a *Archive) Result() (*simulation.Result, error) {
	h, pop, err := a.Restore()
	if err != nil {
		return nil, err
	}
	return &simulation.Result{
		RunID:     a.RunID,
		Seed:      a.Seed,
		Params:    a.Params,
		Codewords: a.Codewords,
		History:   h,
		Final:     pop,
		Flips:     a.Flips,
		Codes:     a.Codes,
		Started:   a.CreatedAt,
	}, nil
}
