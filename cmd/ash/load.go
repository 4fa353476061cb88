package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flynn33/ash-model/internal/archive"
	"github.com/flynn33/ash-model/internal/constants"
	"github.com/flynn33/ash-model/internal/occupancy"
	"github.com/flynn33/ash-model/internal/population"
	"github.com/flynn33/ash-model/internal/report"
)

// runData is a finished run loaded back from the database or an archive.
type runData struct {
	report     report.Run
	history    *occupancy.History
	population *population.Population
}

// loadRun resolves ref as an archive file when it names one, and as a run
// ID or unique ID prefix in the run database otherwise.
func loadRun(cmd *cobra.Command, ref string) (*runData, error) {
	if strings.HasSuffix(ref, constants.ArchiveExtension) {
		if _, err := os.Stat(ref); err == nil {
			return loadArchive(ref)
		}
	}

	s, err := openStore(cmd)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	ctx := cmd.Context()
	rec, err := s.GetRun(ctx, ref)
	if err != nil {
		return nil, err
	}
	history, err := s.LoadHistory(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	pop, err := s.LoadPopulation(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	return &runData{
		report:     report.FromRecord(rec, history),
		history:    history,
		population: pop,
	}, nil
}

func loadArchive(path string) (*runData, error) {
	a, err := archive.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}
	res, err := a.Result()
	if err != nil {
		return nil, err
	}
	return &runData{
		report:     report.FromResult(res),
		history:    res.History,
		population: res.Final,
	}, nil
}
