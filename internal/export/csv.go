// Package export writes simulation outputs as CSV.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/flynn33/ash-model/internal/hypercube"
)

// WritePopulationCSV writes the final population, one agent per row, under
// the header dim1..dimD.
func WritePopulationCSV(w io.Writer, matrix [][]uint8) error {
	if len(matrix) == 0 {
		return fmt.Errorf("%w: population is empty", hypercube.ErrConfig)
	}
	d := len(matrix[0])

	cw := csv.NewWriter(w)
	header := make([]string, d)
	for j := range header {
		header[j] = "dim" + strconv.Itoa(j+1)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	record := make([]string, d)
	for i, row := range matrix {
		if len(row) != d {
			return fmt.Errorf("%w: agent %d has %d bits, want %d", hypercube.ErrConfig, i, len(row), d)
		}
		for j, b := range row {
			record[j] = strconv.Itoa(int(b))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing agent %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteHistoryCSV writes the occupancy history under the header
// tick,w0..wD. Row t holds the histogram after tick t.
func WriteHistoryCSV(w io.Writer, matrix [][]int) error {
	if len(matrix) == 0 {
		return fmt.Errorf("%w: history is empty", hypercube.ErrConfig)
	}
	width := len(matrix[0])

	cw := csv.NewWriter(w)
	header := make([]string, 0, width+1)
	header = append(header, "tick")
	for k := 0; k < width; k++ {
		header = append(header, "w"+strconv.Itoa(k))
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	record := make([]string, width+1)
	for t, row := range matrix {
		if len(row) != width {
			return fmt.Errorf("%w: tick %d has %d classes, want %d", hypercube.ErrConfig, t, len(row), width)
		}
		record[0] = strconv.Itoa(t)
		for k, c := range row {
			record[k+1] = strconv.Itoa(c)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing tick %d: %w", t, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadPopulationCSV reads a population written by WritePopulationCSV. It also
// accepts a '#'-prefixed header and values written as floats ("1.0",
// "0.000000e+00"), as numeric tools commonly emit.
func ReadPopulationCSV(r io.Reader) ([][]uint8, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty CSV", hypercube.ErrConfig)
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimSpace(strings.TrimPrefix(header[0], "#"))
	}
	for j, name := range header {
		if name != "dim"+strconv.Itoa(j+1) {
			return nil, fmt.Errorf("%w: unexpected header column %d %q", hypercube.ErrConfig, j+1, name)
		}
	}
	cr.FieldsPerRecord = len(header)

	var rows [][]uint8
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", hypercube.ErrConfig, line, err)
		}
		row := make([]uint8, len(record))
		for j, field := range record {
			b, err := parseBit(field)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, j+1, err)
			}
			row[j] = b
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: CSV has no agents", hypercube.ErrConfig)
	}
	return rows, nil
}

func parseBit(s string) (uint8, error) {
	switch s = strings.TrimSpace(s); s {
	case "0":
		return 0, nil
	case "1":
		return 1, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a bit", hypercube.ErrInvariant, s)
	}
	switch f {
	case 0:
		return 0, nil
	case 1:
		return 1, nil
	}
	return 0, fmt.Errorf("%w: value %v is outside {0,1}", hypercube.ErrInvariant, f)
}
