package visualization

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/flynn33/ash-model/internal/constants"
	"github.com/flynn33/ash-model/internal/hypercube"
	"github.com/flynn33/ash-model/internal/occupancy"
)

// MaxHeatmapColumns caps the number of tick columns drawn. Longer histories
// are sampled at a fixed stride.
const MaxHeatmapColumns = 500

// historyGrid adapts an occupancy history to plotter.GridXYZ with ticks on
// the x axis and Hamming weight on the y axis.
type historyGrid struct {
	rows   [][]int
	stride int
}

func newHistoryGrid(m [][]int) historyGrid {
	stride := (len(m) + MaxHeatmapColumns - 1) / MaxHeatmapColumns
	if stride < 1 {
		stride = 1
	}
	return historyGrid{rows: m, stride: stride}
}

func (g historyGrid) Dims() (c, r int) {
	return (len(g.rows) + g.stride - 1) / g.stride, len(g.rows[0])
}

func (g historyGrid) Z(c, r int) float64 { return float64(g.rows[c*g.stride][r]) }
func (g historyGrid) X(c int) float64 { return float64(c * g.stride) }
func (g historyGrid) Y(r int) float64 { return float64(r) }

// HeatmapPlot builds the occupancy-over-time heatmap of a history.
func HeatmapPlot(h *occupancy.History) (*plot.Plot, error) {
	if h == nil || h.Len() < 2 {
		return nil, fmt.Errorf("%w: heatmap needs at least two history rows", hypercube.ErrConfig)
	}

	grid := newHistoryGrid(h.Matrix())
	hm := plotter.NewHeatMap(grid, palette.Heat(16, 1))

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Occupancy over time (%d agents, D=%d)", h.Agents(), h.Dim())
	p.X.Label.Text = "Tick"
	p.Y.Label.Text = "Hamming Weight Plane"
	p.Add(hm)
	return p, nil
}

// RenderHeatmap draws the occupancy history to path. The image format
// follows the file extension.
func RenderHeatmap(h *occupancy.History, path string) error {
	if err := checkFormat(path); err != nil {
		return err
	}
	p, err := HeatmapPlot(h)
	if err != nil {
		return err
	}
	w := constants.DefaultPlotWidthInches * vg.Inch
	ht := constants.DefaultPlotHeightInches * vg.Inch
	if err := p.Save(w, ht, path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}
