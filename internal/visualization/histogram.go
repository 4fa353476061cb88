// Package visualization renders occupancy histograms and histories as
// images (via gonum/plot) and as plain-text bars for terminals.
package visualization

import (
	"fmt"
	"image/color"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/flynn33/ash-model/internal/constants"
	"github.com/flynn33/ash-model/internal/hypercube"
	"github.com/flynn33/ash-model/internal/occupancy"
)

var (
	barColor      = color.RGBA{R: 0, G: 128, B: 128, A: 204}
	expectedColor = color.RGBA{R: 200, G: 60, B: 40, A: 255}
)

// HistogramOptions controls RenderHistogram.
type HistogramOptions struct {
	Ticks     int
	NoiseProb float64

	// Expected overlays the Binomial(D, 1/2) expectation as a dashed line.
	Expected bool

	// Width and Height default to the constants package plot size.
	Width  vg.Length
	Height vg.Length
}

func (o HistogramOptions) size() (vg.Length, vg.Length) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = constants.DefaultPlotWidthInches * vg.Inch
	}
	if h <= 0 {
		h = constants.DefaultPlotHeightInches * vg.Inch
	}
	return w, h
}

// HistogramTitle is the figure title for a run of the given shape.
func HistogramTitle(agents, ticks int, noiseProb float64) string {
	return fmt.Sprintf("ASH Model Simulation: Realm Occupancy Distribution\n(%d agents after %d ticks, noise p=%s)",
		agents, ticks, strconv.FormatFloat(noiseProb, 'g', -1, 64))
}

// HistogramPlot builds the bar chart of a final occupancy histogram.
func HistogramPlot(h occupancy.Histogram, opts HistogramOptions) (*plot.Plot, error) {
	if len(h) == 0 {
		return nil, fmt.Errorf("%w: empty histogram", hypercube.ErrConfig)
	}

	p := plot.New()
	p.Title.Text = HistogramTitle(h.Sum(), opts.Ticks, opts.NoiseProb)
	p.X.Label.Text = "Hamming Weight Plane (Realm Level)"
	p.Y.Label.Text = "Number of Agents"

	values := make(plotter.Values, len(h))
	for k, c := range h {
		values[k] = float64(c)
	}
	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, fmt.Errorf("bar chart: %w", err)
	}
	bars.Color = barColor
	bars.LineStyle.Color = color.Black

	grid := plotter.NewGrid()
	grid.Vertical.Color = nil
	grid.Horizontal.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(grid, bars)

	if opts.Expected {
		expected := occupancy.Expected(len(h)-1, h.Sum())
		pts := make(plotter.XYs, len(expected))
		for k, e := range expected {
			pts[k].X = float64(k)
			pts[k].Y = e
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("expectation line: %w", err)
		}
		line.LineStyle.Color = expectedColor
		line.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
		p.Add(line)
		p.Legend.Add("observed", bars)
		p.Legend.Add("Binomial(D, 1/2)", line)
		p.Legend.Top = true
	}

	names := make([]string, len(h))
	for k := range names {
		names[k] = strconv.Itoa(k)
	}
	p.NominalX(names...)
	return p, nil
}

// RenderHistogram draws the final occupancy histogram to path. The image
// format follows the file extension.
func RenderHistogram(h occupancy.Histogram, opts HistogramOptions, path string) error {
	if err := checkFormat(path); err != nil {
		return err
	}
	p, err := HistogramPlot(h, opts)
	if err != nil {
		return err
	}
	w, ht := opts.size()
	if err := p.Save(w, ht, path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

var imageFormats = map[string]bool{
	".png": true, ".svg": true, ".pdf": true, ".eps": true,
	".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true,
}

func checkFormat(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !imageFormats[ext] {
		return fmt.Errorf("%w: unsupported image format %q for %s", hypercube.ErrConfig, ext, path)
	}
	return nil
}
