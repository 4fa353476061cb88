package visualization

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flynn33/ash-model/internal/hypercube"
	"github.com/flynn33/ash-model/internal/occupancy"
)

func sampleHistory(t *testing.T) *occupancy.History {
	t.Helper()
	h, err := occupancy.FromMatrix(3, 4, [][]int{
		{1, 1, 1, 1},
		{0, 2, 2, 0},
		{1, 1, 2, 0},
	})
	if err != nil {
		t.Fatalf("FromMatrix: %v", err)
	}
	return h
}

func TestHistogramTitle(t *testing.T) {
	got := HistogramTitle(2000, 2000, 0.01)
	if !strings.Contains(got, "2000 agents after 2000 ticks, noise p=0.01") {
		t.Errorf("title = %q", got)
	}
}

func TestRenderHistogram_WritesFiles(t *testing.T) {
	dir := t.TempDir()
	h := occupancy.Histogram{4, 36, 144, 336, 504, 504, 336, 144, 36, 4}

	for _, name := range []string{"final.png", "final.svg"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			opts := HistogramOptions{Ticks: 2000, NoiseProb: 0.01, Expected: true}
			if err := RenderHistogram(h, opts, path); err != nil {
				t.Fatalf("RenderHistogram: %v", err)
			}
			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("stat: %v", err)
			}
			if info.Size() == 0 {
				t.Error("rendered file is empty")
			}
		})
	}
}

func TestRenderHistogram_Errors(t *testing.T) {
	dir := t.TempDir()
	h := occupancy.Histogram{1, 2, 1}

	if err := RenderHistogram(h, HistogramOptions{}, filepath.Join(dir, "out.txt")); !errors.Is(err, hypercube.ErrConfig) {
		t.Errorf("unsupported extension error = %v, want ErrConfig", err)
	}
	if err := RenderHistogram(nil, HistogramOptions{}, filepath.Join(dir, "out.png")); !errors.Is(err, hypercube.ErrConfig) {
		t.Errorf("empty histogram error = %v, want ErrConfig", err)
	}
}

func TestRenderHeatmap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.png")
	if err := RenderHeatmap(sampleHistory(t), path); err != nil {
		t.Fatalf("RenderHeatmap: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Fatalf("heatmap not written: %v", err)
	}
}

func TestRenderHeatmap_TooShort(t *testing.T) {
	h, err := occupancy.FromMatrix(3, 4, [][]int{{1, 1, 1, 1}})
	if err != nil {
		t.Fatal(err)
	}
	err = RenderHeatmap(h, filepath.Join(t.TempDir(), "history.png"))
	if !errors.Is(err, hypercube.ErrConfig) {
		t.Errorf("RenderHeatmap error = %v, want ErrConfig", err)
	}
}

func TestHistoryGrid_Stride(t *testing.T) {
	m := make([][]int, 1201)
	for i := range m {
		m[i] = []int{i, 0}
	}
	g := newHistoryGrid(m)
	c, r := g.Dims()
	if g.stride != 3 {
		t.Errorf("stride = %d, want 3", g.stride)
	}
	if c != 401 || r != 2 {
		t.Errorf("Dims() = (%d, %d), want (401, 2)", c, r)
	}
	if got := g.X(c - 1); got != 1200 {
		t.Errorf("X(last) = %v, want 1200", got)
	}
	if got := g.Z(2, 0); got != 6 {
		t.Errorf("Z(2, 0) = %v, want 6", got)
	}
}

func TestRenderText(t *testing.T) {
	out := RenderText(occupancy.Histogram{0, 2, 4, 2}, 8)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), out)
	}

	tests := []struct {
		line   int
		hashes int
		suffix string
	}{
		{0, 0, "0 (0.0%)"},
		{1, 4, "2 (25.0%)"},
		{2, 8, "4 (50.0%)"},
		{3, 4, "2 (25.0%)"},
	}
	for _, tt := range tests {
		l := lines[tt.line]
		if got := strings.Count(l, "#"); got != tt.hashes {
			t.Errorf("line %d has %d hashes, want %d: %q", tt.line, got, tt.hashes, l)
		}
		if !strings.HasSuffix(l, tt.suffix) {
			t.Errorf("line %d = %q, want suffix %q", tt.line, l, tt.suffix)
		}
	}
}

func TestRenderText_Empty(t *testing.T) {
	out := RenderText(occupancy.Histogram{0, 0}, 0)
	if strings.Contains(out, "#") {
		t.Errorf("empty histogram drew bars:\n%s", out)
	}
}
