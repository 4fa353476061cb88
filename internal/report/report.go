// Package report formats run summaries for the terminal and for JSON
// consumers.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/flynn33/ash-model/internal/constants"
	"github.com/flynn33/ash-model/internal/occupancy"
	"github.com/flynn33/ash-model/internal/simulation"
	"github.com/flynn33/ash-model/internal/store"
)

// Palette
var (
	colorTeal  = lipgloss.Color("#20B9B4")
	colorDeep  = lipgloss.Color("#16858E")
	colorMuted = lipgloss.Color("#2C4A54")
	colorGood  = lipgloss.Color("#2CD7C7")
	colorWarn  = lipgloss.Color("#F4D03F")
)

type styles struct {
	title lipgloss.Style
	label lipgloss.Style
	muted lipgloss.Style
	good  lipgloss.Style
	warn  lipgloss.Style
	box   lipgloss.Style
}

// newStyles binds the palette to w so colors are dropped when w is not a
// terminal.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().Bold(true).Foreground(colorTeal),
		label: r.NewStyle().Foreground(colorDeep),
		muted: r.NewStyle().Foreground(colorMuted),
		good:  r.NewStyle().Foreground(colorGood),
		warn:  r.NewStyle().Foreground(colorWarn),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDeep).
			Padding(0, 1),
	}
}

// Run is everything a report shows about one run.
type Run struct {
	RunID     string             `json:"run_id"`
	Seed      uint64             `json:"seed"`
	Params    simulation.Params  `json:"params"`
	Codewords []string           `json:"codewords"`
	Flips     int                `json:"flips"`
	Duration  time.Duration      `json:"duration_ns"`
	Summary   simulation.Summary `json:"summary"`
}

// FromResult builds the report of a completed run.
func FromResult(res *simulation.Result) Run {
	return Run{
		RunID:     res.RunID,
		Seed:      res.Seed,
		Params:    res.Params,
		Codewords: res.Codewords,
		Flips:     res.Flips,
		Duration:  res.Duration,
		Summary:   res.Summarize(),
	}
}

// FromRecord builds the report of a stored run. history supplies the final
// counts since GetRun does not load them.
func FromRecord(rec *store.RunRecord, history *occupancy.History) Run {
	return Run{
		RunID:     rec.ID,
		Seed:      rec.Seed,
		Params:    rec.Params,
		Codewords: rec.Codewords,
		Flips:     rec.Flips,
		Duration:  rec.Duration,
		Summary: simulation.Summary{
			Counts:   history.Final(),
			Mean:     rec.Mean,
			Variance: rec.Variance,
			Fit:      rec.Fit,
		},
	}
}

// PlaneLine formats the count of weight class k out of total agents.
func PlaneLine(k, count, total int) string {
	pct := 0.0
	if total > 0 {
		pct = 100 * float64(count) / float64(total)
	}
	return fmt.Sprintf("Plane %d: %d agents (%.1f%%)", k, count, pct)
}

// Render writes the per-plane occupancy and the fit statistics of s.
func Render(w io.Writer, s simulation.Summary) error {
	st := newStyles(w)
	total := s.Counts.Sum()

	var b strings.Builder
	b.WriteString(st.title.Render("Final occupancy per plane:"))
	b.WriteByte('\n')
	for k, c := range s.Counts {
		b.WriteString(PlaneLine(k, c, total))
		b.WriteByte('\n')
	}

	d := len(s.Counts) - 1
	b.WriteByte('\n')
	fmt.Fprintf(&b, "%s %.4f %s\n", st.label.Render("Mean weight:"), s.Mean,
		st.muted.Render(fmt.Sprintf("(binomial %.4f)", float64(d)/2)))
	fmt.Fprintf(&b, "%s %.4f %s\n", st.label.Render("Variance:"), s.Variance,
		st.muted.Render(fmt.Sprintf("(binomial %.4f)", float64(d)/4)))

	if s.Fit == nil {
		b.WriteString(st.muted.Render("Chi-square: population too small for a fit"))
		b.WriteByte('\n')
	} else {
		verdict := st.good.Render("consistent with Binomial(D, 1/2)")
		if s.Fit.PValue < constants.MinFitPValue {
			verdict = st.warn.Render("departs from Binomial(D, 1/2)")
		}
		fmt.Fprintf(&b, "%s %.3f on %d dof, p=%.4g, %s\n",
			st.label.Render("Chi-square:"), s.Fit.Statistic, s.Fit.DOF, s.Fit.PValue, verdict)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderRun writes a header box describing the run followed by Render.
func RenderRun(w io.Writer, r Run) error {
	st := newStyles(w)

	lines := []string{
		st.title.Render("ASH run " + r.RunID),
		fmt.Sprintf("%s %d   %s %d   %s %d   %s %s",
			st.label.Render("D"), r.Params.Dim,
			st.label.Render("N"), r.Params.Agents,
			st.label.Render("T"), r.Params.Ticks,
			st.label.Render("p"), strconv.FormatFloat(r.Params.NoiseProb, 'g', -1, 64)),
		fmt.Sprintf("%s %d", st.label.Render("seed"), r.Seed),
		fmt.Sprintf("%s %s", st.label.Render("codewords"), strings.Join(r.Codewords, " ")),
		fmt.Sprintf("%s %d   %s %s",
			st.label.Render("noise flips"), r.Flips,
			st.label.Render("elapsed"), r.Duration.Round(time.Millisecond)),
	}
	if _, err := fmt.Fprintln(w, st.box.Render(strings.Join(lines, "\n"))); err != nil {
		return err
	}
	return Render(w, r.Summary)
}

// JSON writes r as indented JSON.
func JSON(w io.Writer, r Run) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
