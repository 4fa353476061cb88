package visualization

import (
	"fmt"
	"strings"

	"github.com/flynn33/ash-model/internal/occupancy"
)

// DefaultTextWidth is the bar width used when RenderText gets width <= 0.
const DefaultTextWidth = 50

// RenderText draws the histogram as one ASCII bar per weight class, scaled
// so the fullest class spans width characters.
func RenderText(h occupancy.Histogram, width int) string {
	if width <= 0 {
		width = DefaultTextWidth
	}
	peak := 0
	for _, c := range h {
		peak = max(peak, c)
	}
	total := h.Sum()

	var b strings.Builder
	for k, c := range h {
		n := 0
		if peak > 0 {
			n = (c*width + peak/2) / peak
		}
		pct := 0.0
		if total > 0 {
			pct = 100 * float64(c) / float64(total)
		}
		fmt.Fprintf(&b, "%2d | %-*s %d (%.1f%%)\n", k, width, strings.Repeat("#", n), c, pct)
	}
	return b.String()
}
