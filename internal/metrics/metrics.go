// Package metrics exposes simulation progress as Prometheus metrics.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flynn33/ash-model/internal/simulation"
)

const namespace = "ash"

// Metrics records per-tick statistics. It implements simulation.Observer.
type Metrics struct {
	ticks     prometheus.Counter
	flips     prometheus.Counter
	draws     *prometheus.CounterVec
	duration  prometheus.Histogram
	occupancy *prometheus.GaugeVec
}

var _ simulation.Observer = (*Metrics)(nil)

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "ticks_total",
			Help:      "Ticks completed across all runs.",
		}),
		flips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "noise",
			Name:      "flips_total",
			Help:      "Bits flipped by the noise model.",
		}),
		draws: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "codeword",
			Name:      "draws_total",
			Help:      "Codeword draws by index in the active set.",
		}, []string{"index"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one tick.",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		occupancy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "occupancy",
			Name:      "agents",
			Help:      "Agents per Hamming weight at the latest tick.",
		}, []string{"weight"}),
	}

	for _, c := range []prometheus.Collector{m.ticks, m.flips, m.draws, m.duration, m.occupancy} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
	}
	return m, nil
}

// ObserveTick updates the collectors from one recorded row. The initial
// row only sets the occupancy gauge.
func (m *Metrics) ObserveTick(ts simulation.TickStats) {
	for k, c := range ts.Counts {
		m.occupancy.WithLabelValues(strconv.Itoa(k)).Set(float64(c))
	}
	if ts.Tick == 0 {
		return
	}
	m.ticks.Inc()
	m.flips.Add(float64(ts.Flips))
	m.draws.WithLabelValues(strconv.Itoa(ts.Codeword)).Inc()
	m.duration.Observe(ts.Duration.Seconds())
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
