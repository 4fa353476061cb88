package metrics

import (
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flynn33/ash-model/internal/occupancy"
	"github.com/flynn33/ash-model/internal/simulation"
)

func TestNew_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err, "second registration on the same registry should fail")
}

func TestObserveTick(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.ObserveTick(simulation.TickStats{Tick: 0, Codeword: -1, Counts: occupancy.Histogram{1, 2, 1}})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ticks))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.occupancy.WithLabelValues("1")))

	m.ObserveTick(simulation.TickStats{Tick: 1, Codeword: 3, Flips: 4, Counts: occupancy.Histogram{0, 4, 0}, Duration: time.Millisecond})
	m.ObserveTick(simulation.TickStats{Tick: 2, Codeword: 3, Flips: 1, Counts: occupancy.Histogram{2, 0, 2}, Duration: time.Millisecond})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ticks))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.flips))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.draws.WithLabelValues("3")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.occupancy.WithLabelValues("0")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.occupancy.WithLabelValues("1")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestObserveTick_FromLoop(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	res := simulation.RunScenario(t, simulation.Scenario{
		Name: "metrics",
		Params: simulation.Params{
			Dim: 9, Agents: 100, Ticks: 25, NoiseProb: 0.1,
			Seed: simulation.SeedPtr(5),
		},
		Options: []simulation.Option{simulation.WithObserver(m)},
	})

	assert.Equal(t, 25.0, testutil.ToFloat64(m.ticks))
	assert.Equal(t, float64(res.Flips), testutil.ToFloat64(m.flips))

	var total float64
	for k := 0; k <= 9; k++ {
		total += testutil.ToFloat64(m.occupancy.WithLabelValues(strconv.Itoa(k)))
	}
	assert.Equal(t, 100.0, total)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	m.ObserveTick(simulation.TickStats{Tick: 1, Codeword: 0, Flips: 2, Counts: occupancy.Histogram{1, 1}})

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := string(body)
	assert.True(t, strings.Contains(out, "ash_simulation_ticks_total 1"), out)
	assert.True(t, strings.Contains(out, "ash_noise_flips_total 2"), out)
	assert.True(t, strings.Contains(out, `ash_codeword_draws_total{index="0"} 1`), out)
}
