package simulation_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flynn33/ash-model/internal/codeword"
	"github.com/flynn33/ash-model/internal/hypercube"
	"github.com/flynn33/ash-model/internal/logging"
	"github.com/flynn33/ash-model/internal/population"
	"github.com/flynn33/ash-model/internal/simulation"
)

func mustPreset(t *testing.T) *codeword.Set {
	t.Helper()
	set, err := codeword.Preset(codeword.DefaultPreset)
	if err != nil {
		t.Fatalf("Preset: %v", err)
	}
	return set
}

func smallParams(seed uint64) simulation.Params {
	return simulation.Params{
		Dim:       9,
		Agents:    200,
		Ticks:     50,
		NoiseProb: 0.05,
		Seed:      simulation.SeedPtr(seed),
	}
}

func TestNew_ConfigurationErrors(t *testing.T) {
	set := mustPreset(t)
	short, _ := codeword.Parse(8, []string{"11110000"})

	tests := []struct {
		name   string
		mutate func(*simulation.Params)
		set    *codeword.Set
	}{
		{"zero dim", func(p *simulation.Params) { p.Dim = 0 }, set},
		{"zero agents", func(p *simulation.Params) { p.Agents = 0 }, set},
		{"negative ticks", func(p *simulation.Params) { p.Ticks = -1 }, set},
		{"negative noise", func(p *simulation.Params) { p.NoiseProb = -0.01 }, set},
		{"noise above one", func(p *simulation.Params) { p.NoiseProb = 1.01 }, set},
		{"negative workers", func(p *simulation.Params) { p.Workers = -2 }, set},
		{"nil codewords", func(p *simulation.Params) {}, nil},
		{"codeword length mismatch", func(p *simulation.Params) {}, short},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := smallParams(1)
			tt.mutate(&p)
			_, err := simulation.New(p, tt.set)
			if !errors.Is(err, hypercube.ErrConfig) {
				t.Errorf("New() error = %v, want ErrConfig", err)
			}
		})
	}
}

func TestLoop_ConcreteScenario(t *testing.T) {
	res := simulation.RunScenario(t, simulation.Scenario{
		Name: "d3",
		Params: simulation.Params{
			Dim: 3, Agents: 4, Ticks: 1, NoiseProb: 0,
			Seed: simulation.SeedPtr(1),
		},
		Codewords: []string{"110"},
		Initial:   [][]uint8{{0, 0, 0}, {1, 1, 1}, {1, 0, 0}, {0, 1, 1}},
	})

	wantStates := []string{"110", "001", "010", "101"}
	for i, s := range res.Final.Strings() {
		if s != wantStates[i] {
			t.Errorf("agent %d = %s, want %s", i, s, wantStates[i])
		}
	}

	wantRows := [][]int{
		{1, 1, 1, 1}, // initial: weights 0,3,1,2
		{0, 2, 2, 0},
	}
	got := res.History.Matrix()
	if len(got) != len(wantRows) {
		t.Fatalf("history has %d rows, want %d", len(got), len(wantRows))
	}
	for i := range wantRows {
		for k := range wantRows[i] {
			if got[i][k] != wantRows[i][k] {
				t.Errorf("row %d class %d = %d, want %d", i, k, got[i][k], wantRows[i][k])
			}
		}
	}
	simulation.AssertRowsSumToAgents(t, res)
}

func TestLoop_StateMachine(t *testing.T) {
	loop, err := simulation.New(simulation.Params{
		Dim: 9, Agents: 10, Ticks: 2, NoiseProb: 0.1, Seed: simulation.SeedPtr(3),
	}, mustPreset(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if loop.State() != simulation.NotStarted {
		t.Fatalf("initial state = %s", loop.State())
	}
	if err := loop.Step(ctx); err == nil {
		t.Error("Step before Initialize should fail")
	}
	if _, err := loop.Result(); err == nil {
		t.Error("Result before completion should fail")
	}
	if loop.Population() != nil || loop.History() != nil {
		t.Error("population and history should be nil before Initialize")
	}

	if err := loop.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if loop.State() != simulation.Initialized {
		t.Errorf("state after Initialize = %s", loop.State())
	}
	if err := loop.Initialize(); err == nil {
		t.Error("second Initialize should fail")
	}
	if loop.History().Len() != 1 {
		t.Errorf("history rows after Initialize = %d, want 1", loop.History().Len())
	}

	if err := loop.Step(ctx); err != nil {
		t.Fatalf("Step 1: %v", err)
	}
	if loop.State() != simulation.Running || loop.Tick() != 1 {
		t.Errorf("after tick 1: state=%s tick=%d", loop.State(), loop.Tick())
	}

	if err := loop.Step(ctx); err != nil {
		t.Fatalf("Step 2: %v", err)
	}
	if loop.State() != simulation.Completed {
		t.Errorf("state after last tick = %s, want completed", loop.State())
	}
	if err := loop.Step(ctx); err == nil {
		t.Error("Step after completion should fail")
	}

	res, err := loop.Result()
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if res.History.Len() != 3 || len(res.Codes) != 2 {
		t.Errorf("rows=%d codes=%d, want 3 and 2", res.History.Len(), len(res.Codes))
	}
	if res.Seed != 3 || res.RunID == "" {
		t.Errorf("seed=%d runID=%q", res.Seed, res.RunID)
	}
}

func TestState_String(t *testing.T) {
	tests := map[simulation.State]string{
		simulation.NotStarted:  "not-started",
		simulation.Initialized: "initialized",
		simulation.Running:     "running",
		simulation.Completed:   "completed",
		simulation.State(9):    "state(9)",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}

func TestLoop_ZeroTicks(t *testing.T) {
	p := smallParams(4)
	p.Ticks = 0
	res := simulation.RunScenario(t, simulation.Scenario{Name: "zero", Params: p})

	if res.History.Len() != 1 {
		t.Errorf("rows = %d, want 1", res.History.Len())
	}
	if len(res.Codes) != 0 || res.Flips != 0 {
		t.Errorf("codes=%v flips=%d, want none", res.Codes, res.Flips)
	}
	simulation.AssertFinalMatchesPopulation(t, res)
}

func TestLoop_Invariants(t *testing.T) {
	for _, workers := range []int{0, 4} {
		p := smallParams(5)
		p.Workers = workers
		res := simulation.RunScenario(t, simulation.Scenario{Name: "invariants", Params: p})

		simulation.AssertHistoryShape(t, res)
		simulation.AssertRowsSumToAgents(t, res)
		simulation.AssertFinalMatchesPopulation(t, res)

		if err := res.Final.Validate(); err != nil {
			t.Errorf("workers=%d: final population invalid: %v", workers, err)
		}
		for i, w := range res.Final.Weights() {
			if w < 0 || w > p.Dim {
				t.Errorf("workers=%d: agent %d weight %d out of range", workers, i, w)
			}
		}
		for _, c := range res.Codes {
			if c < 0 || c >= 6 {
				t.Errorf("workers=%d: codeword index %d out of range", workers, c)
			}
		}
	}
}

func TestLoop_Reproducible(t *testing.T) {
	a := simulation.RunScenario(t, simulation.Scenario{Name: "a", Params: smallParams(99)})
	b := simulation.RunScenario(t, simulation.Scenario{Name: "b", Params: smallParams(99)})
	simulation.AssertSameRun(t, a, b)

	if a.RunID == b.RunID {
		t.Error("separate runs should get distinct run IDs")
	}
}

func TestLoop_ParallelReproducibleAcrossWorkerCounts(t *testing.T) {
	p2 := smallParams(17)
	p2.Workers = 2
	p7 := smallParams(17)
	p7.Workers = 7

	a := simulation.RunScenario(t, simulation.Scenario{Name: "w2", Params: p2})
	b := simulation.RunScenario(t, simulation.Scenario{Name: "w7", Params: p7})
	simulation.AssertSameRun(t, a, b)
}

func TestLoop_ZeroNoiseIsPureTransform(t *testing.T) {
	set := mustPreset(t)
	p := smallParams(21)
	p.NoiseProb = 0

	loop, err := simulation.New(p, set)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := loop.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	want := loop.Population()

	res, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, idx := range res.Codes {
		if err := want.ApplyTransform(set.At(idx)); err != nil {
			t.Fatalf("ApplyTransform: %v", err)
		}
	}
	if !res.Final.Equal(want) {
		t.Error("with p=0 the final population should equal the XOR of the drawn codewords")
	}
	if res.Flips != 0 {
		t.Errorf("flips = %d, want 0", res.Flips)
	}
}

func TestLoop_CertainNoiseFlipsOneBitPerAgentPerTick(t *testing.T) {
	for _, workers := range []int{1, 3} {
		set, _ := codeword.Parse(9, []string{"101010100"})
		p := smallParams(8)
		p.NoiseProb = 1
		p.Ticks = 5
		p.Workers = workers

		loop, err := simulation.New(p, set)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := loop.Initialize(); err != nil {
			t.Fatalf("Initialize: %v", err)
		}

		for tick := 1; tick <= p.Ticks; tick++ {
			expected := loop.Population()
			if err := expected.ApplyTransform(set.At(0)); err != nil {
				t.Fatal(err)
			}
			if err := loop.Step(context.Background()); err != nil {
				t.Fatalf("Step: %v", err)
			}
			got := loop.Population()
			for i := 0; i < got.Len(); i++ {
				d, _ := got.Agent(i).Distance(expected.Agent(i))
				if d != 1 {
					t.Fatalf("workers=%d tick %d agent %d: %d bits flipped, want 1", workers, tick, i, d)
				}
			}
		}

		res, err := loop.Result()
		if err != nil {
			t.Fatalf("Result: %v", err)
		}
		if res.Flips != p.Agents*p.Ticks {
			t.Errorf("workers=%d: flips = %d, want %d", workers, res.Flips, p.Agents*p.Ticks)
		}
	}
}

func TestLoop_ConvergesToBinomial(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical run")
	}
	sc := simulation.Reference()
	sc.Params.Agents = 1000
	sc.Params.Ticks = 600
	sc.Params.Seed = simulation.SeedPtr(2025)

	res := simulation.RunScenario(t, sc)
	simulation.AssertBinomialFit(t, res, 1e-4)
	simulation.AssertMeanNear(t, res, 0.25)
}

func TestLoop_InitializeWithShapeMismatch(t *testing.T) {
	loop, err := simulation.New(smallParams(1), mustPreset(t))
	if err != nil {
		t.Fatal(err)
	}
	pop, _ := population.FromRows([][]uint8{{0, 1, 0}})
	if err := loop.InitializeWith(pop); !errors.Is(err, hypercube.ErrConfig) {
		t.Errorf("InitializeWith error = %v, want ErrConfig", err)
	}
}

type countingObserver struct {
	ticks []int
	flips int
}

func (c *countingObserver) ObserveTick(ts simulation.TickStats) {
	c.ticks = append(c.ticks, ts.Tick)
	c.flips += ts.Flips
}

func TestLoop_ObserverSeesEveryRow(t *testing.T) {
	obs := &countingObserver{}
	sc := simulation.Scenario{
		Name:    "observed",
		Params:  smallParams(6),
		Options: []simulation.Option{simulation.WithObserver(obs)},
	}
	res := simulation.RunScenario(t, sc)

	if len(obs.ticks) != sc.Params.Ticks+1 {
		t.Fatalf("observer saw %d rows, want %d", len(obs.ticks), sc.Params.Ticks+1)
	}
	for i, tick := range obs.ticks {
		if tick != i {
			t.Errorf("observation %d reported tick %d", i, tick)
		}
	}
	if obs.flips != res.Flips {
		t.Errorf("observer flips = %d, result flips = %d", obs.flips, res.Flips)
	}
}

func TestLoop_InterruptedRunResumes(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			params := smallParams(12)
			params.Workers = workers
			loop, err := simulation.New(params, mustPreset(t))
			if err != nil {
				t.Fatal(err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			if _, err := loop.Run(ctx); !errors.Is(err, context.Canceled) {
				t.Fatalf("Run with cancelled context error = %v, want context.Canceled", err)
			}
			if loop.State() != simulation.Initialized {
				t.Errorf("state after interrupt = %s, want initialized", loop.State())
			}

			res, err := loop.Run(context.Background())
			if err != nil {
				t.Fatalf("resumed Run: %v", err)
			}
			ref := simulation.RunScenario(t, simulation.Scenario{Name: "ref", Params: params})
			simulation.AssertSameRun(t, res, ref)
		})
	}
}

func TestLoop_StepCompletesTickDespiteCancel(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			params := smallParams(3)
			params.Workers = workers
			loop, err := simulation.New(params, mustPreset(t))
			if err != nil {
				t.Fatal(err)
			}
			if err := loop.Initialize(); err != nil {
				t.Fatal(err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			if err := loop.Step(ctx); err != nil {
				t.Fatalf("Step with cancelled context: %v", err)
			}
			if loop.Tick() != 1 {
				t.Errorf("Tick() = %d, want 1", loop.Tick())
			}
			if err := loop.Population().Validate(); err != nil {
				t.Errorf("population after cancelled step: %v", err)
			}

			res, err := loop.Run(context.Background())
			if err != nil {
				t.Fatalf("Run after cancelled step: %v", err)
			}
			ref := simulation.RunScenario(t, simulation.Scenario{Name: "ref", Params: params})
			simulation.AssertSameRun(t, res, ref)
		})
	}
}

func TestLoop_LoggingAndTrace(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	trace := logging.NewTickTrace(dir, "debug")
	defer trace.Close()

	p := smallParams(30)
	p.Ticks = 4
	res := simulation.RunScenario(t, simulation.Scenario{
		Name:   "logged",
		Params: p,
		Options: []simulation.Option{
			simulation.WithLogger(logging.NewLogger("info", &buf)),
			simulation.WithTrace(trace),
			simulation.WithRunID("run-fixed"),
		},
	})

	if res.RunID != "run-fixed" {
		t.Errorf("RunID = %q, want run-fixed", res.RunID)
	}
	out := buf.String()
	if !strings.Contains(out, "simulation initialized") || !strings.Contains(out, "simulation completed") {
		t.Errorf("missing lifecycle log lines: %q", out)
	}
	if strings.Contains(out, "msg=tick") {
		t.Error("per-tick lines should not appear at info level")
	}

	data, err := os.ReadFile(filepath.Join(dir, logging.TraceFile))
	if err != nil {
		t.Fatalf("reading trace: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != p.Ticks+1 {
		t.Errorf("trace has %d lines, want %d", len(lines), p.Ticks+1)
	}
}

func TestResult_Summarize(t *testing.T) {
	res := simulation.RunScenario(t, simulation.Scenario{Name: "summary", Params: smallParams(44)})
	s := res.Summarize()
	if s.Counts.Sum() != res.Params.Agents {
		t.Errorf("summary counts sum = %d", s.Counts.Sum())
	}
	if s.Mean < 0 || s.Mean > float64(res.Params.Dim) {
		t.Errorf("mean %f out of range", s.Mean)
	}
	if s.Fit == nil {
		t.Error("expected a chi-square fit for 200 agents")
	}
}
