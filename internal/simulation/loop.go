package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flynn33/ash-model/internal/codeword"
	"github.com/flynn33/ash-model/internal/hypercube"
	"github.com/flynn33/ash-model/internal/logging"
	"github.com/flynn33/ash-model/internal/noise"
	"github.com/flynn33/ash-model/internal/occupancy"
	"github.com/flynn33/ash-model/internal/population"
	"github.com/flynn33/ash-model/internal/rng"
)

// State is the lifecycle position of a Loop.
type State int

const (
	NotStarted State = iota
	Initialized
	Running
	Completed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Initialized:
		return "initialized"
	case Running:
		return "running"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TickStats describes one recorded row. Tick 0 is the initial population and
// has Codeword -1.
type TickStats struct {
	Tick     int
	Codeword int
	Flips    int
	Counts   occupancy.Histogram
	Duration time.Duration
}

// Observer receives a TickStats after every recorded row.
type Observer interface {
	ObserveTick(TickStats)
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(lp *Loop) { lp.logger = l }
}

// WithTrace sets the JSONL tick trace. A nil trace is allowed.
func WithTrace(t *logging.TickTrace) Option {
	return func(lp *Loop) { lp.trace = t }
}

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(lp *Loop) {
		if o != nil {
			lp.observers = append(lp.observers, o)
		}
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(lp *Loop) { lp.runID = id }
}

// Loop owns every piece of mutable run state: the population, the random
// source and the history. Nothing else may mutate them during a run.
type Loop struct {
	params Params
	set    *codeword.Set
	noise  *noise.Model
	src    *rng.Source

	pop     *population.Population
	history *occupancy.History
	codes   []int
	flips   int

	state   State
	tick    int
	err     error
	started time.Time
	elapsed time.Duration

	runID     string
	logger    *slog.Logger
	trace     *logging.TickTrace
	observers []Observer
}

// New validates the configuration and returns a loop in NotStarted.
// Every configuration error is reported here, before any allocation.
func New(p Params, set *codeword.Set, opts ...Option) (*Loop, error) {
	if err := p.Validate(set); err != nil {
		return nil, err
	}
	model, err := noise.NewModel(p.NoiseProb, p.Dim)
	if err != nil {
		return nil, err
	}

	seed := rng.NewSeed()
	if p.Seed != nil {
		seed = *p.Seed
	}
	p.Seed = SeedPtr(seed)

	l := &Loop{
		params: p,
		set:    set,
		noise:  model,
		src:    rng.New(seed),
		runID:  uuid.NewString(),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Initialize creates a uniformly random population and records row 0.
func (l *Loop) Initialize() error {
	if l.state != NotStarted {
		return fmt.Errorf("initialize: loop is %s", l.state)
	}
	pop, err := population.Initialize(l.params.Agents, l.params.Dim, l.src)
	if err != nil {
		return err
	}
	return l.start(pop)
}

// InitializeWith starts the run from an explicit population, which the loop
// takes ownership of. Its shape must match the parameters.
func (l *Loop) InitializeWith(pop *population.Population) error {
	if l.state != NotStarted {
		return fmt.Errorf("initialize: loop is %s", l.state)
	}
	if pop.Len() != l.params.Agents || pop.Dim() != l.params.Dim {
		return fmt.Errorf("%w: population is %dx%d, want %dx%d",
			hypercube.ErrConfig, pop.Len(), pop.Dim(), l.params.Agents, l.params.Dim)
	}
	if err := pop.Validate(); err != nil {
		return err
	}
	return l.start(pop)
}

func (l *Loop) start(pop *population.Population) error {
	l.started = time.Now()
	l.pop = pop
	l.history = occupancy.NewHistory(l.params.Dim, l.params.Agents, l.params.Ticks+1)
	l.codes = make([]int, 0, l.params.Ticks)

	h := occupancy.Snapshot(pop)
	if err := l.history.Record(h); err != nil {
		l.err = err
		return err
	}
	l.state = Initialized

	l.logger.Info("simulation initialized",
		"run_id", l.runID,
		"dim", l.params.Dim,
		"agents", l.params.Agents,
		"ticks", l.params.Ticks,
		"noise_prob", l.params.NoiseProb,
		"codewords", l.set.Len(),
		"seed", *l.params.Seed,
		"workers", l.params.Workers,
	)
	l.emit(TickStats{Tick: 0, Codeword: -1, Counts: h})
	return nil
}

// Step runs exactly one tick on the population left by the previous tick:
// draw a codeword, transform, apply noise, record the histogram. The tick
// runs to completion even if ctx is cancelled. After row T
// is recorded the loop moves to Completed. Step on a loop with no ticks
// remaining completes it without running a tick.
func (l *Loop) Step(ctx context.Context) error {
	if l.err != nil {
		return l.err
	}
	switch l.state {
	case Initialized, Running:
	default:
		return fmt.Errorf("step: loop is %s", l.state)
	}
	l.state = Running
	if l.tick >= l.params.Ticks {
		l.complete()
		return nil
	}

	if err := l.step(ctx); err != nil {
		l.err = fmt.Errorf("tick %d: %w", l.tick+1, err)
		return l.err
	}
	if l.tick == l.params.Ticks {
		l.complete()
	}
	return nil
}

func (l *Loop) step(ctx context.Context) error {
	// A tick always completes; cancellation is only honored between ticks.
	ctx = context.WithoutCancel(ctx)
	began := time.Now()
	idx, code := l.set.PickRandom(l.src)

	var flips int
	if l.params.Workers > 1 {
		if err := l.pop.ApplyTransformParallel(ctx, code, l.params.Workers); err != nil {
			return err
		}
		base := l.src.Uint64()
		n, err := l.noise.ApplyStreams(ctx, l.pop, base, l.params.Workers)
		if err != nil {
			return err
		}
		flips = n
	} else {
		if err := l.pop.ApplyTransform(code); err != nil {
			return err
		}
		n, err := l.noise.Apply(l.pop, l.src)
		if err != nil {
			return err
		}
		flips = n
	}

	h := occupancy.Snapshot(l.pop)
	if err := l.history.Record(h); err != nil {
		return err
	}
	l.tick++
	l.codes = append(l.codes, idx)
	l.flips += flips

	l.emit(TickStats{
		Tick:     l.tick,
		Codeword: idx,
		Flips:    flips,
		Counts:   h,
		Duration: time.Since(began),
	})
	return nil
}

func (l *Loop) emit(ts TickStats) {
	if ctx := context.Background(); l.logger.Enabled(ctx, logging.LevelTrace) {
		l.logger.Log(ctx, logging.LevelTrace, "tick",
			"tick", ts.Tick, "codeword", ts.Codeword, "flips", ts.Flips, "counts", []int(ts.Counts))
	}
	l.trace.Log(logging.TickRecord{
		RunID:    l.runID,
		Tick:     ts.Tick,
		Codeword: ts.Codeword,
		Flips:    ts.Flips,
		Counts:   ts.Counts,
	})
	for _, o := range l.observers {
		o.ObserveTick(ts)
	}
}

func (l *Loop) complete() {
	l.state = Completed
	l.elapsed = time.Since(l.started)
	final := l.history.Final()
	l.logger.Info("simulation completed",
		"run_id", l.runID,
		"ticks", l.tick,
		"flips", l.flips,
		"mean_weight", occupancy.Mean(final),
		"duration", l.elapsed,
	)
}

// Run initializes the loop if needed and steps until Completed. The context
// is checked between ticks; an interrupted run returns the context error and
// can be resumed by calling Run again.
func (l *Loop) Run(ctx context.Context) (*Result, error) {
	if l.state == NotStarted {
		if err := l.Initialize(); err != nil {
			return nil, err
		}
	}
	for l.state != Completed {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run interrupted after tick %d: %w", l.tick, err)
		}
		if err := l.Step(ctx); err != nil {
			return nil, err
		}
	}
	return l.Result()
}

// Result returns the outputs of a completed run. The returned data are
// copies; the loop's own state stays untouched.
func (l *Loop) Result() (*Result, error) {
	if l.state != Completed {
		return nil, fmt.Errorf("result: loop is %s", l.state)
	}
	codes := make([]int, len(l.codes))
	copy(codes, l.codes)
	return &Result{
		RunID:     l.runID,
		Seed:      *l.params.Seed,
		Params:    l.params,
		Codewords: l.set.Strings(),
		History:   l.history.Clone(),
		Final:     l.pop.Clone(),
		Flips:     l.flips,
		Codes:     codes,
		Started:   l.started,
		Duration:  l.elapsed,
	}, nil
}

// State returns the current lifecycle state.
func (l *Loop) State() State { return l.state }

// Tick returns the number of completed ticks.
func (l *Loop) Tick() int { return l.tick }

// RunID returns the run identifier.
func (l *Loop) RunID() string { return l.runID }

// Seed returns the resolved seed.
func (l *Loop) Seed() uint64 { return *l.params.Seed }

// Population returns a copy of the current population, or nil before
// initialization.
func (l *Loop) Population() *population.Population {
	if l.pop == nil {
		return nil
	}
	return l.pop.Clone()
}

// History returns a copy of the rows recorded so far, or nil before
// initialization.
func (l *Loop) History() *occupancy.History {
	if l.history == nil {
		return nil
	}
	return l.history.Clone()
}
