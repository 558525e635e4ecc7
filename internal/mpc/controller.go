package mpc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/logging"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/nlp"
)

// Phase is the controller lifecycle state.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseBuilt
	PhaseReady
	PhaseSolving
)

var phaseNames = [...]string{"uninitialized", "built", "ready", "solving"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// ControlSink receives the control applied each cycle.
type ControlSink interface {
	Apply(ctx context.Context, u dynamo.Control) error
}

// CycleResult describes one solve. Control is the first control of the
// returned iterate; Applied is what was emitted, which differs from Control
// only when the cycle failed and the fail-safe took over.
type CycleResult struct {
	Cycle      int
	Time       float64
	Desired    dynamo.State
	Control    dynamo.Control
	Applied    dynamo.Control
	States     []dynamo.State
	Controls   []dynamo.Control
	Cost       float64
	Violation  float64
	Iterations int
	Status     nlp.Status
	Converged  bool
	Elapsed    time.Duration
}

// Stats accumulates solve outcomes over the controller's life.
type Stats struct {
	Cycles     int
	Converged  int
	Failed     int
	Timeouts   int
	Rejected   int
	Iterations int
	SolveTime  time.Duration
}

type Option func(*Controller)

func WithSetpoint(src SetpointSource) Option {
	return func(c *Controller) { c.setpoint = src }
}

func WithSink(sink ControlSink) Option {
	return func(c *Controller) { c.sink = sink }
}

func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// Controller runs receding-horizon cycles. Cycles are serialised; Solve and
// Compute may be called from several goroutines but never run concurrently.
type Controller struct {
	mu sync.Mutex

	cfg      Config
	horizon  *Horizon
	solver   nlp.Solver
	tracker  *Tracker
	warm     *WarmStart
	setpoint SetpointSource
	sink     ControlSink
	log      *logging.Logger

	phase     Phase
	cycle     int
	last      dynamo.Control
	desired   dynamo.State
	lastFault error
	stats     Stats
}

// New builds the horizon and binds a solver to it.
func New(cfg Config, model dynamo.Model, factory nlp.Factory, opts ...Option) (*Controller, error) {
	if factory == nil {
		factory = nlp.NewAugLag
	}
	cfg = cfg.withDefaults()

	c := &Controller{cfg: cfg, phase: PhaseUninitialized}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logging.Default()
	}

	hz, err := BuildHorizon(cfg, model)
	if err != nil {
		return nil, err
	}
	c.horizon = hz
	c.phase = PhaseBuilt

	solver, err := factory(hz.Problem, cfg.Solver)
	if err != nil {
		return nil, fmt.Errorf("mpc: creating solver: %w", err)
	}
	c.solver = solver

	x0 := dynamo.State(append([]float64(nil), cfg.InitialState[:]...))
	c.tracker = NewTracker(cfg.Step, x0)
	if c.warm, err = NewWarmStart(hz.Layout, x0, cfg.WarmStart); err != nil {
		return nil, err
	}
	if c.setpoint == nil {
		c.setpoint = NewHold(x0)
	}
	c.desired = x0.Clone()
	c.last = make(dynamo.Control, dynamo.Dim)
	c.phase = PhaseReady

	c.log.Info("mpc: horizon N=%d h=%g, %d variables, %d constraints, warm start %s",
		hz.Layout.N, cfg.Step, hz.Layout.NumVars(), hz.Layout.NumConstraints(), cfg.WarmStart)
	return c, nil
}

func (c *Controller) Config() Config    { return c.cfg }
func (c *Controller) Horizon() *Horizon { return c.horizon }

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// State returns the tracked attitude and its rate estimate.
func (c *Controller) State() (dynamo.State, dynamo.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker.State(), c.tracker.Rate()
}

func (c *Controller) Desired() dynamo.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.desired.Clone()
}

// LastControl returns the last control that was emitted.
func (c *Controller) LastControl() dynamo.Control {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last.Clone()
}

// LastFault returns the error of the most recent cycle, or nil.
func (c *Controller) LastFault() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFault
}

// UpdateState feeds a new measurement to the tracker. Measurements holding
// NaN or Inf are rejected and leave the tracker untouched.
func (c *Controller) UpdateState(m dynamo.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateState(m)
}

func (c *Controller) updateState(m dynamo.State) error {
	if !m.IsValid() {
		c.stats.Rejected++
		return fmt.Errorf("%w: %v", ErrInvalidMeasurement, m)
	}
	return c.tracker.Update(m)
}

// Solve runs one cycle at the time implied by the cycle count.
func (c *Controller) Solve(ctx context.Context) (*CycleResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.solve(ctx, float64(c.cycle)*c.cfg.Step)
}

// Compute implements dynamo.Controller: it feeds x to the tracker, solves,
// and returns the applied control. Failures are available from LastFault.
func (c *Controller) Compute(x dynamo.State, t float64) dynamo.Control {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.updateState(x); err != nil {
		c.lastFault = &CycleError{Cycle: c.cycle, Phase: c.phase, Wrapped: err}
		c.log.Warn("mpc: %v", c.lastFault)
		return c.emit(context.Background(), c.failSafe())
	}
	res, err := c.solve(context.Background(), t)
	if err != nil && res == nil {
		return c.emit(context.Background(), c.failSafe())
	}
	return res.Applied.Clone()
}

func (c *Controller) solve(ctx context.Context, t float64) (*CycleResult, error) {
	if c.phase != PhaseReady {
		return nil, fmt.Errorf("mpc: cannot solve in phase %s", c.phase)
	}
	c.phase = PhaseSolving
	defer func() { c.phase = PhaseReady }()

	cycle := c.cycle
	c.cycle++
	c.stats.Cycles++

	parent := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	current, rate := c.tracker.State(), c.tracker.Rate()
	desired := c.setpoint.Setpoint(t, current)
	params, err := PackParams(current, desired, rate)
	if err != nil {
		c.lastFault = &CycleError{Cycle: cycle, Phase: PhaseSolving, Wrapped: err}
		c.stats.Failed++
		return nil, c.lastFault
	}
	c.desired = desired

	out, solveErr := c.solver.Solve(ctx, nlp.Args{
		Params: params,
		X0:     c.warm.Guess(),
		Bounds: c.horizon.Bounds,
	})
	if out == nil {
		c.lastFault = &CycleError{Cycle: cycle, Phase: PhaseSolving, Wrapped: solveErr}
		c.stats.Failed++
		c.log.Error("mpc: %v", c.lastFault)
		return nil, c.lastFault
	}

	res := &CycleResult{
		Cycle:      cycle,
		Time:       t,
		Desired:    desired.Clone(),
		Cost:       out.F,
		Violation:  out.Violation,
		Iterations: out.Iterations,
		Status:     out.Status,
		Converged:  solveErr == nil,
		Elapsed:    out.Elapsed,
	}
	if res.Control, err = c.horizon.FirstControl(out.X); err != nil {
		c.lastFault = &CycleError{Cycle: cycle, Phase: PhaseSolving, Wrapped: err}
		c.stats.Failed++
		return nil, c.lastFault
	}
	res.States, res.Controls, _ = c.horizon.Layout.Unpack(out.X)

	c.stats.Iterations += out.Iterations
	c.stats.SolveTime += out.Elapsed

	if solveErr != nil {
		if errors.Is(solveErr, nlp.ErrTimeout) {
			c.stats.Timeouts++
		}
		c.stats.Failed++
		c.lastFault = &CycleError{Cycle: cycle, Phase: PhaseSolving, Wrapped: solveErr}
		c.log.Warn("mpc: %v, applying %s", c.lastFault, c.cfg.FailSafe)
		res.Applied = c.emit(parent, c.failSafe())
		return res, c.lastFault
	}

	if err := c.warm.Accept(out.X); err != nil {
		c.stats.Failed++
		c.lastFault = &CycleError{Cycle: cycle, Phase: PhaseSolving, Wrapped: err}
		c.log.Error("mpc: %v, applying %s", c.lastFault, c.cfg.FailSafe)
		res.Converged = false
		res.Applied = c.emit(parent, c.failSafe())
		return res, c.lastFault
	}
	c.stats.Converged++
	c.lastFault = nil
	c.log.Debug("mpc: cycle %d u0=%.6f u1=%.6f u2=%.6f (%d iterations, %s)",
		cycle, res.Control[0], res.Control[1], res.Control[2], out.Iterations, out.Elapsed)
	res.Applied = c.emit(parent, res.Control)
	return res, nil
}

func (c *Controller) failSafe() dynamo.Control {
	if c.cfg.FailSafe == FailSafeZero {
		return make(dynamo.Control, dynamo.Dim)
	}
	return c.last.Clone()
}

// emit records u as the last applied control and forwards it to the sink.
// Sink errors are logged, not returned.
func (c *Controller) emit(ctx context.Context, u dynamo.Control) dynamo.Control {
	c.last = u.Clone()
	if c.sink != nil {
		if err := c.sink.Apply(ctx, u.Clone()); err != nil {
			c.log.Warn("mpc: control sink: %v", err)
		}
	}
	return u
}

// Reset clears the tracker, warm start and statistics, keeping the built
// horizon and solver.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	x0 := dynamo.State(append([]float64(nil), c.cfg.InitialState[:]...))
	c.tracker = NewTracker(c.cfg.Step, x0)
	c.warm.Reset()
	c.desired = x0
	c.last = make(dynamo.Control, dynamo.Dim)
	c.lastFault = nil
	c.cycle = 0
	c.stats = Stats{}
}

var _ dynamo.Controller = (*Controller)(nil)
var _ dynamo.FaultReporter = (*Controller)(nil)
