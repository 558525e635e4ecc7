package experiment

import (
	"context"
	"fmt"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/config"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/logging"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/mpc"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/nlp"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/physics"
)

// Experiment is one closed-loop run: a simulated plant driven by a
// controller against a setpoint source.
type Experiment struct {
	cfg        *config.Config
	plant      *physics.Plant
	controller dynamo.Controller
	setpoint   mpc.SetpointSource
	simulator  *dynamo.Simulator
}

type Option func(*ControllerDeps)

func WithSink(sink mpc.ControlSink) Option {
	return func(d *ControllerDeps) { d.Sink = sink }
}

func WithLogger(l *logging.Logger) Option {
	return func(d *ControllerDeps) { d.Logger = l }
}

func WithSolver(f nlp.Factory) Option {
	return func(d *ControllerDeps) { d.Solver = f }
}

// Build wires an experiment from cfg. The plant gets its own model instance
// with cfg.PlantParams applied; the controller predicts with the nominal
// model.
func Build(reg *Registry, cfg *config.Config, opts ...Option) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	plantModel, err := reg.GetModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	if len(cfg.PlantParams) > 0 {
		c, ok := plantModel.(dynamo.Configurable)
		if !ok {
			return nil, fmt.Errorf("model %s has no tunable parameters", cfg.Model)
		}
		for name, v := range cfg.PlantParams {
			if err := c.SetParam(name, v); err != nil {
				return nil, fmt.Errorf("plant param %s: %w", name, err)
			}
		}
	}
	nominal, err := reg.GetModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	integ, err := reg.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	deps := ControllerDeps{
		Config:   cfg,
		Model:    nominal,
		Setpoint: cfg.Setpoint.Source(),
		Logger:   logging.Default(),
		Solver:   nlp.NewAugLag,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	ctrl, err := reg.GetController(cfg.Controller, deps)
	if err != nil {
		return nil, err
	}

	e := &Experiment{
		cfg:        cfg,
		plant:      physics.NewPlant(plantModel, cfg.Dt),
		controller: ctrl,
		setpoint:   deps.Setpoint,
	}
	e.simulator = dynamo.New(e.plant, integ, ctrl)
	e.simulator.AddObserver(e.plant)
	for _, m := range reg.DefaultMetrics(cfg, deps.Setpoint, ctrl) {
		e.simulator.AddMetric(m)
	}
	return e, nil
}

func (e *Experiment) simConfig() dynamo.Config {
	return dynamo.Config{
		Dt:            e.cfg.Dt,
		Duration:      e.cfg.Duration,
		Seed:          e.cfg.Seed,
		ValidateState: true,
	}
}

type resetter interface{ Reset() }

func (e *Experiment) reset() {
	e.plant.Reset()
	if r, ok := e.controller.(resetter); ok {
		r.Reset()
	}
}

func (e *Experiment) Run(ctx context.Context) (*dynamo.Result, error) {
	e.reset()
	return e.simulator.Run(ctx, e.cfg.GetInitState(), e.simConfig())
}

// RunWithCallback drives the loop step by step; callback returning false
// stops the run.
func (e *Experiment) RunWithCallback(ctx context.Context, callback func(dynamo.State, dynamo.Control, float64) bool) error {
	e.reset()
	return e.simulator.RunWithCallback(ctx, e.cfg.GetInitState(), e.simConfig(), callback)
}

func (e *Experiment) Config() *config.Config { return e.cfg }
func (e *Experiment) Controller() dynamo.Controller { return e.controller }
func (e *Experiment) Setpoint() mpc.SetpointSource { return e.setpoint }
func (e *Experiment) Plant() *physics.Plant { return e.plant }
func (e *Experiment) GetSimulator() *dynamo.Simulator { return e.simulator }
