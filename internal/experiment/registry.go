package experiment

import (
	"fmt"
	"sort"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/config"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/control"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/integrators"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/logging"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/metrics"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/mpc"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/nlp"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/physics"
)

// ControllerDeps is what a controller factory may draw on.
type ControllerDeps struct {
	Config   *config.Config
	Model    dynamo.Model
	Setpoint mpc.SetpointSource
	Sink     mpc.ControlSink
	Logger   *logging.Logger
	Solver   nlp.Factory
}

type ControllerFactory func(ControllerDeps) (dynamo.Controller, error)

type Registry struct {
	models      map[string]func() dynamo.Model
	integrators map[string]func() dynamo.Integrator
	controllers map[string]ControllerFactory
}

func NewRegistry() *Registry {
	r := &Registry{
		models:      make(map[string]func() dynamo.Model),
		integrators: make(map[string]func() dynamo.Integrator),
		controllers: make(map[string]ControllerFactory),
	}

	r.models["rate_damped"] = func() dynamo.Model { return physics.NewRateDamped() }
	r.models["coupled"] = func() dynamo.Model { return physics.NewCoupled() }

	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }

	r.controllers["none"] = func(ControllerDeps) (dynamo.Controller, error) {
		return control.NewNone(dynamo.Dim), nil
	}
	r.controllers["pid"] = func(d ControllerDeps) (dynamo.Controller, error) {
		p := d.Config.PID
		return control.NewPID(p.Kp, p.Ki, p.Kd, d.Setpoint), nil
	}
	r.controllers["mpc"] = func(d ControllerDeps) (dynamo.Controller, error) {
		return mpc.New(d.Config.ControllerConfig(), d.Model, d.Solver,
			mpc.WithSetpoint(d.Setpoint), mpc.WithSink(d.Sink), mpc.WithLogger(d.Logger))
	}

	return r
}

// RegisterModel adds or replaces a model constructor.
func (r *Registry) RegisterModel(name string, fn func() dynamo.Model) {
	r.models[name] = fn
}

// RegisterController adds or replaces a controller factory.
func (r *Registry) RegisterController(name string, fn ControllerFactory) {
	r.controllers[name] = fn
}

func (r *Registry) GetModel(name string) (dynamo.Model, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetController(name string, deps ControllerDeps) (dynamo.Controller, error) {
	fn, ok := r.controllers[name]
	if !ok {
		return nil, fmt.Errorf("unknown controller: %s", name)
	}
	return fn(deps)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ListModels() []string      { return sortedKeys(r.models) }
func (r *Registry) ListControllers() []string { return sortedKeys(r.controllers) }

// DefaultMetrics are recorded for every run. Solver statistics are added
// when the controller reports them.
func (r *Registry) DefaultMetrics(cfg *config.Config, setpoint mpc.SetpointSource, ctrl dynamo.Controller) []dynamo.Metric {
	ms := []dynamo.Metric{
		metrics.NewTrackingRMS(setpoint),
		metrics.NewFinalError(setpoint),
		metrics.NewControlEffort(),
		metrics.NewBoundViolations(cfg.MPC.StateBound, cfg.MPC.ControlBound),
	}
	if src, ok := ctrl.(metrics.StatsSource); ok {
		ms = append(ms,
			metrics.NewConvergenceRate(src),
			metrics.NewMeanIterations(src),
			metrics.NewMeanSolveTime(src),
		)
	}
	return ms
}
