package mpc

import (
	"fmt"
	"math"
	"time"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/nlp"
)

const (
	// MaxStateBound is the widest admissible attitude bound.
	MaxStateBound = math.Pi / 2
	// MaxControlBound is the widest admissible actuator bound.
	MaxControlBound = 15.0
)

// WarmStartPolicy selects how the initial guess is seeded each cycle.
type WarmStartPolicy string

const (
	// WarmStartInitial reseeds every cycle from the constant guess built at
	// construction.
	WarmStartInitial WarmStartPolicy = "initial"
	// WarmStartPrevious seeds from the previous solution shifted by one node.
	WarmStartPrevious WarmStartPolicy = "previous"
)

// FailSafe selects the control applied when a cycle fails.
type FailSafe string

const (
	FailSafeHoldLast FailSafe = "hold_last"
	FailSafeZero     FailSafe = "zero"
)

type Config struct {
	Horizon      int                 `yaml:"horizon"`
	Step         float64             `yaml:"step"`
	Q            [dynamo.Dim]float64 `yaml:"q"`
	R            [dynamo.Dim]float64 `yaml:"r"`
	StateBound   float64             `yaml:"state_bound"`
	ControlBound float64             `yaml:"control_bound"`
	InitialState [dynamo.Dim]float64 `yaml:"initial_state"`
	WarmStart    WarmStartPolicy     `yaml:"warm_start"`
	FailSafe     FailSafe            `yaml:"fail_safe"`
	// Timeout bounds each solve. Zero leaves only the iteration cap.
	Timeout time.Duration `yaml:"timeout"`

	Solver nlp.Options `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		Horizon:      10,
		Step:         0.1,
		Q:            [dynamo.Dim]float64{5, 5, 5},
		R:            [dynamo.Dim]float64{0, 0, 0},
		StateBound:   MaxStateBound,
		ControlBound: MaxControlBound,
		WarmStart:    WarmStartInitial,
		FailSafe:     FailSafeHoldLast,
		Solver:       nlp.DefaultOptions(),
	}
}

// Validate reports the first structural problem with c.
func (c Config) Validate() error {
	if c.Horizon < 1 {
		return fmt.Errorf("%w: horizon must be at least 1, got %d", ErrInvalidConfig, c.Horizon)
	}
	if !(c.Step > 0) || math.IsInf(c.Step, 0) {
		return fmt.Errorf("%w: step must be positive and finite, got %g", ErrInvalidConfig, c.Step)
	}
	for i := 0; i < dynamo.Dim; i++ {
		if !validWeight(c.Q[i]) {
			return fmt.Errorf("%w: tracking weight q[%d] = %g", ErrInvalidConfig, i, c.Q[i])
		}
		if !validWeight(c.R[i]) {
			return fmt.Errorf("%w: effort weight r[%d] = %g", ErrInvalidConfig, i, c.R[i])
		}
	}
	b, err := NewBounds(c.StateBound, c.ControlBound)
	if err != nil {
		return err
	}
	switch c.WarmStart {
	case WarmStartInitial, WarmStartPrevious, "":
	default:
		return fmt.Errorf("%w: unknown warm start policy %q", ErrInvalidConfig, c.WarmStart)
	}
	switch c.FailSafe {
	case FailSafeHoldLast, FailSafeZero, "":
	default:
		return fmt.Errorf("%w: unknown fail-safe policy %q", ErrInvalidConfig, c.FailSafe)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	for i, v := range c.InitialState {
		if math.IsNaN(v) || math.Abs(v) > b.State {
			return fmt.Errorf("%w: axis %d = %g outside ±%g", ErrInfeasibleStart, i, v, b.State)
		}
	}
	return nil
}

func validWeight(w float64) bool {
	return w >= 0 && !math.IsInf(w, 0)
}

func (c Config) withDefaults() Config {
	if c.WarmStart == "" {
		c.WarmStart = WarmStartInitial
	}
	if c.FailSafe == "" {
		c.FailSafe = FailSafeHoldLast
	}
	return c
}

// Bounds are the symmetric magnitude limits on states and controls.
type Bounds struct {
	State   float64
	Control float64
}

// NewBounds rejects a state bound outside (0, π/2] or a control bound
// outside (0, 15].
func NewBounds(state, control float64) (Bounds, error) {
	if !(state > 0) || state > MaxStateBound {
		return Bounds{}, fmt.Errorf("%w: state bound %g outside (0, π/2]", ErrInvalidConfig, state)
	}
	if !(control > 0) || control > MaxControlBound {
		return Bounds{}, fmt.Errorf("%w: control bound %g outside (0, %g]", ErrInvalidConfig, control, MaxControlBound)
	}
	return Bounds{State: state, Control: control}, nil
}

// Vectors expands b into solver bound vectors for the layout. All defect
// constraints are pinned to [0, 0].
func (b Bounds) Vectors(l Layout) nlp.Bounds {
	out := nlp.Bounds{
		LowerX: make([]float64, l.NumVars()),
		UpperX: make([]float64, l.NumVars()),
		LowerG: make([]float64, l.NumConstraints()),
		UpperG: make([]float64, l.NumConstraints()),
	}
	for i := 0; i < l.NumStates(); i++ {
		out.LowerX[i] = -b.State
		out.UpperX[i] = b.State
	}
	for i := l.NumStates(); i < l.NumVars(); i++ {
		out.LowerX[i] = -b.Control
		out.UpperX[i] = b.Control
	}
	return out
}
