package mpc

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/integrators"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/nlp"
)

// vecExpr is a 3-vector expression over the decision vector z and the
// parameter vector p. Expressions never write to z or p.
type vecExpr func(z, p []float64) dynamo.State

type scalarExpr func(z, p []float64) float64

// Horizon is the assembled multiple-shooting program.
type Horizon struct {
	Layout  Layout
	Step    float64
	Bounds  nlp.Bounds
	Problem *nlp.Problem

	rates   []vecExpr
	defects []vecExpr
	stages  []scalarExpr
}

// BuildHorizon assembles the program for cfg and model. It runs once per
// controller; the returned Problem is safe for concurrent evaluation as
// long as model is.
func BuildHorizon(cfg Config, model dynamo.Model) (*Horizon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if model == nil {
		return nil, fmt.Errorf("%w: nil dynamics model", ErrInvalidConfig)
	}

	lay := Layout{N: cfg.Horizon}
	if err := lay.check(); err != nil {
		return nil, err
	}
	bounds, err := NewBounds(cfg.StateBound, cfg.ControlBound)
	if err != nil {
		return nil, err
	}

	h := cfg.Step
	Q := mat.NewDiagDense(dynamo.Dim, append([]float64(nil), cfg.Q[:]...))
	R := mat.NewDiagDense(dynamo.Dim, append([]float64(nil), cfg.R[:]...))

	hz := &Horizon{
		Layout: lay,
		Step:   h,
		Bounds: bounds.Vectors(lay),
	}

	// aux[0] = |p_rate|; aux[i+1] = |X(i+1) - X(i)| / h.
	hz.rates = append(hz.rates, func(z, p []float64) dynamo.State {
		return paramSlice(p, paramRate).Abs()
	})
	// g[0:3] = X(0) - p_state.
	hz.defects = append(hz.defects, func(z, p []float64) dynamo.State {
		return lay.State(z, 0).Sub(paramSlice(p, paramState))
	})

	for i := 0; i < lay.N; i++ {
		i := i // per-iteration copy; closures below capture i
		aux := hz.rates[i]

		hz.stages = append(hz.stages, func(z, p []float64) float64 {
			e := lay.State(z, i).Sub(paramSlice(p, paramDesired))
			u := lay.Control(z, i)
			ev := mat.NewVecDense(dynamo.Dim, e)
			uv := mat.NewVecDense(dynamo.Dim, u.Clone())
			return mat.Inner(ev, Q, ev) + mat.Inner(uv, R, uv)
		})

		hz.defects = append(hz.defects, func(z, p []float64) dynamo.State {
			x := lay.State(z, i)
			u := lay.Control(z, i)
			rate := aux(z, p)
			f := func(s dynamo.State) dynamo.State { return model.Derive(s, u, rate) }
			return lay.State(z, i+1).Sub(integrators.RK4Step(f, x, h))
		})

		if i+1 < lay.N {
			hz.rates = append(hz.rates, func(z, p []float64) dynamo.State {
				return lay.State(z, i+1).Sub(lay.State(z, i)).Abs().Scale(1 / h)
			})
		}
	}

	if len(hz.defects)*dynamo.Dim != lay.NumConstraints() {
		return nil, fmt.Errorf("%w: %d defect blocks for %d constraint rows", ErrLayout, len(hz.defects), lay.NumConstraints())
	}

	hz.Problem = &nlp.Problem{
		NumVars:        lay.NumVars(),
		NumConstraints: lay.NumConstraints(),
		NumParams:      ParamLen,
		Objective:      hz.Cost,
		Constraints:    hz.evalConstraints,
	}
	return hz, nil
}

// Cost evaluates the objective at (z, p).
func (hz *Horizon) Cost(z, p []float64) float64 {
	total := 0.0
	for _, stage := range hz.stages {
		total += stage(z, p)
	}
	return total
}

func (hz *Horizon) evalConstraints(g, z, p []float64) {
	for k, d := range hz.defects {
		copy(g[k*dynamo.Dim:(k+1)*dynamo.Dim], d(z, p))
	}
}

// Constraints returns the defect vector at (z, p).
func (hz *Horizon) Constraints(z, p []float64) []float64 {
	g := make([]float64, hz.Layout.NumConstraints())
	hz.evalConstraints(g, z, p)
	return g
}

// Rates returns the auxiliary rate seen by each of the N stages.
func (hz *Horizon) Rates(z, p []float64) []dynamo.State {
	out := make([]dynamo.State, len(hz.rates))
	for i, r := range hz.rates {
		out[i] = r(z, p)
	}
	return out
}

// FirstControl copies U(0) out of a solution vector.
func (hz *Horizon) FirstControl(z []float64) (dynamo.Control, error) {
	if len(z) != hz.Layout.NumVars() {
		return nil, fmt.Errorf("%w: solution has %d entries, want %d", ErrDimensionMismatch, len(z), hz.Layout.NumVars())
	}
	start, end := hz.Layout.FirstControl()
	return dynamo.Control(append([]float64(nil), z[start:end]...)), nil
}
