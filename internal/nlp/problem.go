package nlp

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Problem is the structural part of a nonlinear program. Objective and
// Constraints must be pure functions of (x, p) and safe for concurrent use.
type Problem struct {
	NumVars        int
	NumConstraints int
	NumParams      int

	// Objective returns f(x; p).
	Objective func(x, p []float64) float64
	// Constraints writes g(x; p) into g, which has length NumConstraints.
	Constraints func(g, x, p []float64)
}

// Validate checks the problem structure.
func (p *Problem) Validate() error {
	if p.NumVars <= 0 {
		return fmt.Errorf("%w: %d decision variables", ErrDimension, p.NumVars)
	}
	if p.NumConstraints < 0 || p.NumParams < 0 {
		return fmt.Errorf("%w: negative constraint or parameter count", ErrDimension)
	}
	if p.Objective == nil {
		return fmt.Errorf("nlp: problem has no objective")
	}
	if p.NumConstraints > 0 && p.Constraints == nil {
		return fmt.Errorf("nlp: problem declares %d constraints but no constraint function", p.NumConstraints)
	}
	return nil
}

// Bounds holds the variable and constraint bound vectors. Infinite entries
// mean the side is unbounded.
type Bounds struct {
	LowerX, UpperX []float64
	LowerG, UpperG []float64
}

// Check verifies the bound vectors against the problem layout and that each
// interval is non-empty.
func (b Bounds) Check(p *Problem) error {
	if len(b.LowerX) != p.NumVars || len(b.UpperX) != p.NumVars {
		return fmt.Errorf("%w: variable bounds have %d/%d entries, want %d",
			ErrDimension, len(b.LowerX), len(b.UpperX), p.NumVars)
	}
	if len(b.LowerG) != p.NumConstraints || len(b.UpperG) != p.NumConstraints {
		return fmt.Errorf("%w: constraint bounds have %d/%d entries, want %d",
			ErrDimension, len(b.LowerG), len(b.UpperG), p.NumConstraints)
	}
	for i := range b.LowerX {
		if b.LowerX[i] > b.UpperX[i] {
			return fmt.Errorf("nlp: empty bound interval for variable %d: [%g, %g]", i, b.LowerX[i], b.UpperX[i])
		}
	}
	for i := range b.LowerG {
		if b.LowerG[i] > b.UpperG[i] {
			return fmt.Errorf("nlp: empty bound interval for constraint %d: [%g, %g]", i, b.LowerG[i], b.UpperG[i])
		}
	}
	return nil
}

// Args are the per-call solver arguments.
type Args struct {
	Params []float64
	X0     []float64
	Bounds
}

// Status describes how a solve ended.
type Status int

const (
	StatusUnknown Status = iota
	StatusConverged
	StatusIterationLimit
	StatusInfeasible
	StatusTimeout
)

var statusNames = [...]string{"unknown", "converged", "iteration_limit", "infeasible", "timeout"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// Result of a solve. X is always the last iterate, even when the solve
// returned an error.
type Result struct {
	X          []float64
	F          float64
	G          []float64
	Violation  float64
	Iterations int
	FuncEvals  int
	Status     Status
	Elapsed    time.Duration
}

// Options tune the solver. Zero values fall back to DefaultOptions.
type Options struct {
	// MaxIter bounds the outer (multiplier update) iterations.
	MaxIter int `yaml:"max_iter"`
	// InnerIter bounds the L-BFGS major iterations per subproblem.
	InnerIter int `yaml:"inner_iter"`
	// ConstraintTol is the acceptable max-norm constraint violation.
	ConstraintTol float64 `yaml:"constraint_tol"`
	// ObjChangeTol is the acceptable relative objective change between
	// outer iterations.
	ObjChangeTol float64 `yaml:"obj_change_tol"`
	// GradientTol stops an inner subproblem once the gradient max-norm drops
	// below it.
	GradientTol float64 `yaml:"gradient_tol"`
	// Penalty is the initial penalty parameter; PenaltyGrowth multiplies it
	// whenever the violation fails to shrink enough. MaxPenalty caps it.
	Penalty       float64 `yaml:"penalty"`
	PenaltyGrowth float64 `yaml:"penalty_growth"`
	MaxPenalty    float64 `yaml:"max_penalty"`
	// Concurrent evaluates finite-difference gradients on several goroutines.
	Concurrent bool `yaml:"concurrent"`
}

// DefaultOptions mirror the interior-point settings the controller was
// originally tuned with (99 iterations, 1e-6 objective change).
func DefaultOptions() Options {
	return Options{
		MaxIter:       99,
		InnerIter:     200,
		ConstraintTol: 1e-6,
		ObjChangeTol:  1e-6,
		GradientTol:   1e-9,
		Penalty:       10,
		PenaltyGrowth: 10,
		MaxPenalty:    1e9,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxIter <= 0 {
		o.MaxIter = d.MaxIter
	}
	if o.InnerIter <= 0 {
		o.InnerIter = d.InnerIter
	}
	if o.ConstraintTol <= 0 {
		o.ConstraintTol = d.ConstraintTol
	}
	if o.ObjChangeTol <= 0 {
		o.ObjChangeTol = d.ObjChangeTol
	}
	if o.GradientTol <= 0 {
		o.GradientTol = d.GradientTol
	}
	if o.Penalty <= 0 {
		o.Penalty = d.Penalty
	}
	if o.PenaltyGrowth <= 1 {
		o.PenaltyGrowth = d.PenaltyGrowth
	}
	if o.MaxPenalty < o.Penalty {
		o.MaxPenalty = math.Max(d.MaxPenalty, o.Penalty)
	}
	return o
}

// Solver is a reusable handle bound to one Problem.
type Solver interface {
	Solve(ctx context.Context, args Args) (*Result, error)
}

// Factory creates a Solver for a problem.
type Factory func(p *Problem, opts Options) (Solver, error)
