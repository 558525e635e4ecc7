package nlp

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

type rowKind int

const (
	rowEq rowKind = iota
	rowLower
	rowUpper
)

// row is one scalar constraint of the augmented Lagrangian, taken either
// from a decision variable bound (onX) or from a constraint function row.
type row struct {
	kind  rowKind
	src   int
	onX   bool
	bound float64
}

// residual returns c with the convention c == 0 for equalities and c >= 0
// for satisfied inequalities.
func (r row) residual(x, g []float64) float64 {
	var v float64
	if r.onX {
		v = x[r.src]
	} else {
		v = g[r.src]
	}
	switch r.kind {
	case rowLower:
		return v - r.bound
	case rowUpper:
		return r.bound - v
	default:
		return v - r.bound
	}
}

func (r row) violation(c float64) float64 {
	if r.kind == rowEq {
		return math.Abs(c)
	}
	return math.Max(0, -c)
}

// AugLag is a PHR augmented Lagrangian solver.
type AugLag struct {
	prob *Problem
	opts Options
}

// NewAugLag is a Factory.
func NewAugLag(p *Problem, opts Options) (Solver, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &AugLag{prob: p, opts: opts.withDefaults()}, nil
}

func (s *AugLag) Options() Options { return s.opts }

func (s *AugLag) rows(b Bounds) []row {
	rows := make([]row, 0, 2*s.prob.NumVars+s.prob.NumConstraints)
	for i := range b.LowerG {
		lo, hi := b.LowerG[i], b.UpperG[i]
		if lo == hi {
			rows = append(rows, row{kind: rowEq, src: i, bound: lo})
			continue
		}
		if !math.IsInf(lo, -1) {
			rows = append(rows, row{kind: rowLower, src: i, bound: lo})
		}
		if !math.IsInf(hi, 1) {
			rows = append(rows, row{kind: rowUpper, src: i, bound: hi})
		}
	}
	for i := range b.LowerX {
		if !math.IsInf(b.LowerX[i], -1) {
			rows = append(rows, row{kind: rowLower, src: i, onX: true, bound: b.LowerX[i]})
		}
		if !math.IsInf(b.UpperX[i], 1) {
			rows = append(rows, row{kind: rowUpper, src: i, onX: true, bound: b.UpperX[i]})
		}
	}
	return rows
}

func (s *AugLag) constraints(x, p []float64) []float64 {
	g := make([]float64, s.prob.NumConstraints)
	if s.prob.NumConstraints > 0 {
		s.prob.Constraints(g, x, p)
	}
	return g
}

// lagrangian evaluates f(x) + Σ ψ(c_k(x); λ_k, ρ).
func (s *AugLag) lagrangian(x, p []float64, rows []row, lam []float64, rho float64) float64 {
	f := s.prob.Objective(x, p)
	g := s.constraints(x, p)
	for k, r := range rows {
		c := r.residual(x, g)
		if r.kind == rowEq {
			f += lam[k]*c + 0.5*rho*c*c
			continue
		}
		t := math.Max(0, lam[k]-rho*c)
		f += (t*t - lam[k]*lam[k]) / (2 * rho)
	}
	return f
}

func (s *AugLag) checkArgs(args Args) error {
	if err := args.Bounds.Check(s.prob); err != nil {
		return err
	}
	if len(args.X0) != s.prob.NumVars {
		return fmt.Errorf("%w: initial guess has %d entries, want %d", ErrDimension, len(args.X0), s.prob.NumVars)
	}
	if len(args.Params) != s.prob.NumParams {
		return fmt.Errorf("%w: parameter vector has %d entries, want %d", ErrDimension, len(args.Params), s.prob.NumParams)
	}
	return nil
}

// Solve runs the outer multiplier iterations. On ErrNotConverged, ErrTimeout
// and ErrInfeasible the returned Result carries the last iterate.
func (s *AugLag) Solve(ctx context.Context, args Args) (*Result, error) {
	if err := s.checkArgs(args); err != nil {
		return nil, err
	}

	start := time.Now()
	p := append([]float64(nil), args.Params...)
	x := append([]float64(nil), args.X0...)
	project(x, args.Bounds)

	rows := s.rows(args.Bounds)
	lam := make([]float64, len(rows))
	rho := s.opts.Penalty

	var evals atomic.Int64
	res := &Result{Status: StatusUnknown}
	finish := func(status Status, f float64, g []float64, viol float64) *Result {
		res.X = append([]float64(nil), x...)
		res.F = f
		res.G = g
		res.Violation = viol
		res.Status = status
		res.FuncEvals = int(evals.Load())
		res.Elapsed = time.Since(start)
		return res
	}

	f, g, viol := s.measure(x, p, rows)
	prevF, prevViol := f, viol
	stalled := 0

	for iter := 1; iter <= s.opts.MaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return finish(StatusTimeout, f, g, viol), fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		res.Iterations = iter

		lamK := append([]float64(nil), lam...)
		rhoK := rho
		fn := func(z []float64) float64 {
			evals.Add(1)
			return s.lagrangian(z, p, rows, lamK, rhoK)
		}
		gradSettings := &fd.Settings{Formula: fd.Central, Concurrent: s.opts.Concurrent}
		problem := optimize.Problem{
			Func: fn,
			Grad: func(grad, z []float64) {
				fd.Gradient(grad, fn, z, gradSettings)
			},
		}
		settings := &optimize.Settings{
			MajorIterations:   s.opts.InnerIter,
			GradientThreshold: s.opts.GradientTol,
			Converger: &optimize.FunctionConverge{
				Absolute:   1e-14,
				Relative:   1e-14,
				Iterations: 25,
			},
		}
		if deadline, ok := ctx.Deadline(); ok {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return finish(StatusTimeout, f, g, viol), fmt.Errorf("%w: %v", ErrTimeout, context.DeadlineExceeded)
			}
			settings.Runtime = remaining
		}

		// Line search stalls surface as errors but still report the best
		// location reached, which is all the outer loop needs.
		inner, _ := optimize.Minimize(problem, append([]float64(nil), x...), settings, &optimize.LBFGS{})
		if inner != nil && len(inner.X) == len(x) && allFinite(inner.X) {
			copy(x, inner.X)
			project(x, args.Bounds)
		}

		f, g, viol = s.measure(x, p, rows)
		for k, r := range rows {
			c := r.residual(x, g)
			if r.kind == rowEq {
				lam[k] += rho * c
			} else {
				lam[k] = math.Max(0, lam[k]-rho*c)
			}
		}

		if viol <= s.opts.ConstraintTol && math.Abs(f-prevF) <= s.opts.ObjChangeTol*math.Max(1, math.Abs(f)) {
			return finish(StatusConverged, f, g, viol), nil
		}

		if viol > 0.25*prevViol {
			if rho >= s.opts.MaxPenalty {
				stalled++
				if stalled >= 3 && viol > math.Sqrt(s.opts.ConstraintTol) {
					return finish(StatusInfeasible, f, g, viol),
						fmt.Errorf("%w: violation %.3g at penalty %.3g", ErrInfeasible, viol, rho)
				}
			}
			rho = math.Min(rho*s.opts.PenaltyGrowth, s.opts.MaxPenalty)
		} else {
			stalled = 0
		}
		prevF, prevViol = f, viol
	}

	return finish(StatusIterationLimit, f, g, viol),
		fmt.Errorf("%w: %d iterations, violation %.3g", ErrNotConverged, s.opts.MaxIter, viol)
}

// measure returns the objective, the constraint values and the max-norm
// violation over all rows at x.
func (s *AugLag) measure(x, p []float64, rows []row) (float64, []float64, float64) {
	f := s.prob.Objective(x, p)
	g := s.constraints(x, p)
	viol := 0.0
	for _, r := range rows {
		viol = math.Max(viol, r.violation(r.residual(x, g)))
	}
	return f, g, viol
}

// project clamps x into [LowerX, UpperX] in place.
func project(x []float64, b Bounds) {
	for i := range x {
		x[i] = math.Min(math.Max(x[i], b.LowerX[i]), b.UpperX[i])
	}
}

func allFinite(v []float64) bool {
	return !floats.HasNaN(v) && !math.IsInf(floats.Max(v), 1) && !math.IsInf(floats.Min(v), -1)
}
