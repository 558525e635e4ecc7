package mpc

import (
	"fmt"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
)

// WarmStart holds the initial guess for the next solve, in the same
// node-major packing as the horizon.
type WarmStart struct {
	layout Layout
	policy WarmStartPolicy

	seedX dynamo.State
	xs    []dynamo.State
	us    []dynamo.Control
}

// NewWarmStart repeats x0 over all N+1 state nodes with zero controls.
func NewWarmStart(l Layout, x0 dynamo.State, policy WarmStartPolicy) (*WarmStart, error) {
	if len(x0) != dynamo.Dim {
		return nil, fmt.Errorf("%w: warm start seed has %d entries", ErrDimensionMismatch, len(x0))
	}
	if policy == "" {
		policy = WarmStartInitial
	}
	w := &WarmStart{layout: l, policy: policy, seedX: x0.Clone()}
	w.Reset()
	return w, nil
}

func (w *WarmStart) Policy() WarmStartPolicy { return w.policy }

// Reset restores the constant seed.
func (w *WarmStart) Reset() {
	w.xs = make([]dynamo.State, w.layout.N+1)
	for k := range w.xs {
		w.xs[k] = w.seedX.Clone()
	}
	w.us = make([]dynamo.Control, w.layout.N)
	for k := range w.us {
		w.us[k] = make(dynamo.Control, dynamo.Dim)
	}
}

// Guess returns a fresh flattened initial guess.
func (w *WarmStart) Guess() []float64 {
	z, _ := w.layout.Pack(w.xs, w.us)
	return z
}

// Accept records a solution. Under WarmStartInitial it is ignored and the
// next guess is the constant seed again; under WarmStartPrevious the
// trajectories are shifted one node forward with the last node repeated.
// Solutions holding NaN or Inf are rejected under either policy.
func (w *WarmStart) Accept(z []float64) error {
	xs, us, err := w.layout.Unpack(z)
	if err != nil {
		return err
	}
	if !dynamo.State(z).IsValid() {
		return ErrInvalidSolution
	}
	if w.policy != WarmStartPrevious {
		return nil
	}
	for k := 0; k < len(xs)-1; k++ {
		w.xs[k] = xs[k+1]
	}
	w.xs[len(xs)-1] = xs[len(xs)-1].Clone()
	for k := 0; k < len(us)-1; k++ {
		w.us[k] = us[k+1]
	}
	w.us[len(us)-1] = us[len(us)-1].Clone()
	return nil
}

// Trajectories returns copies of the current seed trajectories.
func (w *WarmStart) Trajectories() ([]dynamo.State, []dynamo.Control) {
	xs, us, _ := w.layout.Unpack(w.Guess())
	return xs, us
}
