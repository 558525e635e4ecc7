package mpc

import (
	"fmt"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
)

// Layout maps horizon nodes to decision vector offsets. States come first,
// node-major, then controls, node-major:
//
//	[X(0) X(1) ... X(N) | U(0) ... U(N-1)]
type Layout struct {
	N int
}

func (l Layout) NumStates() int      { return dynamo.Dim * (l.N + 1) }
func (l Layout) NumControls() int    { return dynamo.Dim * l.N }
func (l Layout) NumVars() int        { return l.NumStates() + l.NumControls() }
func (l Layout) NumConstraints() int { return dynamo.Dim * (l.N + 1) }

func (l Layout) StateIndex(node, axis int) int {
	return node*dynamo.Dim + axis
}

func (l Layout) ControlIndex(node, axis int) int {
	return l.NumStates() + node*dynamo.Dim + axis
}

// FirstControl returns the half-open range of U(0) in the decision vector.
func (l Layout) FirstControl() (start, end int) {
	start = l.ControlIndex(0, 0)
	return start, start + dynamo.Dim
}

// State returns X(node) as a view into z.
func (l Layout) State(z []float64, node int) dynamo.State {
	i := l.StateIndex(node, 0)
	return dynamo.State(z[i : i+dynamo.Dim : i+dynamo.Dim])
}

// Control returns U(node) as a view into z.
func (l Layout) Control(z []float64, node int) dynamo.Control {
	i := l.ControlIndex(node, 0)
	return dynamo.Control(z[i : i+dynamo.Dim : i+dynamo.Dim])
}

// Pack flattens N+1 states and N controls into a fresh decision vector.
func (l Layout) Pack(xs []dynamo.State, us []dynamo.Control) ([]float64, error) {
	if len(xs) != l.N+1 || len(us) != l.N {
		return nil, fmt.Errorf("%w: %d states and %d controls for horizon %d",
			ErrDimensionMismatch, len(xs), len(us), l.N)
	}
	z := make([]float64, l.NumVars())
	for k, x := range xs {
		if len(x) != dynamo.Dim {
			return nil, fmt.Errorf("%w: state %d has %d entries", ErrDimensionMismatch, k, len(x))
		}
		copy(z[l.StateIndex(k, 0):], x)
	}
	for k, u := range us {
		if len(u) != dynamo.Dim {
			return nil, fmt.Errorf("%w: control %d has %d entries", ErrDimensionMismatch, k, len(u))
		}
		copy(z[l.ControlIndex(k, 0):], u)
	}
	return z, nil
}

// Unpack copies the trajectories out of z.
func (l Layout) Unpack(z []float64) ([]dynamo.State, []dynamo.Control, error) {
	if len(z) != l.NumVars() {
		return nil, nil, fmt.Errorf("%w: decision vector has %d entries, want %d",
			ErrDimensionMismatch, len(z), l.NumVars())
	}
	xs := make([]dynamo.State, l.N+1)
	for k := range xs {
		xs[k] = l.State(z, k).Clone()
	}
	us := make([]dynamo.Control, l.N)
	for k := range us {
		us[k] = l.Control(z, k).Clone()
	}
	return xs, us, nil
}

// check verifies that every (node, axis) pair lands on a distinct slot and
// that together they cover the decision vector.
func (l Layout) check() error {
	seen := make([]bool, l.NumVars())
	mark := func(i int) error {
		if i < 0 || i >= len(seen) || seen[i] {
			return fmt.Errorf("%w: slot %d assigned twice or out of range", ErrLayout, i)
		}
		seen[i] = true
		return nil
	}
	for k := 0; k <= l.N; k++ {
		for a := 0; a < dynamo.Dim; a++ {
			if err := mark(l.StateIndex(k, a)); err != nil {
				return err
			}
		}
	}
	for k := 0; k < l.N; k++ {
		for a := 0; a < dynamo.Dim; a++ {
			if err := mark(l.ControlIndex(k, a)); err != nil {
				return err
			}
		}
	}
	for i, ok := range seen {
		if !ok {
			return fmt.Errorf("%w: slot %d unassigned", ErrLayout, i)
		}
	}
	return nil
}
