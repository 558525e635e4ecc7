package mpc

import (
	"fmt"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
)

// Tracker keeps the latest measured attitude and its finite-difference rate
// over one horizon step. It does not clamp or sanitise measurements.
type Tracker struct {
	h       float64
	current dynamo.State
	prev    dynamo.State
	rate    dynamo.State
}

func NewTracker(h float64, x0 dynamo.State) *Tracker {
	return &Tracker{
		h:       h,
		current: x0.Clone(),
		prev:    x0.Clone(),
		rate:    make(dynamo.State, len(x0)),
	}
}

// Update stores the previous state, takes m as current and recomputes the
// rate as (m - previous) / h.
func (t *Tracker) Update(m dynamo.State) error {
	if len(m) != dynamo.Dim {
		return fmt.Errorf("%w: measurement has %d entries, want %d", ErrDimensionMismatch, len(m), dynamo.Dim)
	}
	t.prev = t.current
	t.current = m.Clone()
	t.rate = t.current.Sub(t.prev).Scale(1 / t.h)
	return nil
}

func (t *Tracker) State() dynamo.State    { return t.current.Clone() }
func (t *Tracker) Previous() dynamo.State { return t.prev.Clone() }
func (t *Tracker) Rate() dynamo.State     { return t.rate.Clone() }
