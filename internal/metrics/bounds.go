package metrics

import (
	"math"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
)

// BoundViolations is the fraction of steps where any attitude or control
// component left its bound.
type BoundViolations struct {
	name         string
	stateBound   float64
	controlBound float64
	violations   int
	samples      int
}

func NewBoundViolations(stateBound, controlBound float64) *BoundViolations {
	return &BoundViolations{
		name:         "bound_violations",
		stateBound:   stateBound,
		controlBound: controlBound,
	}
}

func (b *BoundViolations) Name() string {
	return b.name
}

func (b *BoundViolations) Observe(x dynamo.State, u dynamo.Control, t float64) {
	b.samples++
	if exceeds(x, b.stateBound) || exceeds(u, b.controlBound) {
		b.violations++
	}
}

func exceeds(v []float64, bound float64) bool {
	for _, val := range v {
		if math.Abs(val) > bound+1e-9 {
			return true
		}
	}
	return false
}

func (b *BoundViolations) Value() float64 {
	if b.samples == 0 {
		return 0
	}
	return float64(b.violations) / float64(b.samples)
}

func (b *BoundViolations) Reset() {
	b.violations = 0
	b.samples = 0
}
