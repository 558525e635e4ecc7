package metrics

import (
	"gonum.org/v1/gonum/floats"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
)

// ControlEffort is the mean L1 norm of the applied control.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(u) > 0 {
		c.sum += floats.Norm(u, 1)
	}
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}
