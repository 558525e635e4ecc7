package physics

import (
	"fmt"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
)

// Coupled adds the gyroscopic terms of Euler's rigid-body equations to
// RateDamped, driven by the auxiliary rates of the other two axes:
//
//	dθ₁/dt += Kappa·((I₂-I₃)/I₁)·rate₂·rate₃   (and cyclic)
type Coupled struct {
	RateDamped
	I1, I2, I3 float64
	Kappa      float64
}

func NewCoupled() *Coupled {
	return &Coupled{
		RateDamped: *NewRateDamped(),
		I1:         1.0,
		I2:         1.0,
		I3:         2.0,
		Kappa:      0.1,
	}
}

func (c *Coupled) Derive(x dynamo.State, u dynamo.Control, rate dynamo.State) dynamo.State {
	dx := c.RateDamped.Derive(x, u, rate)
	if len(rate) < dynamo.Dim {
		return dx
	}
	r1, r2, r3 := rate[0], rate[1], rate[2]
	dx[0] += c.Kappa * ((c.I2 - c.I3) / c.I1) * r2 * r3
	dx[1] += c.Kappa * ((c.I3 - c.I1) / c.I2) * r3 * r1
	dx[2] += c.Kappa * ((c.I1 - c.I2) / c.I3) * r1 * r2
	return dx
}

func (c *Coupled) GetParams() map[string]float64 {
	params := c.RateDamped.GetParams()
	params["I1"] = c.I1
	params["I2"] = c.I2
	params["I3"] = c.I3
	params["kappa"] = c.Kappa
	return params
}

func (c *Coupled) SetParam(name string, value float64) error {
	switch name {
	case "I1", "I2", "I3":
		if value <= 0 {
			return fmt.Errorf("%w: %s must be positive", dynamo.ErrParameterBounds, name)
		}
		switch name {
		case "I1":
			c.I1 = value
		case "I2":
			c.I2 = value
		default:
			c.I3 = value
		}
		return nil
	case "kappa":
		c.Kappa = value
		return nil
	}
	return c.RateDamped.SetParam(name, value)
}
