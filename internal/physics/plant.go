package physics

import (
	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
)

// Plant simulates a dynamo.Model as a dynamo.System. Register it as an
// observer on the simulator so it can keep its auxiliary rate current.
type Plant struct {
	model dynamo.Model
	dt    float64
	rate  dynamo.State
	last  dynamo.State
}

func NewPlant(model dynamo.Model, dt float64) *Plant {
	return &Plant{
		model: model,
		dt:    dt,
		rate:  make(dynamo.State, dynamo.Dim),
	}
}

func (p *Plant) StateDim() int   { return dynamo.Dim }
func (p *Plant) ControlDim() int { return dynamo.Dim }

func (p *Plant) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return p.model.Derive(x, u, p.rate)
}

// OnStep updates the auxiliary rate from the state about to be integrated.
func (p *Plant) OnStep(x dynamo.State, u dynamo.Control, t float64) {
	if p.last != nil && p.dt > 0 {
		p.rate = x.Sub(p.last).Abs().Scale(1 / p.dt)
	}
	p.last = x.Clone()
}

// Rate returns a copy of the current auxiliary rate.
func (p *Plant) Rate() dynamo.State { return p.rate.Clone() }

func (p *Plant) Model() dynamo.Model { return p.model }

func (p *Plant) Reset() {
	p.rate = make(dynamo.State, dynamo.Dim)
	p.last = nil
}

func (p *Plant) GetParams() map[string]float64 {
	if c, ok := p.model.(dynamo.Configurable); ok {
		return c.GetParams()
	}
	return map[string]float64{}
}

func (p *Plant) SetParam(name string, value float64) error {
	if c, ok := p.model.(dynamo.Configurable); ok {
		return c.SetParam(name, value)
	}
	return dynamo.ErrParameterBounds
}
