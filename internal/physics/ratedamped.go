package physics

import (
	"fmt"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
)

// RateDamped integrates each attitude angle from its own actuator:
//
//	dθᵢ/dt = Gainᵢ·uᵢ / (1 + Dampingᵢ·rateᵢ)
//
// so the actuator loses authority as the axis already moves fast.
type RateDamped struct {
	Gain    [dynamo.Dim]float64
	Damping [dynamo.Dim]float64
}

func NewRateDamped() *RateDamped {
	return &RateDamped{
		Gain:    [dynamo.Dim]float64{DefaultGain, DefaultGain, DefaultGain},
		Damping: [dynamo.Dim]float64{DefaultDamping, DefaultDamping, DefaultDamping},
	}
}

const (
	DefaultGain    = 0.2
	DefaultDamping = 0.5
)

func (m *RateDamped) Derive(x dynamo.State, u dynamo.Control, rate dynamo.State) dynamo.State {
	dx := make(dynamo.State, dynamo.Dim)
	for i := 0; i < dynamo.Dim; i++ {
		r := 0.0
		if i < len(rate) {
			r = rate[i]
		}
		ui := 0.0
		if i < len(u) {
			ui = u[i]
		}
		dx[i] = m.Gain[i] * ui / (1 + m.Damping[i]*r)
	}
	return dx
}

var axisNames = [dynamo.Dim]string{"roll", "pitch", "yaw"}

func (m *RateDamped) GetParams() map[string]float64 {
	params := make(map[string]float64, 2*dynamo.Dim)
	for i, axis := range axisNames {
		params["gain_"+axis] = m.Gain[i]
		params["damping_"+axis] = m.Damping[i]
	}
	return params
}

func (m *RateDamped) SetParam(name string, value float64) error {
	for i, axis := range axisNames {
		switch name {
		case "gain_" + axis:
			m.Gain[i] = value
			return nil
		case "damping_" + axis:
			if value < 0 {
				return fmt.Errorf("%w: %s must be non-negative", dynamo.ErrParameterBounds, name)
			}
			m.Damping[i] = value
			return nil
		}
	}
	return fmt.Errorf("unknown param: %s", name)
}
