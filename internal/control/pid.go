package control

import (
	"fmt"
	"math"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/mpc"
)

// PID runs one PID loop per attitude axis against a setpoint source.
type PID struct {
	Kp    float64
	Ki    float64
	Kd    float64
	Limit float64

	setpoint mpc.SetpointSource
	integral [dynamo.Dim]float64
	prevErr  [dynamo.Dim]float64
	prevT    float64
	first    bool
}

func NewPID(kp, ki, kd float64, setpoint mpc.SetpointSource) *PID {
	if setpoint == nil {
		setpoint = mpc.Fixed{0, 0, 0}
	}
	return &PID{
		Kp:       kp,
		Ki:       ki,
		Kd:       kd,
		Limit:    mpc.MaxControlBound,
		setpoint: setpoint,
		first:    true,
	}
}

func (p *PID) Compute(x dynamo.State, t float64) dynamo.Control {
	u := make(dynamo.Control, dynamo.Dim)
	if len(x) != dynamo.Dim {
		return u
	}

	target := p.setpoint.Setpoint(t, x)
	var err [dynamo.Dim]float64
	for i := range err {
		err[i] = target[i] - x[i]
	}

	dt := t - p.prevT
	for i := range u {
		out := p.Kp * err[i]
		if !p.first && dt > 0 {
			p.integral[i] += err[i] * dt
			out += p.Ki*p.integral[i] + p.Kd*(err[i]-p.prevErr[i])/dt
		}
		u[i] = math.Max(-p.Limit, math.Min(p.Limit, out))
	}

	p.prevErr = err
	p.prevT = t
	p.first = false
	return u
}

// Reset clears integral and derivative state
func (p *PID) Reset() {
	p.integral = [dynamo.Dim]float64{}
	p.prevErr = [dynamo.Dim]float64{}
	p.prevT = 0
	p.first = true
}

// GetParams returns tunable parameters for live adjustment
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp":    p.Kp,
		"Ki":    p.Ki,
		"Kd":    p.Kd,
		"Limit": p.Limit,
	}
}

// SetParam adjusts a PID parameter
func (p *PID) SetParam(name string, value float64) error {
	switch name {
	case "Kp":
		p.Kp = value
	case "Ki":
		p.Ki = value
	case "Kd":
		p.Kd = value
	case "Limit":
		if value <= 0 {
			return fmt.Errorf("%w: Limit must be positive", dynamo.ErrParameterBounds)
		}
		p.Limit = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
