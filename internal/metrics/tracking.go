package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/mpc"
)

// TrackingRMS is the root mean square attitude error against a setpoint
// source, over all axes.
type TrackingRMS struct {
	name     string
	setpoint mpc.SetpointSource
	sumSq    float64
	samples  int
}

func NewTrackingRMS(setpoint mpc.SetpointSource) *TrackingRMS {
	return &TrackingRMS{
		name:     "tracking_rms",
		setpoint: setpoint,
	}
}

func (m *TrackingRMS) Name() string { return m.name }

func (m *TrackingRMS) Observe(x dynamo.State, u dynamo.Control, t float64) {
	target := m.setpoint.Setpoint(t, x)
	if len(target) != len(x) {
		return
	}
	d := floats.Distance(x, target, 2)
	m.sumSq += d * d
	m.samples++
}

func (m *TrackingRMS) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return math.Sqrt(m.sumSq / float64(m.samples))
}

func (m *TrackingRMS) Reset() {
	m.sumSq = 0
	m.samples = 0
}

// FinalError is the attitude error at the last observed step.
type FinalError struct {
	name     string
	setpoint mpc.SetpointSource
	last     float64
}

func NewFinalError(setpoint mpc.SetpointSource) *FinalError {
	return &FinalError{name: "final_error", setpoint: setpoint}
}

func (m *FinalError) Name() string { return m.name }

func (m *FinalError) Observe(x dynamo.State, u dynamo.Control, t float64) {
	target := m.setpoint.Setpoint(t, x)
	if len(target) == len(x) {
		m.last = floats.Distance(x, target, math.Inf(1))
	}
}

func (m *FinalError) Value() float64 { return m.last }
func (m *FinalError) Reset()         { m.last = 0 }
