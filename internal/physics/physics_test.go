package physics

import (
	"math"
	"testing"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/integrators"
)

func TestRateDampedZeroControl(t *testing.T) {
	m := NewRateDamped()
	dx := m.Derive(dynamo.State{0.3, -0.1, 0.2}, dynamo.Control{0, 0, 0}, dynamo.State{1, 1, 1})
	for i, v := range dx {
		if v != 0 {
			t.Errorf("dx[%d] = %f, want 0 with zero control", i, v)
		}
	}
}

func TestRateDampedIsDiagonal(t *testing.T) {
	m := NewRateDamped()
	dx := m.Derive(dynamo.State{0, 0, 0}, dynamo.Control{5, 0, 0}, dynamo.State{0, 0, 0})

	if math.Abs(dx[0]-DefaultGain*5) > 1e-12 {
		t.Errorf("roll rate = %f, want %f", dx[0], DefaultGain*5)
	}
	if dx[1] != 0 || dx[2] != 0 {
		t.Errorf("roll command leaked into pitch/yaw: %v", dx)
	}
}

func TestRateDampedLosesAuthorityWithRate(t *testing.T) {
	m := NewRateDamped()
	u := dynamo.Control{10, 10, 10}

	slow := m.Derive(dynamo.State{0, 0, 0}, u, dynamo.State{0, 0, 0})
	fast := m.Derive(dynamo.State{0, 0, 0}, u, dynamo.State{2, 2, 2})

	for i := range slow {
		if fast[i] >= slow[i] {
			t.Errorf("axis %d: rate %f at speed should be below %f", i, fast[i], slow[i])
		}
	}
}

func TestRateDampedParams(t *testing.T) {
	m := NewRateDamped()
	if err := m.SetParam("gain_pitch", 0.7); err != nil {
		t.Fatalf("SetParam failed: %v", err)
	}
	if m.Gain[1] != 0.7 {
		t.Errorf("gain_pitch = %f, want 0.7", m.Gain[1])
	}
	if err := m.SetParam("damping_yaw", -1); err == nil {
		t.Error("expected error for negative damping")
	}
	if err := m.SetParam("nonsense", 1); err == nil {
		t.Error("expected error for unknown param")
	}
	if len(m.GetParams()) != 6 {
		t.Errorf("expected 6 params, got %d", len(m.GetParams()))
	}
}

func TestCoupledCrossTerms(t *testing.T) {
	c := NewCoupled()
	rate := dynamo.State{1, 2, 3}
	dx := c.Derive(dynamo.State{0, 0, 0}, dynamo.Control{0, 0, 0}, rate)

	want0 := c.Kappa * ((c.I2 - c.I3) / c.I1) * 2 * 3
	if math.Abs(dx[0]-want0) > 1e-12 {
		t.Errorf("roll coupling = %f, want %f", dx[0], want0)
	}
	if dx[2] != 0 {
		t.Errorf("yaw coupling should vanish with I1 == I2, got %f", dx[2])
	}
}

func TestCoupledMatchesRateDampedAtRest(t *testing.T) {
	c := NewCoupled()
	d := NewRateDamped()
	u := dynamo.Control{3, -2, 1}
	zero := dynamo.State{0, 0, 0}

	a := c.Derive(zero, u, zero)
	b := d.Derive(zero, u, zero)
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("axis %d: coupled %f, decoupled %f", i, a[i], b[i])
		}
	}
}

func TestCoupledParams(t *testing.T) {
	c := NewCoupled()
	if err := c.SetParam("I3", 0); err == nil {
		t.Error("expected error for non-positive inertia")
	}
	if err := c.SetParam("kappa", 0.5); err != nil || c.Kappa != 0.5 {
		t.Errorf("kappa not set: %v", err)
	}
	if err := c.SetParam("gain_roll", 0.3); err != nil || c.Gain[0] != 0.3 {
		t.Errorf("embedded gain not set: %v", err)
	}
}

func TestPlantTracksRate(t *testing.T) {
	p := NewPlant(NewRateDamped(), 0.1)

	p.OnStep(dynamo.State{0, 0, 0}, nil, 0)
	if p.Rate().Norm() != 0 {
		t.Errorf("rate should start at zero, got %v", p.Rate())
	}

	p.OnStep(dynamo.State{0.1, -0.2, 0}, nil, 0.1)
	r := p.Rate()
	if math.Abs(r[0]-1) > 1e-12 || math.Abs(r[1]-2) > 1e-12 || r[2] != 0 {
		t.Errorf("unexpected rate %v", r)
	}

	p.Reset()
	if p.Rate().Norm() != 0 {
		t.Error("reset should clear rate")
	}
}

func TestPlantIntegrates(t *testing.T) {
	p := NewPlant(NewRateDamped(), 0.05)
	integ := integrators.NewRK4()

	x := dynamo.State{0, 0, 0}
	u := dynamo.Control{10, 0, -10}
	for i := 0; i < 10; i++ {
		p.OnStep(x, u, float64(i)*0.05)
		x = integ.Step(p, x, u, float64(i)*0.05, 0.05)
	}

	if x[0] <= 0 || x[2] >= 0 || x[1] != 0 {
		t.Errorf("unexpected attitude after actuation: %v", x)
	}
}
