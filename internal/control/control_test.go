package control

import (
	"math"
	"testing"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/mpc"
)

func TestNone(t *testing.T) {
	u := NewNone(3).Compute(dynamo.State{1, 2, 3}, 0)
	if len(u) != 3 {
		t.Fatalf("expected 3 controls, got %d", len(u))
	}
	for _, v := range u {
		if v != 0 {
			t.Errorf("expected zero control, got %v", u)
		}
	}
}

func TestPIDProportionalFirstStep(t *testing.T) {
	pid := NewPID(10, 1, 1, mpc.Fixed{0.2, -0.1, 0})
	u := pid.Compute(dynamo.State{0, 0, 0}, 0)

	want := []float64{2, -1, 0}
	for i := range want {
		if math.Abs(u[i]-want[i]) > 1e-12 {
			t.Errorf("axis %d: got %f, want %f", i, u[i], want[i])
		}
	}
}

func TestPIDIntegralAndDerivative(t *testing.T) {
	pid := NewPID(0, 1, 1, mpc.Fixed{1, 0, 0})
	pid.Compute(dynamo.State{0, 0, 0}, 0)
	u := pid.Compute(dynamo.State{0.5, 0, 0}, 0.1)

	// integral 0.5*0.1, derivative (0.5-1)/0.1
	want := 0.05 - 5
	if math.Abs(u[0]-want) > 1e-12 {
		t.Errorf("got %f, want %f", u[0], want)
	}
}

func TestPIDClampsToLimit(t *testing.T) {
	pid := NewPID(1000, 0, 0, mpc.Fixed{1, -1, 0})
	u := pid.Compute(dynamo.State{0, 0, 0}, 0)
	if u[0] != mpc.MaxControlBound || u[1] != -mpc.MaxControlBound {
		t.Errorf("expected clamped output, got %v", u)
	}
}

func TestPIDReset(t *testing.T) {
	pid := NewPID(1, 1, 0, mpc.Fixed{1, 0, 0})
	pid.Compute(dynamo.State{0, 0, 0}, 0)
	pid.Compute(dynamo.State{0, 0, 0}, 1)
	pid.Reset()

	u := pid.Compute(dynamo.State{0, 0, 0}, 0)
	if u[0] != 1 {
		t.Errorf("expected pure proportional output after reset, got %f", u[0])
	}
}

func TestPIDParams(t *testing.T) {
	pid := NewPID(1, 2, 3, nil)
	if err := pid.SetParam("Kd", 7); err != nil || pid.Kd != 7 {
		t.Errorf("Kd not set: %v", err)
	}
	if err := pid.SetParam("Limit", -1); err == nil {
		t.Error("expected error for negative limit")
	}
	if err := pid.SetParam("Kz", 1); err == nil {
		t.Error("expected error for unknown param")
	}
	if pid.GetParams()["Ki"] != 2 {
		t.Error("GetParams missing Ki")
	}
}
