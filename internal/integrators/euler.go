package integrators

import "github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"

// Euler is the explicit first-order stepper, kept for plant/model mismatch
// experiments against the RK4 prediction model.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t float64, dt float64) dynamo.State {
	dx := dyn.Derive(x, u, t)
	result := make(dynamo.State, len(x))
	for i := range x {
		result[i] = x[i] + dt*dx[i]
	}
	return result
}
