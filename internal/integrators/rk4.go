package integrators

import "github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"

// Derivative is an autonomous right-hand side, with control and any
// auxiliary inputs already bound.
type Derivative func(x dynamo.State) dynamo.State

// RK4Step advances x by one classical fourth-order Runge-Kutta step of size
// h. It allocates its result and keeps no state, so it is safe to call from
// concurrently evaluated problem functions.
func RK4Step(f Derivative, x dynamo.State, h float64) dynamo.State {
	n := len(x)
	k1 := f(x)

	tmp := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		tmp[i] = x[i] + h*0.5*k1[i]
	}
	k2 := f(tmp)

	tmp = make(dynamo.State, n)
	for i := 0; i < n; i++ {
		tmp[i] = x[i] + h*0.5*k2[i]
	}
	k3 := f(tmp)

	tmp = make(dynamo.State, n)
	for i := 0; i < n; i++ {
		tmp[i] = x[i] + h*k3[i]
	}
	k4 := f(tmp)

	result := make(dynamo.State, n)
	h6 := h / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + h6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	return result
}

// RK4 steps a plant with reusable scratch buffers. Not safe for concurrent use.
type RK4 struct {
	k1, k2, k3, k4 dynamo.State
	scratch        dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make(dynamo.State, n)
		r.k2 = make(dynamo.State, n)
		r.k3 = make(dynamo.State, n)
		r.k4 = make(dynamo.State, n)
		r.scratch = make(dynamo.State, n)
	}
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	r.ensureScratch(n)

	copy(r.k1, dyn.Derive(x, u, t))

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k1[i]
	}
	copy(r.k2, dyn.Derive(r.scratch, u, t+dt*0.5))

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k2[i]
	}
	copy(r.k3, dyn.Derive(r.scratch, u, t+dt*0.5))

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*r.k3[i]
	}
	copy(r.k4, dyn.Derive(r.scratch, u, t+dt))

	result := make(dynamo.State, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + dt6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}

	return result
}
