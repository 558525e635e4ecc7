// Package dynamo provides the core primitives shared by the attitude
// controller and the closed-loop simulator.
//
// The package defines the vector types and the interfaces the rest of the
// module is written against:
//
//   - [State], [Control]: attitude and actuation vectors
//   - [Model]: attitude dynamics, dX/dt = f(X, u, rate)
//   - [System]: a simulated plant, dX/dt = f(X, u, t)
//   - [Integrator]: numerical stepper for a [System]
//   - [Controller]: feedback controller polled once per step
//   - [Simulator]: orchestrates a closed-loop run
//
// # Example
//
//	plant := physics.NewPlant(physics.NewRateDamped(), dt)
//	sim := dynamo.New(plant, integrators.NewRK4(), ctrl)
//	sim.AddObserver(plant)
//	result, _ := sim.Run(ctx, x0, cfg)
//
// # Thread Safety
//
// Simulator instances are NOT thread-safe. A controller that holds solver
// state must not be shared between simulators running concurrently.
package dynamo
