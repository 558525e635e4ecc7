// Package physics provides attitude dynamics models.
//
// Each model implements [dynamo.Model], the interface the predictive
// controller embeds in its horizon:
//
//   - [RateDamped]: decoupled per-axis actuation with rate-dependent
//     effectiveness
//   - [Coupled]: RateDamped plus gyroscopic cross-coupling between axes
//
// [Plant] adapts a model into a [dynamo.System] so the same equations can
// be simulated in closed loop. The plant tracks its own auxiliary rate from
// the states it observes, exactly as the controller estimates it from
// measurements.
//
// Models also implement [dynamo.Configurable] for runtime parameter
// adjustment:
//
//	m := physics.NewCoupled()
//	_ = m.SetParam("kappa", 0.2)
package physics
