// Package mpc implements a receding-horizon attitude controller.
//
// BuildHorizon assembles a multiple-shooting program once: node-major
// state and control decision variables, RK4 defects as equality
// constraints, and a quadratic tracking plus effort cost. The auxiliary
// rate fed to the dynamics model at node i+1 is |X(i+1) - X(i)| / h, built
// as a list of expressions over the decision vector; node 0 uses the
// absolute measured rate from the parameter vector.
//
// Each cycle the Controller packs [state, desired, rate] into the
// parameter vector, solves from the warm start and applies the first
// control, which sits at offset 3(N+1) of the solution.
package mpc
