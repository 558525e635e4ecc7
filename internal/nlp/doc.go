// Package nlp describes bound- and equality-constrained nonlinear programs
// and provides a solver for them.
//
// A [Problem] is built once and handed to a [Factory], which returns a
// reusable [Solver]. Each call to [Solver.Solve] supplies the per-call
// [Args]: runtime parameter values, variable and constraint bounds, and an
// initial guess.
//
//	minimize   f(x; p)
//	subject to lbg ≤ g(x; p) ≤ ubg
//	           lbx ≤ x ≤ ubx
//
// [AugLag] solves this with a Powell-Hestenes-Rockafellar augmented
// Lagrangian. Rows with lbg == ubg are equalities; every other finite bound
// becomes an inequality with its own multiplier. The inner unconstrained
// subproblems are minimised with L-BFGS from gonum/optimize, using
// central-difference gradients from gonum/diff/fd.
//
// Solvers are not reentrant: a Solver must not be used by two goroutines at
// once.
package nlp
