package nlp

import "errors"

var (
	// ErrNotConverged indicates the iteration budget ran out before the
	// tolerances were met. The returned Result holds the last iterate.
	ErrNotConverged = errors.New("nlp: solver did not converge")

	// ErrInfeasible indicates the constraint violation could not be reduced
	// even at the maximum penalty.
	ErrInfeasible = errors.New("nlp: problem appears infeasible")

	// ErrTimeout indicates the context expired during the solve.
	ErrTimeout = errors.New("nlp: solve deadline exceeded")

	// ErrDimension indicates arguments that do not match the problem layout.
	ErrDimension = errors.New("nlp: argument dimension mismatch")
)
