package mpc

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig indicates a horizon, weight or bound that cannot be built.
	ErrInvalidConfig = errors.New("mpc: invalid controller configuration")

	// ErrLayout indicates the decision-variable packing is inconsistent.
	ErrLayout = errors.New("mpc: inconsistent decision variable layout")

	// ErrDimensionMismatch indicates a state, setpoint or parameter vector of
	// the wrong length.
	ErrDimensionMismatch = errors.New("mpc: dimension mismatch")

	// ErrInvalidMeasurement indicates a measurement holding NaN or Inf.
	ErrInvalidMeasurement = errors.New("mpc: invalid measurement")

	// ErrInvalidSolution indicates a solver result holding NaN or Inf.
	ErrInvalidSolution = errors.New("mpc: solution is not finite")

	// ErrInfeasibleStart indicates the initial state lies outside the state
	// bounds, so the initial-condition constraint can never hold.
	ErrInfeasibleStart = errors.New("mpc: initial state violates state bounds")
)

// CycleError wraps an error with the control cycle it happened in.
type CycleError struct {
	Cycle   int
	Phase   Phase
	Wrapped error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle %d (%s): %v", e.Cycle, e.Phase, e.Wrapped)
}

func (e *CycleError) Unwrap() error {
	return e.Wrapped
}
