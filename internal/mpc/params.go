package mpc

import (
	"fmt"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
)

// ParamLen is the length of the runtime parameter vector
// [state(3), desired(3), rate(3)].
const ParamLen = 3 * dynamo.Dim

const (
	paramState   = 0
	paramDesired = dynamo.Dim
	paramRate    = 2 * dynamo.Dim
)

// PackParams builds the runtime parameter vector for one solve.
func PackParams(state, desired, rate dynamo.State) ([]float64, error) {
	for _, v := range []struct {
		name string
		s    dynamo.State
	}{{"state", state}, {"desired", desired}, {"rate", rate}} {
		if len(v.s) != dynamo.Dim {
			return nil, fmt.Errorf("%w: %s has %d entries, want %d", ErrDimensionMismatch, v.name, len(v.s), dynamo.Dim)
		}
	}
	p := make([]float64, ParamLen)
	copy(p[paramState:], state)
	copy(p[paramDesired:], desired)
	copy(p[paramRate:], rate)
	return p, nil
}

// UnpackParams splits a parameter vector back into copies of its slices.
func UnpackParams(p []float64) (state, desired, rate dynamo.State, err error) {
	if len(p) != ParamLen {
		return nil, nil, nil, fmt.Errorf("%w: parameter vector has %d entries, want %d", ErrDimensionMismatch, len(p), ParamLen)
	}
	return paramSlice(p, paramState).Clone(),
		paramSlice(p, paramDesired).Clone(),
		paramSlice(p, paramRate).Clone(),
		nil
}

func paramSlice(p []float64, off int) dynamo.State {
	return dynamo.State(p[off : off+dynamo.Dim : off+dynamo.Dim])
}
