package mpc

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/logging"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/nlp"
)

func solutionWithFirstControl(l Layout, u dynamo.Control) []float64 {
	z := make([]float64, l.NumVars())
	copy(z[l.ControlIndex(0, 0):], u)
	return z
}

func TestControllerPassesCycleArguments(t *testing.T) {
	assert := assert.New(t)

	cfg := testConfig(3)
	l := Layout{N: 3}
	stub := &stubSolver{res: &nlp.Result{X: solutionWithFirstControl(l, dynamo.Control{1, 2, 3}), Status: nlp.StatusConverged}}
	sink := &recordingSink{}

	c, err := New(cfg, direct{}, stubFactory(stub),
		WithSetpoint(Fixed{0.2, 0, 0}), WithSink(sink), WithLogger(logging.Discard()))
	assert.NoError(err)
	assert.Equal(PhaseReady, c.Phase())

	assert.NoError(c.UpdateState(dynamo.State{0.01, 0, -0.02}))
	res, err := c.Solve(context.Background())
	assert.NoError(err)

	assert.Equal([]float64{0.01, 0, -0.02, 0.2, 0, 0}, stub.args.Params[:6])
	assert.InDeltaSlice([]float64{0.1, 0, -0.2}, stub.args.Params[6:], 1e-12)
	assert.Equal(make([]float64, l.NumVars()), stub.args.X0)
	assert.Equal(c.Horizon().Bounds, stub.args.Bounds)

	assert.True(res.Converged)
	assert.Equal(dynamo.Control{1, 2, 3}, res.Control)
	assert.Equal(dynamo.Control{1, 2, 3}, res.Applied)
	assert.Equal([]dynamo.Control{{1, 2, 3}}, sink.applied)
	assert.Equal(dynamo.Control{1, 2, 3}, c.LastControl())
	assert.Nil(c.LastFault())
	assert.Equal(PhaseReady, c.Phase())
	assert.Equal(1, c.Stats().Converged)
}

func TestControllerNonConvergenceHoldsLast(t *testing.T) {
	assert := assert.New(t)

	l := Layout{N: 2}
	stub := &stubSolver{res: &nlp.Result{X: solutionWithFirstControl(l, dynamo.Control{4, 4, 4}), Status: nlp.StatusConverged}}
	c, err := New(testConfig(2), direct{}, stubFactory(stub), WithLogger(logging.Discard()))
	assert.NoError(err)

	_, err = c.Solve(context.Background())
	assert.NoError(err)

	stub.res = &nlp.Result{X: solutionWithFirstControl(l, dynamo.Control{9, 9, 9}), Status: nlp.StatusIterationLimit}
	stub.err = nlp.ErrNotConverged
	res, err := c.Solve(context.Background())

	assert.ErrorIs(err, nlp.ErrNotConverged)
	var ce *CycleError
	assert.True(errors.As(err, &ce))
	assert.Equal(1, ce.Cycle)

	assert.False(res.Converged)
	assert.Equal(dynamo.Control{9, 9, 9}, res.Control)
	assert.Equal(dynamo.Control{4, 4, 4}, res.Applied)
	assert.ErrorIs(c.LastFault(), nlp.ErrNotConverged)
	assert.Equal(1, c.Stats().Failed)
}

func TestControllerFailSafeZeroOnTimeout(t *testing.T) {
	assert := assert.New(t)

	cfg := testConfig(2)
	cfg.FailSafe = FailSafeZero
	l := Layout{N: 2}
	stub := &stubSolver{res: &nlp.Result{X: solutionWithFirstControl(l, dynamo.Control{4, 4, 4})}}
	c, err := New(cfg, direct{}, stubFactory(stub), WithLogger(logging.Discard()))
	assert.NoError(err)

	_, _ = c.Solve(context.Background())
	stub.err = nlp.ErrTimeout

	u := c.Compute(dynamo.State{0, 0, 0}, 0.1)
	assert.Equal(dynamo.Control{0, 0, 0}, u)
	assert.ErrorIs(c.LastFault(), nlp.ErrTimeout)
	assert.Equal(1, c.Stats().Timeouts)
}

func TestControllerNonFiniteSolutionAppliesFailSafe(t *testing.T) {
	assert := assert.New(t)

	l := Layout{N: 2}
	stub := &stubSolver{res: &nlp.Result{X: solutionWithFirstControl(l, dynamo.Control{2, 0, 0}), Status: nlp.StatusConverged}}
	sink := &recordingSink{}
	c, err := New(testConfig(2), direct{}, stubFactory(stub), WithSink(sink), WithLogger(logging.Discard()))
	assert.NoError(err)

	_, err = c.Solve(context.Background())
	assert.NoError(err)

	bad := solutionWithFirstControl(l, dynamo.Control{7, 7, 7})
	bad[l.StateIndex(2, 0)] = math.Inf(1)
	stub.res = &nlp.Result{X: bad, Status: nlp.StatusConverged}

	u := c.Compute(dynamo.State{0, 0, 0}, 0.1)
	assert.Equal(dynamo.Control{2, 0, 0}, u)
	assert.ErrorIs(c.LastFault(), ErrInvalidSolution)
	assert.Equal([]dynamo.Control{{2, 0, 0}, {2, 0, 0}}, sink.applied)
	assert.Equal(1, c.Stats().Converged)
	assert.Equal(1, c.Stats().Failed)
}

func TestControllerSaturatedControlStaysInBound(t *testing.T) {
	assert := assert.New(t)

	cfg := testConfig(3)
	cfg.ControlBound = 1
	c, err := New(cfg, direct{}, nlp.NewAugLag,
		WithSetpoint(Fixed{1.5, 0, 0}), WithLogger(logging.Discard()))
	assert.NoError(err)

	res, err := c.Solve(context.Background())
	assert.NoError(err)
	assert.True(res.Converged)
	for i, v := range res.Applied {
		assert.LessOrEqual(math.Abs(v), cfg.ControlBound, "u[%d]", i)
	}
	assert.InDelta(1.0, res.Applied[0], 1e-3)
	for k, u := range res.Controls {
		for i, v := range u {
			assert.LessOrEqual(math.Abs(v), cfg.ControlBound, "U(%d)[%d]", k, i)
		}
	}
}

func TestControllerRejectsInvalidMeasurement(t *testing.T) {
	assert := assert.New(t)

	l := Layout{N: 2}
	stub := &stubSolver{res: &nlp.Result{X: solutionWithFirstControl(l, dynamo.Control{1, 0, 0})}}
	c, err := New(testConfig(2), direct{}, stubFactory(stub), WithLogger(logging.Discard()))
	assert.NoError(err)

	assert.ErrorIs(c.UpdateState(dynamo.State{math.NaN(), 0, 0}), ErrInvalidMeasurement)
	state, _ := c.State()
	assert.Equal(dynamo.State{0, 0, 0}, state)

	_, _ = c.Solve(context.Background())
	u := c.Compute(dynamo.State{0, math.Inf(1), 0}, 0.1)
	assert.Equal(dynamo.Control{1, 0, 0}, u)
	assert.ErrorIs(c.LastFault(), ErrInvalidMeasurement)
	assert.Equal(1, stub.calls)
	assert.Equal(2, c.Stats().Rejected)
}

func TestControllerSolverWithoutResult(t *testing.T) {
	assert := assert.New(t)

	stub := &stubSolver{err: nlp.ErrDimension}
	c, err := New(testConfig(2), direct{}, stubFactory(stub), WithLogger(logging.Discard()))
	assert.NoError(err)

	res, err := c.Solve(context.Background())
	assert.Nil(res)
	assert.ErrorIs(err, nlp.ErrDimension)
	assert.Equal(PhaseReady, c.Phase())
}

func TestControllerFactoryError(t *testing.T) {
	boom := errors.New("boom")
	_, err := New(testConfig(2), direct{}, func(*nlp.Problem, nlp.Options) (nlp.Solver, error) {
		return nil, boom
	}, WithLogger(logging.Discard()))
	assert.ErrorIs(t, err, boom)
}

func TestControllerWarmStartPrevious(t *testing.T) {
	assert := assert.New(t)

	cfg := testConfig(2)
	cfg.WarmStart = WarmStartPrevious
	l := Layout{N: 2}
	sol, _ := l.Pack([]dynamo.State{{0, 0, 0}, {0.1, 0, 0}, {0.2, 0, 0}}, []dynamo.Control{{1, 0, 0}, {1, 0, 0}})
	stub := &stubSolver{res: &nlp.Result{X: sol}}
	c, err := New(cfg, direct{}, stubFactory(stub), WithLogger(logging.Discard()))
	assert.NoError(err)

	_, _ = c.Solve(context.Background())
	_, _ = c.Solve(context.Background())

	want, _ := l.Pack([]dynamo.State{{0.1, 0, 0}, {0.2, 0, 0}, {0.2, 0, 0}}, []dynamo.Control{{1, 0, 0}, {1, 0, 0}})
	assert.Equal(want, stub.args.X0)
}

func TestControllerReset(t *testing.T) {
	assert := assert.New(t)

	l := Layout{N: 2}
	stub := &stubSolver{res: &nlp.Result{X: solutionWithFirstControl(l, dynamo.Control{1, 1, 1})}}
	c, err := New(testConfig(2), direct{}, stubFactory(stub), WithLogger(logging.Discard()))
	assert.NoError(err)

	_ = c.UpdateState(dynamo.State{0.5, 0, 0})
	_, _ = c.Solve(context.Background())
	c.Reset()

	state, rate := c.State()
	assert.Equal(dynamo.State{0, 0, 0}, state)
	assert.Equal(dynamo.State{0, 0, 0}, rate)
	assert.Equal(dynamo.Control{0, 0, 0}, c.LastControl())
	assert.Equal(Stats{}, c.Stats())
}

func TestCycleErrorMessage(t *testing.T) {
	err := &CycleError{Cycle: 3, Phase: PhaseSolving, Wrapped: nlp.ErrNotConverged}
	assert.Equal(t, "cycle 3 (solving): nlp: solver did not converge", err.Error())
}
