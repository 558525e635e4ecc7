package mpc

import (
	"context"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/nlp"
)

// direct integrates the control: dx = u.
type direct struct{}

func (direct) Derive(x dynamo.State, u dynamo.Control, rate dynamo.State) dynamo.State {
	return dynamo.State{u[0], u[1], u[2]}
}

// rateEcho returns the auxiliary rate as the derivative.
type rateEcho struct{}

func (rateEcho) Derive(x dynamo.State, u dynamo.Control, rate dynamo.State) dynamo.State {
	return rate.Clone()
}

type stubSolver struct {
	res   *nlp.Result
	err   error
	calls int
	args  nlp.Args
}

func (s *stubSolver) Solve(ctx context.Context, args nlp.Args) (*nlp.Result, error) {
	s.calls++
	s.args = args
	return s.res, s.err
}

func stubFactory(s *stubSolver) nlp.Factory {
	return func(p *nlp.Problem, opts nlp.Options) (nlp.Solver, error) {
		return s, nil
	}
}

type recordingSink struct {
	applied []dynamo.Control
	err     error
}

func (r *recordingSink) Apply(ctx context.Context, u dynamo.Control) error {
	r.applied = append(r.applied, u.Clone())
	return r.err
}

func testConfig(n int) Config {
	cfg := DefaultConfig()
	cfg.Horizon = n
	return cfg
}
