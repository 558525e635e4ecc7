package metrics

import (
	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/mpc"
)

// StatsSource is implemented by *mpc.Controller.
type StatsSource interface {
	Stats() mpc.Stats
}

// SolveStat reports one figure from the controller's solve statistics,
// taken as the difference since the last Reset.
type SolveStat struct {
	name string
	src  StatsSource
	pick func(mpc.Stats) float64
	base mpc.Stats
}

func newSolveStat(name string, src StatsSource, pick func(mpc.Stats) float64) *SolveStat {
	return &SolveStat{name: name, src: src, pick: pick}
}

// NewConvergenceRate is the fraction of cycles that converged.
func NewConvergenceRate(src StatsSource) *SolveStat {
	return newSolveStat("convergence_rate", src, func(s mpc.Stats) float64 {
		if s.Cycles == 0 {
			return 0
		}
		return float64(s.Converged) / float64(s.Cycles)
	})
}

// NewMeanIterations is the mean number of outer solver iterations per cycle.
func NewMeanIterations(src StatsSource) *SolveStat {
	return newSolveStat("mean_iterations", src, func(s mpc.Stats) float64 {
		if s.Cycles == 0 {
			return 0
		}
		return float64(s.Iterations) / float64(s.Cycles)
	})
}

// NewMeanSolveTime is the mean solve wall time per cycle in milliseconds.
func NewMeanSolveTime(src StatsSource) *SolveStat {
	return newSolveStat("mean_solve_ms", src, func(s mpc.Stats) float64 {
		if s.Cycles == 0 {
			return 0
		}
		return float64(s.SolveTime.Microseconds()) / 1000 / float64(s.Cycles)
	})
}

func (s *SolveStat) Name() string { return s.name }

// Observe is a no-op; the figures are read from the controller.
func (s *SolveStat) Observe(x dynamo.State, u dynamo.Control, t float64) {}

func (s *SolveStat) Value() float64 {
	cur := s.src.Stats()
	return s.pick(mpc.Stats{
		Cycles:     cur.Cycles - s.base.Cycles,
		Converged:  cur.Converged - s.base.Converged,
		Failed:     cur.Failed - s.base.Failed,
		Timeouts:   cur.Timeouts - s.base.Timeouts,
		Rejected:   cur.Rejected - s.base.Rejected,
		Iterations: cur.Iterations - s.base.Iterations,
		SolveTime:  cur.SolveTime - s.base.SolveTime,
	})
}

func (s *SolveStat) Reset() {
	s.base = s.src.Stats()
}
