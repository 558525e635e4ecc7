package experiment

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/config"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/logging"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/mpc"
)

func TestRegistryLookups(t *testing.T) {
	assert := assert.New(t)
	r := NewRegistry()

	assert.Equal([]string{"coupled", "rate_damped"}, r.ListModels())
	assert.Equal([]string{"mpc", "none", "pid"}, r.ListControllers())

	_, err := r.GetModel("pendulum")
	assert.Error(err)
	_, err = r.GetIntegrator("verlet")
	assert.Error(err)
	_, err = r.GetController("lqr", ControllerDeps{})
	assert.Error(err)

	integ, err := r.GetIntegrator("euler")
	assert.NoError(err)
	assert.NotNil(integ)
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Model = "pendulum"
	_, err := Build(NewRegistry(), cfg)
	assert.Error(t, err)

	cfg = config.DefaultConfig()
	cfg.PlantParams = map[string]float64{"mass": 1}
	_, err = Build(NewRegistry(), cfg)
	assert.Error(t, err)
}

func TestPIDExperiment(t *testing.T) {
	assert := assert.New(t)

	cfg := config.GetPreset("rate_damped", "pid_baseline")
	cfg.Duration = 3
	exp, err := Build(NewRegistry(), cfg, WithLogger(logging.Discard()))
	assert.NoError(err)

	res, err := exp.Run(context.Background())
	assert.NoError(err)
	assert.Equal(30, res.StepsTaken)
	assert.Len(res.States, 31)
	assert.Contains(res.Metrics, "tracking_rms")
	assert.NotContains(res.Metrics, "convergence_rate")
	assert.Greater(res.States[len(res.States)-1][0], 0.1)
}

type countingSink struct{ n int }

func (c *countingSink) Apply(ctx context.Context, u dynamo.Control) error {
	c.n++
	return nil
}

func TestMPCExperiment(t *testing.T) {
	assert := assert.New(t)

	cfg := config.GetPreset("rate_damped", "short_horizon")
	cfg.Duration = 0.5
	sink := &countingSink{}
	exp, err := Build(NewRegistry(), cfg, WithLogger(logging.Discard()), WithSink(sink))
	assert.NoError(err)

	_, ok := exp.Controller().(*mpc.Controller)
	assert.True(ok)

	res, err := exp.Run(context.Background())
	assert.NoError(err)
	assert.Equal(5, res.StepsTaken)
	assert.Equal(5, sink.n)
	assert.Contains(res.Metrics, "convergence_rate")
	assert.Contains(res.Metrics, "mean_iterations")

	final := res.States[len(res.States)-1]
	assert.InDelta(0.2, final[0], 0.05)
	assert.InDelta(0, final[1], 1e-3)
	assert.InDelta(0, final[2], 1e-3)

	for _, u := range res.Controls {
		for _, v := range u {
			assert.LessOrEqual(math.Abs(v), 15+1e-6)
		}
	}

	// runs are repeatable after the internal reset
	again, err := exp.Run(context.Background())
	assert.NoError(err)
	assert.Equal(res.StepsTaken, again.StepsTaken)
}

func TestRunWithCallbackStops(t *testing.T) {
	cfg := config.GetPreset("rate_damped", "pid_baseline")
	exp, err := Build(NewRegistry(), cfg, WithLogger(logging.Discard()))
	assert.NoError(t, err)

	steps := 0
	err = exp.RunWithCallback(context.Background(), func(x dynamo.State, u dynamo.Control, t float64) bool {
		steps++
		return steps < 4
	})
	assert.NoError(t, err)
	assert.Equal(t, 4, steps)
}
