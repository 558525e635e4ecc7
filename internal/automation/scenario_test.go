package automation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/experiment"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/logging"
)

const scenarioYAML = `
name: gains
description: pid against a weaker plant
model: rate_damped
steps:
  - name: nominal
    preset: pid_baseline
    duration: 1
  - name: weak
    preset: pid_baseline
    duration: 1
    params:
      kp: 30
    plant_params:
      gain_roll: 0.1
  - controller: none
    duration: 0.5
    init_state:
      roll: 0.1
`

func writeScenario(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadScenario(t *testing.T) {
	assert := assert.New(t)

	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	assert.NoError(err)
	assert.Equal("gains", sc.Name)
	assert.Len(sc.Steps, 3)

	cfg, err := sc.StepConfig(1)
	assert.NoError(err)
	assert.Equal("pid", cfg.Controller)
	assert.Equal(30.0, cfg.PID.Kp)
	assert.Equal(0.1, cfg.PlantParams["gain_roll"])
	assert.Equal(1.0, cfg.Duration)

	cfg, err = sc.StepConfig(2)
	assert.NoError(err)
	assert.Equal("none", cfg.Controller)
	assert.Equal(0.1, cfg.InitState.Roll)

	_, err = LoadScenario(writeScenario(t, "name: empty\n"))
	assert.Error(err)
}

func TestStepConfigErrors(t *testing.T) {
	sc := &Scenario{Model: "rate_damped", Steps: []ScenarioStep{
		{Preset: "missing"},
		{Params: map[string]float64{"bogus": 1}},
		{Controller: "lqr"},
	}}
	for i := range sc.Steps {
		_, err := sc.StepConfig(i)
		assert.Error(t, err, "step %d", i)
	}
}

func TestRunScenario(t *testing.T) {
	assert := assert.New(t)

	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	assert.NoError(err)

	var seen []string
	results, err := RunScenario(context.Background(), sc, experiment.NewRegistry(),
		func(sr StepResult) error {
			seen = append(seen, sr.Name)
			return nil
		},
		experiment.WithLogger(logging.Discard()),
	)
	assert.NoError(err)
	assert.Len(results, 3)
	assert.Equal([]string{"nominal", "weak", "step3"}, seen)

	nominal := results[0].Result.States[len(results[0].Result.States)-1][0]
	weak := results[1].Result.States[len(results[1].Result.States)-1][0]
	assert.Greater(nominal, 0.0)
	assert.NotEqual(nominal, weak)

	assert.Equal(5, results[2].Result.StepsTaken)
	assert.InDelta(0.1, results[2].Result.States[5][0], 1e-12)
}

func TestRunScenarioStopsOnCallbackError(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	assert.NoError(t, err)

	results, err := RunScenario(context.Background(), sc, experiment.NewRegistry(),
		func(StepResult) error { return assert.AnError },
		experiment.WithLogger(logging.Discard()),
	)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Len(t, results, 1)
}
