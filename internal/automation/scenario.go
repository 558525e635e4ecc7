// Package automation runs scripted sequences of closed-loop experiments.
package automation

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/config"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/experiment"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/optim"
)

// Scenario defines a scripted simulation sequence
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Model       string         `yaml:"model"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one run. Unset fields keep the preset's (or default)
// values; Params go through optim.ApplyParam.
type ScenarioStep struct {
	Name        string                `yaml:"name"`
	Model       string                `yaml:"model"`
	Preset      string                `yaml:"preset"`
	Controller  string                `yaml:"controller"`
	Duration    float64               `yaml:"duration"`
	InitState   *config.AttitudeConfig `yaml:"init_state"`
	Setpoint    *config.SetpointConfig `yaml:"setpoint"`
	Params      map[string]float64    `yaml:"params"`
	PlantParams map[string]float64    `yaml:"plant_params"`
}

// StepResult pairs a step with the configuration it ran and its outcome.
type StepResult struct {
	Name   string
	Config *config.Config
	Result *dynamo.Result
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps", path)
	}
	return &scenario, nil
}

// StepConfig resolves the configuration a step runs with.
func (s *Scenario) StepConfig(i int) (*config.Config, error) {
	step := s.Steps[i]
	model := step.Model
	if model == "" {
		model = s.Model
	}

	cfg := config.DefaultConfig()
	if step.Preset != "" {
		if model == "" {
			model = cfg.Model
		}
		cfg = config.GetPreset(model, step.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %s for model %s", step.Preset, model)
		}
	}
	if model != "" {
		cfg.Model = model
	}
	if step.Controller != "" {
		cfg.Controller = step.Controller
	}
	if step.Duration > 0 {
		cfg.Duration = step.Duration
	}
	if step.InitState != nil {
		cfg.InitState = *step.InitState
	}
	if step.Setpoint != nil {
		cfg.Setpoint = *step.Setpoint
	}
	for name, v := range step.Params {
		if err := optim.ApplyParam(cfg, name, v); err != nil {
			return nil, err
		}
	}
	if len(step.PlantParams) > 0 {
		merged := make(map[string]float64, len(cfg.PlantParams)+len(step.PlantParams))
		for k, v := range cfg.PlantParams {
			merged[k] = v
		}
		for k, v := range step.PlantParams {
			merged[k] = v
		}
		cfg.PlantParams = merged
	}
	return cfg, cfg.Validate()
}

func (s *Scenario) stepName(i int) string {
	if s.Steps[i].Name != "" {
		return s.Steps[i].Name
	}
	return fmt.Sprintf("step%d", i+1)
}

// RunScenario executes all steps in order. onStep, when set, sees each
// result as it completes; an error from it stops the scenario.
func RunScenario(
	ctx context.Context,
	scenario *Scenario,
	registry *experiment.Registry,
	onStep func(StepResult) error,
	opts ...experiment.Option,
) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i := range scenario.Steps {
		name := scenario.stepName(i)
		cfg, err := scenario.StepConfig(i)
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, name, err)
		}

		exp, err := experiment.Build(registry, cfg, opts...)
		if err != nil {
			return results, fmt.Errorf("step %d (%s) setup: %w", i+1, name, err)
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d (%s) run: %w", i+1, name, err)
		}

		sr := StepResult{Name: name, Config: cfg, Result: result}
		results = append(results, sr)
		if onStep != nil {
			if err := onStep(sr); err != nil {
				return results, err
			}
		}
	}

	return results, nil
}
