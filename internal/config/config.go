package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/mpc"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/nlp"
)

const (
	DefaultDt       = 0.1
	DefaultDuration = 5.0
	DefaultKp       = 20.0
	DefaultKi       = 0.5
	DefaultKd       = 1.0
	DefaultCANID    = 0x120
	DefaultCANScale = 0.01
)

type Config struct {
	Model      string  `yaml:"model"`
	Integrator string  `yaml:"integrator"`
	Controller string  `yaml:"controller"`
	Dt         float64 `yaml:"dt"`
	Duration   float64 `yaml:"duration"`
	Seed       int64   `yaml:"seed"`

	InitState   AttitudeConfig     `yaml:"init_state"`
	Setpoint    SetpointConfig     `yaml:"setpoint"`
	PlantParams map[string]float64 `yaml:"plant_params,omitempty"`

	MPC      mpc.Config     `yaml:"mpc"`
	Solver   nlp.Options    `yaml:"solver"`
	PID      PIDConfig      `yaml:"pid"`
	Actuator ActuatorConfig `yaml:"actuator"`
	Log      LogConfig      `yaml:"log"`
}

type AttitudeConfig struct {
	Roll  float64 `yaml:"roll"`
	Pitch float64 `yaml:"pitch"`
	Yaw   float64 `yaml:"yaw"`
}

func (a AttitudeConfig) State() dynamo.State {
	return dynamo.State{a.Roll, a.Pitch, a.Yaw}
}

type StepConfig struct {
	At             float64 `yaml:"at"`
	AttitudeConfig `yaml:",inline"`
}

type SetpointConfig struct {
	AttitudeConfig `yaml:",inline"`
	Steps          []StepConfig `yaml:"steps,omitempty"`
}

// Source builds the setpoint source: a fixed attitude, or a step schedule
// when steps are configured.
func (s SetpointConfig) Source() mpc.SetpointSource {
	if len(s.Steps) == 0 {
		return mpc.Fixed(s.State())
	}
	steps := make([]mpc.Step, len(s.Steps))
	for i, st := range s.Steps {
		steps[i] = mpc.Step{At: st.At, Value: st.State()}
	}
	return mpc.NewStepSchedule(s.State(), steps...)
}

type PIDConfig struct {
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`
}

type ActuatorConfig struct {
	// Interface is a SocketCAN interface such as vcan0; empty disables CAN output.
	Interface string  `yaml:"interface"`
	ID        uint32  `yaml:"id"`
	Scale     float64 `yaml:"scale"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:      "rate_damped",
		Integrator: "rk4",
		Controller: "mpc",
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		Setpoint:   SetpointConfig{AttitudeConfig: AttitudeConfig{Roll: 0.2}},
		MPC:        mpc.DefaultConfig(),
		Solver:     nlp.DefaultOptions(),
		PID:        PIDConfig{Kp: DefaultKp, Ki: DefaultKi, Kd: DefaultKd},
		Actuator:   ActuatorConfig{ID: DefaultCANID, Scale: DefaultCANScale},
		Log:        LogConfig{Level: "info"},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ControllerConfig merges the mpc, solver and initial-state sections.
func (c *Config) ControllerConfig() mpc.Config {
	m := c.MPC
	m.Solver = c.Solver
	m.InitialState = [dynamo.Dim]float64{c.InitState.Roll, c.InitState.Pitch, c.InitState.Yaw}
	return m
}

func (c *Config) GetInitState() dynamo.State {
	return c.InitState.State()
}

func (c *Config) GetControllerParams() map[string]float64 {
	return map[string]float64{
		"kp": c.PID.Kp,
		"ki": c.PID.Ki,
		"kd": c.PID.Kd,
	}
}

var (
	knownModels      = []string{"rate_damped", "coupled"}
	knownIntegrators = []string{"rk4", "euler"}
	knownControllers = []string{"mpc", "pid", "none"}
)

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if !oneOf(c.Model, knownModels) {
		return fmt.Errorf("unknown model: %s", c.Model)
	}
	if !oneOf(c.Integrator, knownIntegrators) {
		return fmt.Errorf("unknown integrator: %s", c.Integrator)
	}
	if !oneOf(c.Controller, knownControllers) {
		return fmt.Errorf("unknown controller: %s", c.Controller)
	}
	if c.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", c.Dt)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", c.Duration)
	}
	if c.Controller == "mpc" {
		if err := c.ControllerConfig().Validate(); err != nil {
			return err
		}
	}
	if c.Actuator.Interface != "" && c.Actuator.Scale <= 0 {
		return fmt.Errorf("actuator scale must be positive, got %f", c.Actuator.Scale)
	}
	return nil
}
