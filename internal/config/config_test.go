package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/mpc"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model != "rate_damped" {
		t.Errorf("expected model rate_damped, got %s", cfg.Model)
	}
	if cfg.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if cfg.Duration <= 0 {
		t.Error("duration should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	if cfg.Solver.MaxIter != 99 {
		t.Errorf("expected 99 solver iterations, got %d", cfg.Solver.MaxIter)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("rate_damped", "short_horizon")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.MPC.Horizon != 3 {
		t.Errorf("expected horizon 3, got %d", cfg.MPC.Horizon)
	}

	cfg.MPC.Horizon = 99
	if GetPreset("rate_damped", "short_horizon").MPC.Horizon != 3 {
		t.Error("GetPreset should return a copy")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if GetPreset("rate_damped", "nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
	if GetPreset("nonexistent", "roll_step") != nil {
		t.Error("expected nil for nonexistent model")
	}
}

func TestPresetsValidate(t *testing.T) {
	for _, model := range ListModels() {
		for _, name := range ListPresets(model) {
			if err := GetPreset(model, name).Validate(); err != nil {
				t.Errorf("preset %s/%s invalid: %v", model, name, err)
			}
		}
	}
	if ListPresets("nonexistent") != nil {
		t.Error("expected nil for nonexistent model")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"model", func(c *Config) { c.Model = "pendulum" }},
		{"integrator", func(c *Config) { c.Integrator = "verlet" }},
		{"controller", func(c *Config) { c.Controller = "lqr" }},
		{"dt", func(c *Config) { c.Dt = 0 }},
		{"duration", func(c *Config) { c.Duration = -1 }},
		{"horizon", func(c *Config) { c.MPC.Horizon = 0 }},
		{"init outside bounds", func(c *Config) { c.InitState.Roll = 2 }},
		{"actuator scale", func(c *Config) { c.Actuator.Interface = "vcan0"; c.Actuator.Scale = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if cfg.Validate() == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	assert := assert.New(t)

	cfg := GetPreset("rate_damped", "schedule")
	cfg.MPC.Timeout = 50 * time.Millisecond
	cfg.MPC.Q = [3]float64{5, 4, 3}
	cfg.PlantParams = map[string]float64{"gain_roll": 0.3}

	path := filepath.Join(t.TempDir(), "run.yaml")
	assert.NoError(Save(path, cfg))

	loaded, err := Load(path)
	assert.NoError(err)
	assert.Equal(cfg.MPC.Timeout, loaded.MPC.Timeout)
	assert.Equal(cfg.MPC.Q, loaded.MPC.Q)
	assert.Equal(mpc.WarmStartPrevious, loaded.MPC.WarmStart)
	assert.Equal(cfg.Setpoint.Steps, loaded.Setpoint.Steps)
	assert.Equal(0.3, loaded.PlantParams["gain_roll"])
}

func TestControllerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitState = AttitudeConfig{Roll: 0.1, Pitch: 0.2, Yaw: 0.3}
	cfg.Solver.MaxIter = 7

	m := cfg.ControllerConfig()
	assert.Equal(t, [3]float64{0.1, 0.2, 0.3}, m.InitialState)
	assert.Equal(t, 7, m.Solver.MaxIter)
}

func TestSetpointSource(t *testing.T) {
	assert := assert.New(t)
	cur := dynamo.State{0, 0, 0}

	fixed := SetpointConfig{AttitudeConfig: AttitudeConfig{Roll: 0.2}}.Source()
	assert.Equal(dynamo.State{0.2, 0, 0}, fixed.Setpoint(3, cur))

	sched := GetPreset("rate_damped", "schedule").Setpoint.Source()
	assert.Equal(dynamo.State{0, 0, 0}, sched.Setpoint(0.5, cur))
	assert.Equal(dynamo.State{0.3, 0, 0}, sched.Setpoint(2, cur))
	assert.Equal(dynamo.State{0.3, -0.2, 0.4}, sched.Setpoint(5, cur))
}
