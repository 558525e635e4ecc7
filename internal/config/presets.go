package config

import (
	"sort"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/mpc"
)

func preset(mutate func(*Config)) *Config {
	cfg := DefaultConfig()
	mutate(cfg)
	return cfg
}

var Presets = map[string]map[string]*Config{
	"rate_damped": {
		"roll_step": preset(func(c *Config) {
			c.Setpoint.Roll = 0.2
		}),
		"short_horizon": preset(func(c *Config) {
			c.MPC.Horizon = 3
			c.Setpoint.Roll = 0.2
		}),
		"schedule": preset(func(c *Config) {
			c.Duration = 8
			c.MPC.WarmStart = mpc.WarmStartPrevious
			c.Setpoint = SetpointConfig{Steps: []StepConfig{
				{At: 1, AttitudeConfig: AttitudeConfig{Roll: 0.3}},
				{At: 4, AttitudeConfig: AttitudeConfig{Roll: 0.3, Pitch: -0.2, Yaw: 0.4}},
			}}
		}),
		"recover": preset(func(c *Config) {
			c.InitState = AttitudeConfig{Roll: 0.6, Pitch: -0.4, Yaw: 0.2}
			c.Setpoint = SetpointConfig{}
			c.MPC.R = [3]float64{0.01, 0.01, 0.01}
		}),
		"pid_baseline": preset(func(c *Config) {
			c.Controller = "pid"
			c.Setpoint.Roll = 0.2
		}),
	},
	"coupled": {
		"tumble": preset(func(c *Config) {
			c.Model = "coupled"
			c.InitState = AttitudeConfig{Roll: 0.5, Pitch: 0.5, Yaw: -0.5}
			c.Setpoint = SetpointConfig{}
		}),
		"attitude_change": preset(func(c *Config) {
			c.Model = "coupled"
			c.Setpoint = SetpointConfig{AttitudeConfig: AttitudeConfig{Roll: 0.3, Pitch: -0.3, Yaw: 0.5}}
			c.MPC.WarmStart = mpc.WarmStartPrevious
		}),
		"tight_actuator": preset(func(c *Config) {
			c.Model = "coupled"
			c.MPC.ControlBound = 5
			c.Setpoint = SetpointConfig{AttitudeConfig: AttitudeConfig{Roll: 0.4}}
		}),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	out := *cfg
	out.Setpoint.Steps = append([]StepConfig(nil), cfg.Setpoint.Steps...)
	return &out
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ListModels() []string {
	models := make([]string, 0, len(Presets))
	for m := range Presets {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}
