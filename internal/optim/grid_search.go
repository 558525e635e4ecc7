package optim

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/config"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/experiment"
)

// Trial is one evaluated grid point.
type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type SearchResult struct {
	Best      map[string]float64
	BestValue float64
	Trials    []Trial
}

// GridSearch evaluates every combination of the parameter ranges and keeps
// the one minimising a run metric.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("%d parameter names for %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("empty range for %s", params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Search runs each grid point. Points whose build or run fails are recorded
// in Trials and skipped.
func (g *GridSearch) Search(
	ctx context.Context,
	buildExperiment func(params map[string]float64) (*experiment.Experiment, error),
	metricName string,
) (*SearchResult, error) {
	res := &SearchResult{BestValue: math.Inf(1)}
	if err := g.searchRecursive(ctx, 0, make(map[string]float64), buildExperiment, metricName, res); err != nil {
		return res, err
	}
	if res.Best == nil {
		return res, fmt.Errorf("no grid point produced metric %s", metricName)
	}
	return res, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	buildExperiment func(map[string]float64) (*experiment.Experiment, error),
	metricName string,
	res *SearchResult,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		trial := Trial{Params: current, Value: math.NaN()}
		defer func() { res.Trials = append(res.Trials, trial) }()

		exp, err := buildExperiment(current)
		if err != nil {
			trial.Err = err
			return nil
		}
		result, err := exp.Run(ctx)
		if err != nil {
			trial.Err = err
			return nil
		}
		val, ok := result.Metrics[metricName]
		if !ok {
			trial.Err = fmt.Errorf("metric %s not recorded", metricName)
			return nil
		}
		trial.Value = val
		if val < res.BestValue {
			res.BestValue = val
			res.Best = copyParams(current)
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := copyParams(current)
		newParams[paramName] = val
		if err := g.searchRecursive(ctx, depth+1, newParams, buildExperiment, metricName, res); err != nil {
			return err
		}
	}
	return nil
}

func copyParams(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// TunableParams lists the names ApplyParam understands.
func TunableParams() []string {
	names := make([]string, 0, len(setters))
	for name := range setters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var setters = map[string]func(*config.Config, float64){
	"q":             func(c *config.Config, v float64) { c.MPC.Q = [3]float64{v, v, v} },
	"r":             func(c *config.Config, v float64) { c.MPC.R = [3]float64{v, v, v} },
	"horizon":       func(c *config.Config, v float64) { c.MPC.Horizon = int(math.Round(v)) },
	"step":          func(c *config.Config, v float64) { c.MPC.Step = v },
	"control_bound": func(c *config.Config, v float64) { c.MPC.ControlBound = v },
	"kp":            func(c *config.Config, v float64) { c.PID.Kp = v },
	"ki":            func(c *config.Config, v float64) { c.PID.Ki = v },
	"kd":            func(c *config.Config, v float64) { c.PID.Kd = v },
}

// ApplyParam sets a tunable parameter on cfg. Names of the form q_roll or
// r_yaw set a single axis.
func ApplyParam(cfg *config.Config, name string, value float64) error {
	if set, ok := setters[name]; ok {
		set(cfg, value)
		return nil
	}
	for prefix, w := range map[string]*[3]float64{"q_": &cfg.MPC.Q, "r_": &cfg.MPC.R} {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		switch strings.TrimPrefix(name, prefix) {
		case "roll":
			w[0] = value
		case "pitch":
			w[1] = value
		case "yaw":
			w[2] = value
		default:
			return fmt.Errorf("unknown axis in %s", name)
		}
		return nil
	}
	return fmt.Errorf("unknown tunable parameter: %s", name)
}

// ParseRange reads a comma list ("1,5,10") or an inclusive linear span
// ("lo:hi:n").
func ParseRange(s string) ([]float64, error) {
	if parts := strings.Split(s, ":"); len(parts) == 3 {
		lo, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("bad range start %q: %w", parts[0], err)
		}
		hi, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("bad range end %q: %w", parts[1], err)
		}
		n, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil || n < 2 {
			return nil, fmt.Errorf("bad range count %q: need an integer >= 2", parts[2])
		}
		return floats.Span(make([]float64, n), lo, hi), nil
	}

	var vals []float64
	for _, field := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("bad value %q: %w", field, err)
		}
		vals = append(vals, v)
	}
	return vals, nil
}
