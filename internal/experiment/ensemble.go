package experiment

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/config"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
)

// Ensemble repeats one configuration against plants whose parameters are
// scattered around nominal. Member i draws from seed cfg.Seed+i, so a run is
// reproducible.
type Ensemble struct {
	reg     *Registry
	base    *config.Config
	numRuns int
	spread  float64
	opts    []Option
}

// Member is one ensemble run.
type Member struct {
	Seed        int64
	PlantParams map[string]float64
	Result      *dynamo.Result
	Err         error
}

// Summary is the mean and standard deviation of one metric across members.
type Summary struct {
	Name string
	Mean float64
	Std  float64
}

// NewEnsemble perturbs each plant parameter by a uniform factor in
// [1-spread, 1+spread].
func NewEnsemble(reg *Registry, cfg *config.Config, numRuns int, spread float64, opts ...Option) (*Ensemble, error) {
	if numRuns <= 0 {
		return nil, fmt.Errorf("ensemble needs at least one run, got %d", numRuns)
	}
	if spread < 0 || spread >= 1 {
		return nil, fmt.Errorf("spread must be in [0, 1), got %g", spread)
	}
	return &Ensemble{reg: reg, base: cfg, numRuns: numRuns, spread: spread, opts: opts}, nil
}

func (e *Ensemble) perturb(seed int64) (map[string]float64, error) {
	nominal, err := e.reg.GetModel(e.base.Model)
	if err != nil {
		return nil, err
	}
	params := make(map[string]float64)
	if c, ok := nominal.(dynamo.Configurable); ok {
		for k, v := range c.GetParams() {
			params[k] = v
		}
	}
	for k, v := range e.base.PlantParams {
		params[k] = v
	}

	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)

	rng := rand.New(rand.NewSource(seed))
	for _, k := range names {
		params[k] *= 1 + e.spread*(2*rng.Float64()-1)
	}
	return params, nil
}

// Run executes every member concurrently. Member failures are recorded in
// the member; Run itself fails only on context cancellation.
func (e *Ensemble) Run(ctx context.Context) ([]Member, error) {
	members := make([]Member, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			m := &members[idx]
			m.Seed = e.base.Seed + int64(idx)
			m.PlantParams, m.Err = e.perturb(m.Seed)
			if m.Err != nil {
				return
			}

			cfgCopy := *e.base
			cfgCopy.Seed = m.Seed
			cfgCopy.PlantParams = m.PlantParams

			exp, err := Build(e.reg, &cfgCopy, e.opts...)
			if err != nil {
				m.Err = err
				return
			}
			m.Result, m.Err = exp.Run(ctx)
		}(i)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return members, err
	}
	return members, nil
}

// Summarize aggregates the metrics of the successful members.
func Summarize(members []Member) []Summary {
	values := make(map[string][]float64)
	for _, m := range members {
		if m.Err != nil || m.Result == nil {
			continue
		}
		for name, v := range m.Result.Metrics {
			values[name] = append(values[name], v)
		}
	}

	out := make([]Summary, 0, len(values))
	for _, name := range sortedKeys(values) {
		mean, std := stat.MeanStdDev(values[name], nil)
		if len(values[name]) < 2 {
			std = 0
		}
		out = append(out, Summary{Name: name, Mean: mean, Std: std})
	}
	return out
}
