package mpc

import (
	"sort"
	"sync"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
)

// SetpointSource supplies the desired attitude. The controller polls it
// once per cycle.
type SetpointSource interface {
	Setpoint(t float64, current dynamo.State) dynamo.State
}

// Hold returns the last value given to Set.
type Hold struct {
	mu    sync.Mutex
	value dynamo.State
}

func NewHold(initial dynamo.State) *Hold {
	return &Hold{value: initial.Clone()}
}

func (h *Hold) Set(v dynamo.State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.value = v.Clone()
}

func (h *Hold) Setpoint(t float64, current dynamo.State) dynamo.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value.Clone()
}

// Fixed always returns the same attitude.
type Fixed dynamo.State

func (f Fixed) Setpoint(t float64, current dynamo.State) dynamo.State {
	return dynamo.State(f).Clone()
}

// Step changes the setpoint to Value at time At.
type Step struct {
	At    float64   `yaml:"at"`
	Value []float64 `yaml:"value"`
}

// StepSchedule returns Initial until the first step, then the value of the
// latest step whose time has passed.
type StepSchedule struct {
	Initial dynamo.State
	steps   []Step
}

func NewStepSchedule(initial dynamo.State, steps ...Step) *StepSchedule {
	s := &StepSchedule{Initial: initial.Clone(), steps: append([]Step(nil), steps...)}
	sort.SliceStable(s.steps, func(i, j int) bool { return s.steps[i].At < s.steps[j].At })
	return s
}

func (s *StepSchedule) Setpoint(t float64, current dynamo.State) dynamo.State {
	out := s.Initial
	for _, st := range s.steps {
		if st.At > t {
			break
		}
		out = st.Value
	}
	return dynamo.State(out).Clone()
}
