package analysis

import (
	"math"
)

// DefaultBand is the settling band as a fraction of the step size.
const DefaultBand = 0.02

// Response describes how one axis answered a step.
type Response struct {
	Step        float64
	RiseTime    float64 // 10% to 90% of the step; NaN if never reached
	Overshoot   float64 // percent of the step beyond the target
	SettlingAt  float64 // time after which the error stays in band; NaN if never
	SteadyState float64 // |final - target|
}

// StepResponse measures values against target. The step is target minus the
// first sample. band is a fraction of |step|; when the step is tiny the band
// falls back to an absolute 1e-3.
func StepResponse(times, values []float64, target, band float64) Response {
	n := len(values)
	if len(times) < n {
		n = len(times)
	}
	r := Response{RiseTime: math.NaN(), SettlingAt: math.NaN()}
	if n == 0 {
		return r
	}

	start := values[0]
	r.Step = target - start
	r.SteadyState = math.Abs(values[n-1] - target)

	tol := band * math.Abs(r.Step)
	if tol < 1e-3 {
		tol = 1e-3
	}

	if math.Abs(r.Step) > 1e-9 {
		dir := math.Copysign(1, r.Step)
		t10, t90 := math.NaN(), math.NaN()
		peak := 0.0
		for i := 0; i < n; i++ {
			progress := (values[i] - start) / r.Step
			if math.IsNaN(t10) && progress >= 0.1 {
				t10 = times[i]
			}
			if math.IsNaN(t90) && progress >= 0.9 {
				t90 = times[i]
			}
			if over := dir * (values[i] - target); over > peak {
				peak = over
			}
		}
		if !math.IsNaN(t10) && !math.IsNaN(t90) {
			r.RiseTime = t90 - t10
		}
		r.Overshoot = 100 * peak / math.Abs(r.Step)
	}

	last := -1
	for i := 0; i < n; i++ {
		if math.Abs(values[i]-target) > tol {
			last = i
		}
	}
	switch {
	case last == -1:
		r.SettlingAt = times[0]
	case last < n-1:
		r.SettlingAt = times[last+1]
	}
	return r
}

// Settled reports whether the response entered its band and stayed.
func (r Response) Settled() bool { return !math.IsNaN(r.SettlingAt) }
