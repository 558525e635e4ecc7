// Package analysis characterises closed-loop runs.
//
//   - [StepResponse]: rise time, overshoot, settling time and steady-state
//     error of one axis against a constant target
//   - [Spectrum]: one-sided power spectrum of a sampled signal
//   - [Analyze]: both of the above for every axis of a run
//
// A command whose dominant frequency sits near the Nyquist rate is
// chattering between bounds:
//
//	rep := analysis.Analyze(result, desired, dt)
//	if rep.Axes[0].CommandPeak > 0.8*analysis.Nyquist(dt) {
//	    // roll command is chattering
//	}
package analysis
