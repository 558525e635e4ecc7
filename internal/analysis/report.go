package analysis

import (
	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
)

type AxisReport struct {
	Response
	CommandPeak float64 // dominant frequency of the command, Hz
}

type Report struct {
	Axes []AxisReport
}

// Analyze characterises every axis of result against a constant desired
// attitude.
func Analyze(result *dynamo.Result, desired dynamo.State, dt float64) Report {
	rep := Report{}
	if len(result.States) == 0 {
		return rep
	}
	for axis := 0; axis < len(result.States[0]) && axis < len(desired); axis++ {
		values := make([]float64, len(result.States))
		for i, s := range result.States {
			values[i] = s[axis]
		}
		ar := AxisReport{Response: StepResponse(result.Times, values, desired[axis], DefaultBand)}

		if len(result.Controls) > 1 {
			cmd := make([]float64, len(result.Controls))
			for i, u := range result.Controls {
				cmd[i] = u[axis]
			}
			ar.CommandPeak = DominantFrequency(cmd, dt)
		}
		rep.Axes = append(rep.Axes, ar)
	}
	return rep
}
