// Package viz provides a terminal view of a running attitude controller.
//
// The live view is a Bubble Tea program that steps the closed loop on every
// tick and charts attitude against the setpoint plus the applied command.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	R     - Reset to initial state
//	Tab   - Cycle plant parameters
//	Up/K  - Increase selected parameter (+5%)
//	Down/J- Decrease selected parameter (-5%)
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
