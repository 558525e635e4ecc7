// Package control provides baseline attitude controllers to compare against
// the receding-horizon controller:
//
//   - [PID]: independent PID loop per axis, clamped to the actuator bound
//   - [None]: zero control
//
// Both implement [dynamo.Controller]; PID also implements
// [dynamo.Configurable] for live tuning.
package control
