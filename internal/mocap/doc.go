// Package mocap ingests an external position feed (motion capture, RTK
// bridge, or a companion computer) over a serial line and publishes it as
// PositionState, VelocityState and optionally AttitudeState.
package mocap
