package outerloop

import (
	"math"

	"flightstab/internal/bus"
	"flightstab/internal/pid"
)

const gravity = 9.81

// xyHold is the horizontal position hold sub-cascade: position error to
// velocity, velocity error to acceleration, acceleration to lean angles.
type xyHold struct {
	pos [2]pid.Controller // North, East
	vel [2]pid.Controller
}

func (x *xyHold) configure(s bus.HoldSettings) {
	for i := range x.pos {
		x.pos[i].Configure(s.PositionPID[i])
		x.vel[i].Configure(s.VelocityPID[i])
	}
}

// disable clears all four controllers so the next activation starts clean.
func (x *xyHold) disable() {
	for i := range x.pos {
		x.pos[i].Zero()
		x.vel[i].Zero()
	}
}

// step returns the roll and pitch angles in degrees that track the hold
// setpoint. ok is false when the position source is invalid; the caller keeps
// its previous lean setpoint.
func (x *xyHold) step(in Input, maxAngle [bus.NumAttitudeAxes]float64, dt float64) (roll, pitch float64, ok bool) {
	// Non-finite state is treated as invalid so it never reaches the PID
	// accumulators.
	if !in.Position.Valid || !finite(in.Position.NED[:]...) || !finite(in.Velocity.NED[:]...) {
		return 0, 0, false
	}
	sp := in.HoldSetpoint

	velN := sp.Velocity[bus.North]
	velE := sp.Velocity[bus.East]
	if sp.Mode[bus.North] == bus.HoldPosition && sp.Mode[bus.East] == bus.HoldPosition {
		velN = x.pos[0].Apply(sp.Position[bus.North]-in.Position.NED[bus.North], dt)
		velE = x.pos[1].Apply(sp.Position[bus.East]-in.Position.NED[bus.East], dt)
	}

	maxAccel := in.Hold.MaxAccel
	accN := clamp(x.vel[0].Apply(velN-in.Velocity.NED[bus.North], dt), -maxAccel, maxAccel)
	accE := clamp(x.vel[1].Apply(velE-in.Velocity.NED[bus.East], dt), -maxAccel, maxAccel)

	roll, pitch = leanAngles(accN, accE, in.Attitude.Yaw)
	roll = clamp(roll, -maxAngle[bus.Roll], maxAngle[bus.Roll])
	pitch = clamp(pitch, -maxAngle[bus.Pitch], maxAngle[bus.Pitch])
	return roll, pitch, true
}

// leanAngles converts a desired horizontal acceleration in NED into roll and
// pitch in degrees for a vehicle heading yawDeg, assuming thrust carries one g.
func leanAngles(accN, accE, yawDeg float64) (roll, pitch float64) {
	yaw := yawDeg * math.Pi / 180
	cy, sy := math.Cos(yaw), math.Sin(yaw)

	forward := accN*cy + accE*sy
	right := -accN*sy + accE*cy

	pitchRad := -math.Atan(forward / gravity)
	rollRad := math.Atan(right * math.Cos(pitchRad) / gravity)
	return rollRad * 180 / math.Pi, pitchRad * 180 / math.Pi
}
