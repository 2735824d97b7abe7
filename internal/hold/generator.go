// Package hold turns shaped stick input into position/velocity targets for
// the hold flight mode.
package hold

import (
	"math"

	"flightstab/internal/bus"
)

// Generator owns the hold setpoint and the stick-release debounce. The
// setpoint is carried between calls; axes it does not touch in a cycle keep
// their previous target.
//
// Not safe for concurrent use.
type Generator struct {
	sp bus.HoldSetpoint
	// adjusting is set while the pilot is steering and during the settle
	// period after the sticks return to center.
	adjusting bool
	settle    int
}

func NewGenerator() *Generator {
	return &Generator{adjusting: true}
}

// Reset clears the setpoint and rearms the debounce, as on entering the hold
// flight mode.
func (g *Generator) Reset() {
	*g = Generator{adjusting: true}
}

// Setpoint returns the current hold setpoint.
func (g *Generator) Setpoint() bus.HoldSetpoint { return g.sp }

// Adjusting reports whether the stick-release latch is still set.
func (g *Generator) Adjusting() bool { return g.adjusting }

// Step advances the generator by one manual-control cycle.
func (g *Generator) Step(cmd bus.ManualCommand, s bus.HoldSettings, pos bus.PositionState) bus.HoldSetpoint {
	if cmd.Thrust >= s.ThrustArm {
		g.sp.Mode[bus.Down] = bus.HoldPosition
		g.sp.Position[bus.Down] = -s.AltitudeTarget
		g.sp.Velocity[bus.Down] = 0
	} else {
		g.sp.Mode[bus.Down] = bus.HoldDisabled
	}

	if math.Abs(cmd.Roll) > s.StickDeadband || math.Abs(cmd.Pitch) > s.StickDeadband {
		// Pitch drives North and roll drives East in the positioning frame.
		g.setVelocity(cmd.Pitch*s.MaxVelocity[bus.East], cmd.Roll*s.MaxVelocity[bus.North])
		g.adjusting = true
		g.settle = 0
		return g.sp
	}

	if !g.adjusting {
		return g.sp
	}

	g.settle++
	if g.settle > s.SettleCycles {
		g.adjusting = false
		g.settle = 0
		g.pin(s.PinTarget, pos)
		return g.sp
	}
	// Brake until the settle period expires.
	g.setVelocity(0, 0)
	return g.sp
}

func (g *Generator) setVelocity(north, east float64) {
	g.sp.Mode[bus.North] = bus.HoldVelocity
	g.sp.Mode[bus.East] = bus.HoldVelocity
	g.sp.Velocity[bus.North] = north
	g.sp.Velocity[bus.East] = east
}

func (g *Generator) pin(target bus.HoldTarget, pos bus.PositionState) {
	g.sp.Mode[bus.North] = bus.HoldPosition
	g.sp.Mode[bus.East] = bus.HoldPosition
	g.sp.Velocity[bus.North] = 0
	g.sp.Velocity[bus.East] = 0
	if target == bus.HoldTargetCurrent && pos.Valid {
		g.sp.Position[bus.North] = pos.NED[bus.North]
		g.sp.Position[bus.East] = pos.NED[bus.East]
		return
	}
	g.sp.Position[bus.North] = 0
	g.sp.Position[bus.East] = 0
}
