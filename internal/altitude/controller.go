// Package altitude implements the vertical hold cascade: down position to
// down velocity to thrust.
package altitude

import (
	"math"

	"flightstab/internal/bus"
	"flightstab/internal/pid"
)

// Input is the vertical state and target the cascade reads each update.
type Input struct {
	Hold     bus.HoldSetpoint
	Position bus.PositionState
	Velocity bus.VelocityState
}

// Controller is the altitude cascade. It is inactive until the first Hold call
// and deactivated explicitly with Disable.
//
// Not safe for concurrent use.
type Controller struct {
	settings bus.AltitudeSettings
	velPID   pid.Controller
	neutral  float64

	active bool
	// fresh marks that the next activation starts from a clean cascade.
	fresh        bool
	thrustDemand float64
	setpoint     float64
	velocitySP   float64
	status       bus.AltitudeHoldStatus
}

func New(s bus.AltitudeSettings, neutralOffset float64) *Controller {
	c := &Controller{fresh: true}
	c.UpdateSettings(s, neutralOffset)
	return c
}

// UpdateSettings applies new tuning. The velocity PID accumulator is kept so
// gains can be changed in flight.
func (c *Controller) UpdateSettings(s bus.AltitudeSettings, neutralOffset float64) {
	c.settings = s
	c.velPID.Configure(s.VelocityPID)
	c.neutral = neutralOffset + s.ThrustNeutral
}

// Neutral returns the hover thrust estimate plus trim.
func (c *Controller) Neutral() float64 { return c.neutral }

func (c *Controller) Active() bool { return c.active }

// Fresh reports whether the cascade will start without carried state on its
// next activation.
func (c *Controller) Fresh() bool { return c.fresh }

// VelocitySetpoint is the last commanded down velocity.
func (c *Controller) VelocitySetpoint() float64 { return c.velocitySP }

func (c *Controller) Status() bus.AltitudeHoldStatus { return c.status }

// Hold returns the thrust demand for the current thrust setpoint. On reinit or
// first use the cascade is activated and one update runs before returning so
// the demand is never a stale default.
func (c *Controller) Hold(setpoint float64, reinit bool, in Input, dt float64) float64 {
	c.setpoint = setpoint
	if reinit || !c.active {
		c.active = true
		c.fresh = false
		c.velPID.Zero()
		c.Update(in, dt)
	}

	if c.settings.CutThrustWhenZero && setpoint <= 0 {
		c.velocitySP = 0
		c.thrustDemand = 0
		c.status = bus.AltitudeHoldStatus{State: bus.AltitudeDirect}
		c.fresh = true
		c.active = false
		return 0
	}

	if c.status.State == bus.AltitudeDirect {
		// Vertical hold disengaged: the pilot's thrust goes straight through.
		c.thrustDemand = setpoint
		return setpoint
	}
	c.thrustDemand = clamp(c.thrustDemand, c.settings.ThrustMin, c.settings.ThrustMax)
	return c.thrustDemand
}

// Update recomputes the thrust demand from the vertical state. It is the
// velocity-update task body and does nothing while inactive.
func (c *Controller) Update(in Input, dt float64) {
	if !c.active {
		return
	}
	// Keep the last demand rather than feed non-finite state to the PID.
	if !finite(in.Velocity.NED[bus.Down]) ||
		(in.Hold.Mode[bus.Down] == bus.HoldPosition && !finite(in.Position.NED[bus.Down])) {
		return
	}

	switch in.Hold.Mode[bus.Down] {
	case bus.HoldPosition:
		c.velocitySP = c.settings.PositionP * (in.Hold.Position[bus.Down] - in.Position.NED[bus.Down])
		c.status.State = bus.AltitudeHold
	case bus.HoldVelocity:
		c.velocitySP = in.Hold.Velocity[bus.Down]
		c.status.State = bus.AltitudeVario
	default:
		c.velocitySP = 0
		c.thrustDemand = c.setpoint
		c.status = bus.AltitudeHoldStatus{State: bus.AltitudeDirect}
		c.velPID.Zero()
		return
	}

	if c.settings.MaxSpeedUp > 0 && c.velocitySP < -c.settings.MaxSpeedUp {
		c.velocitySP = -c.settings.MaxSpeedUp
	}
	if c.settings.MaxSpeedDown > 0 && c.velocitySP > c.settings.MaxSpeedDown {
		c.velocitySP = c.settings.MaxSpeedDown
	}

	// Down is positive, so a positive velocity error asks for less thrust.
	u := c.velPID.Apply(c.velocitySP-in.Velocity.NED[bus.Down], dt)
	c.thrustDemand = clamp(c.neutral-u, c.settings.ThrustMin, c.settings.ThrustMax)
	c.status.VelocityDesired = c.velocitySP
}

// Disable stops the cascade. Repeated calls are harmless.
func (c *Controller) Disable() {
	if !c.active {
		return
	}
	c.active = false
	c.fresh = true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
