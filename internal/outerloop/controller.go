// Package outerloop converts attitude error into body-rate setpoints. In the
// hold flight mode it also runs the horizontal position hold and the altitude
// cascade.
package outerloop

import (
	"math"

	"flightstab/internal/altitude"
	"flightstab/internal/bus"
	"flightstab/internal/features"
	"flightstab/internal/pid"
)

// rattitudeCrossover is where attitude-rate and stick-rate nominally meet,
// the positive root of x^2+x-1=0.
const rattitudeCrossover = 0.618033989

// lawUnset forces a reinit on the next cycle.
const lawUnset bus.Law = 0xff

// Input is the snapshot the outer loop reads at task entry.
type Input struct {
	Setpoint bus.StabilizationSetpoint
	Attitude bus.AttitudeState
	Status   bus.FlightStatus
	// Throttle is the raw throttle channel, see bus.ManualCommand.
	Throttle float64
	// Bank is the bank of the active flight mode profile.
	Bank     bus.Bank
	Stab     bus.StabilizationSettings
	HoldMode bus.FlightMode

	HoldSetpoint bus.HoldSetpoint
	Hold         bus.HoldSettings
	Position     bus.PositionState
	Velocity     bus.VelocityState
}

type Output struct {
	Rate bus.RateSetpoint
	// Setpoint is the input setpoint with roll/pitch replaced by the position
	// hold when SetpointChanged is set.
	Setpoint        bus.StabilizationSetpoint
	SetpointChanged bool
	HoldActive      bool
	// ThrustCut is set when the safety envelope zeroed thrust this cycle.
	ThrustCut bool
}

// Controller is the outer loop context: law memory, attitude PIDs, limit
// latches and the hold cascades. It is owned by the flight loop goroutine.
//
// Not safe for concurrent use.
type Controller struct {
	strategy ErrorStrategy
	alt      *altitude.Controller

	prevLaw [bus.NumAxes]bus.Law
	pids    [bus.NumAttitudeAxes]pid.Controller

	rollMin, rollMax   bool
	pitchMin, pitchMax bool

	xy xyHold
}

func New(strategy ErrorStrategy, alt *altitude.Controller) *Controller {
	if strategy == nil {
		strategy = EulerError{}
	}
	c := &Controller{strategy: strategy, alt: alt}
	c.resetLaws()
	return c
}

func (c *Controller) resetLaws() {
	for i := range c.prevLaw {
		c.prevLaw[i] = lawUnset
	}
}

// Integral returns the accumulated integral of an attitude axis PID.
func (c *Controller) Integral(a bus.Axis) float64 {
	if a < bus.Roll || a > bus.Yaw {
		return 0
	}
	return c.pids[a].Integral()
}

// Step runs one outer loop cycle with the averaged loop period dt in seconds.
func (c *Controller) Step(in Input, dt float64) Output {
	var out Output
	sp := in.Setpoint
	bank := in.Bank

	for a := bus.Roll; a <= bus.Yaw; a++ {
		c.pids[a].Configure(bank.AttitudePID[a])
	}
	c.xy.configure(in.Hold)

	thrustLaw := sp.Law[bus.Thrust]
	reinit := thrustLaw != c.prevLaw[bus.Thrust]
	c.prevLaw[bus.Thrust] = thrustLaw

	if features.Advanced && in.Status.FlightMode == in.HoldMode {
		out.HoldActive = true
		altIn := altitude.Input{Hold: in.HoldSetpoint, Position: in.Position, Velocity: in.Velocity}
		out.Rate.Value[bus.Thrust] = c.alt.Hold(sp.Value[bus.Thrust], reinit, altIn, dt)

		if roll, pitch, ok := c.xy.step(in, bank.MaxAngle, dt); ok {
			sp.Value[bus.Roll] = roll
			sp.Value[bus.Pitch] = pitch
			out.SetpointChanged = true
		}

		if outsideEnvelope(in.Position, in.Hold) {
			out.Rate.Value[bus.Thrust] = 0
			out.ThrustCut = true
		}
	} else {
		c.alt.Disable()
		c.xy.disable()
		out.Rate.Value[bus.Thrust] = sp.Value[bus.Thrust]
	}

	var desired [bus.NumAttitudeAxes]float64
	euler := in.Attitude.Euler()
	for a := bus.Roll; a <= bus.Yaw; a++ {
		switch sp.Law[a] {
		case bus.LawAttitude, bus.LawRattitude, bus.LawWeakLeveling:
			desired[a] = sp.Value[a]
		default:
			desired[a] = euler[a]
		}
	}
	localErr := c.strategy.Error(desired, in.Attitude)

	for a := bus.Roll; a <= bus.Yaw; a++ {
		law := sp.Law[a]
		if law != c.prevLaw[a] {
			c.pids[a].Zero()
		}
		c.prevLaw[a] = law

		switch law {
		case bus.LawAttitude:
			out.Rate.Value[a] = c.pids[a].Apply(localErr[a], dt)

		case bus.LawRattitude:
			out.Rate.Value[a] = c.rattitude(a, sp, bank, in.Stab, localErr[a], dt)

		case bus.LawWeakLeveling:
			stick := stickInputs(sp, bank)
			rateInput := stick[a] * bank.ManualRate[a]
			leveling := clamp(localErr[a]*in.Stab.WeakLevelingKp, -in.Stab.MaxWeakLevelingRate, in.Stab.MaxWeakLevelingRate)
			out.Rate.Value[a] = rateInput + leveling

		case bus.LawDirectWithLimits:
			out.Rate.Value[a] = c.directWithLimits(a, sp.Value[a], bank, euler, dt)

		default:
			out.Rate.Value[a] = sp.Value[a]
		}
	}

	if !in.Status.Armed || (in.Stab.LowThrottleZeroIntegral && in.Throttle < 0) {
		c.resetLaws()
		for a := range c.pids {
			c.pids[a].Zero()
		}
	}

	out.Setpoint = sp
	return out
}

func (c *Controller) rattitude(a bus.Axis, sp bus.StabilizationSetpoint, bank bus.Bank, stab bus.StabilizationSettings, err, dt float64) float64 {
	stick := stickInputs(sp, bank)
	manual := bank.ManualRate[a]
	stickRate := stick[a] * manual
	// Bound the correction so it cannot outweigh the manual rate.
	attRate := clamp(c.pids[a].Apply(err, dt), -manual, manual)

	// max() instead of a vector norm makes the stick region square: holding
	// roll while adding pitch keeps the same sensitivity.
	mag := math.Abs(stick[a])
	if a != bus.Yaw {
		mag = math.Max(math.Abs(stick[bus.Roll]), math.Abs(stick[bus.Pitch]))
	}

	tr := stab.RattitudeTransition
	if tr <= 0 || tr > 1 {
		tr = 1
	}
	if mag <= tr {
		mag *= rattitudeCrossover / tr
	} else {
		mag = (mag-tr)*(1-rattitudeCrossover)/(1-tr) + rattitudeCrossover
	}
	return (1-mag)*attRate + mag*stickRate
}

// directWithLimits passes the rate target through until the attitude leaves
// the configured envelope. The latch then holds the axis at the limit while
// the pilot keeps pushing outward and releases once the stick comes back.
func (c *Controller) directWithLimits(a bus.Axis, target float64, bank bus.Bank, att [bus.NumAttitudeAxes]float64, dt float64) float64 {
	var lo, hi *bool
	switch a {
	case bus.Roll:
		lo, hi = &c.rollMin, &c.rollMax
	case bus.Pitch:
		lo, hi = &c.pitchMin, &c.pitchMax
	default:
		return target
	}
	limit := bank.MaxAngle[a]
	angle := att[a]

	if angle < -limit || *lo {
		*lo = true
		if target < 0 {
			return c.pids[a].Apply(-limit-angle, dt)
		}
		*lo = false
		return target
	}
	if angle > limit || *hi {
		*hi = true
		if target > 0 {
			return c.pids[a].Apply(limit-angle, dt)
		}
		*hi = false
		return target
	}
	return target
}

// stickInputs recovers the normalized stick from angle-scaled targets.
func stickInputs(sp bus.StabilizationSetpoint, bank bus.Bank) [bus.NumAttitudeAxes]float64 {
	var s [bus.NumAttitudeAxes]float64
	for a := bus.Roll; a <= bus.Yaw; a++ {
		if bank.MaxAngle[a] == 0 {
			continue
		}
		s[a] = clamp(sp.Value[a]/bank.MaxAngle[a], -1, 1)
	}
	return s
}

// outsideEnvelope reports whether the vehicle has drifted past the safety
// limits of the hold mode. A non-finite position counts as outside.
func outsideEnvelope(pos bus.PositionState, s bus.HoldSettings) bool {
	if !finite(pos.NED[:]...) {
		return true
	}
	return math.Abs(pos.NED[bus.North]) > s.MaxHorizontal ||
		math.Abs(pos.NED[bus.East]) > s.MaxHorizontal ||
		pos.NED[bus.Down] <= -s.MaxHeight
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
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
