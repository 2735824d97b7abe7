// Package stick shapes pilot stick input and routes it to the setpoint of
// the active flight mode.
package stick

import (
	"errors"
	"fmt"

	"flightstab/internal/bus"
	"flightstab/internal/features"
	"flightstab/internal/hold"
)

// ErrUnsupportedMode is returned when the active flight mode has no
// stabilized profile.
var ErrUnsupportedMode = errors.New("stick: unsupported flight mode")

// Input is the snapshot the router reads at task entry.
type Input struct {
	Command  bus.ManualCommand
	Status   bus.FlightStatus
	Modes    bus.FlightModeSettings
	Stab     bus.StabilizationSettings
	Hold     bus.HoldSettings
	Position bus.PositionState
}

// Output is what a successful Step wants published. When Publish is false the
// caller must leave the previously published setpoint alone.
type Output struct {
	Publish bool
	// Command is the shaped stick input.
	Command  bus.ManualCommand
	Setpoint bus.StabilizationSetpoint
	// Hold is only meaningful when HoldActive is set.
	HoldActive bool
	Hold       bus.HoldSetpoint
}

// Router is the stick shaping and flight-mode dispatch stage. It keeps the
// tilt cache and hold generator state between calls.
//
// Not safe for concurrent use.
type Router struct {
	tilt   TiltCompensator
	hold   *hold.Generator
	inHold bool
}

func NewRouter() *Router {
	return &Router{hold: hold.NewGenerator()}
}

// Step shapes the stick input and assembles the stabilization setpoint for
// the active flight mode.
func (r *Router) Step(in Input) (Output, error) {
	var out Output

	mode := in.Status.FlightMode
	profile, ok := in.Modes.Profile(mode)
	if !ok {
		r.inHold = false
		if features.Advanced && mode == bus.FlightModeAutotune {
			// Autotune owns the setpoint in this mode.
			return out, nil
		}
		return out, fmt.Errorf("%w: %s", ErrUnsupportedMode, mode)
	}

	bank := profile.Bank
	cmd := in.Command
	cmd.Roll = ApplyExpo(cmd.Roll, bank.StickExpo[bus.Roll])
	cmd.Pitch = ApplyExpo(cmd.Pitch, bank.StickExpo[bus.Pitch])
	cmd.Yaw = ApplyExpo(cmd.Yaw, bank.StickExpo[bus.Yaw])
	if bank.FpvTiltDeg != 0 {
		cmd.Roll, cmd.Yaw = r.tilt.Apply(bank.FpvTiltDeg, cmd.Roll, cmd.Yaw)
	}
	out.Command = cmd

	inHold := features.Advanced && mode == in.Modes.HoldMode
	if inHold {
		if !r.inHold {
			r.hold.Reset()
		}
		out.Hold = r.hold.Step(cmd, in.Hold, in.Position)
		out.HoldActive = true
	}
	r.inHold = inHold

	out.Setpoint = assemble(cmd, profile, in.Stab.FullStickMapping)
	out.Publish = true
	return out, nil
}

// assemble builds the per-axis targets. The law tags are copied from the
// profile unchanged so the outer loop dispatches on the same array.
func assemble(cmd bus.ManualCommand, p bus.FlightModeProfile, full bool) bus.StabilizationSetpoint {
	var sp bus.StabilizationSetpoint
	sp.Law = p.Law
	for a := bus.Roll; a <= bus.Yaw; a++ {
		stick := cmd.Axis(a)
		if full {
			sp.Value[a] = fullTarget(stick, p.Law[a], p.Bank, a)
			continue
		}
		switch {
		case p.Law[a] == bus.LawAttitude:
			sp.Value[a] = stick * p.Bank.MaxAngle[a]
		case a == bus.Yaw && p.Law[a] == bus.LawRate:
			sp.Value[a] = stick * p.Bank.ManualRate[a]
		default:
			sp.Value[a] = 0
		}
	}
	sp.Value[bus.Thrust] = cmd.Thrust
	return sp
}

// fullTarget maps a stick onto the unit the outer loop expects for law:
// angle-scaled for the leveling laws, rate-scaled for the rate laws, and the
// raw stick for Direct.
func fullTarget(stick float64, law bus.Law, b bus.Bank, a bus.Axis) float64 {
	switch law {
	case bus.LawAttitude, bus.LawRattitude, bus.LawWeakLeveling:
		return stick * b.MaxAngle[a]
	case bus.LawRate, bus.LawDirectWithLimits:
		return stick * b.ManualRate[a]
	case bus.LawDirect:
		return stick
	default:
		return 0
	}
}
