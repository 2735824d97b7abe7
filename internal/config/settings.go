package config

import (
	"flightstab/internal/bus"
	"flightstab/internal/pid"
)

// The methods below convert the YAML layout into the bus settings records.

func (c Config) FlightModeSettings() bus.FlightModeSettings {
	var s bus.FlightModeSettings
	s.HoldMode = c.FlightModes.HoldMode
	for i, p := range c.FlightModes.Profiles {
		if i >= bus.NumStabilizedModes {
			break
		}
		s.Profiles[i] = p.profile()
	}
	return s
}

func (p ProfileConfig) profile() bus.FlightModeProfile {
	return bus.FlightModeProfile{
		Law: [bus.NumAxes]bus.Law{p.Laws.Roll, p.Laws.Pitch, p.Laws.Yaw, p.Laws.Thrust},
		Bank: bus.Bank{
			StickExpo:   p.StickExpo.array(),
			MaxAngle:    p.MaxAngle.array(),
			ManualRate:  p.ManualRate.array(),
			FpvTiltDeg:  p.FpvTiltDeg,
			AttitudePID: [bus.NumAttitudeAxes]pid.Gains{p.AttitudePID.Roll, p.AttitudePID.Pitch, p.AttitudePID.Yaw},
		},
	}
}

func (r RPY) array() [bus.NumAttitudeAxes]float64 {
	return [bus.NumAttitudeAxes]float64{r.Roll, r.Pitch, r.Yaw}
}

func (c Config) StabilizationSettings() bus.StabilizationSettings {
	s := c.Stabilization
	return bus.StabilizationSettings{
		WeakLevelingKp:          s.WeakLevelingKp,
		MaxWeakLevelingRate:     s.MaxWeakLevelingRate,
		RattitudeTransition:     s.RattitudeTransition,
		LowThrottleZeroIntegral: s.LowThrottleZeroIntegral,
		FullStickMapping:        s.FullStickMapping,
	}
}

func (c Config) HoldSettings() bus.HoldSettings {
	h := c.Hold
	target := bus.HoldTargetOrigin
	if h.PinTarget == "current" {
		target = bus.HoldTargetCurrent
	}
	return bus.HoldSettings{
		MaxVelocity:    [bus.NumDirs]float64{h.MaxVelocity.North, h.MaxVelocity.East, h.MaxVelocity.Down},
		AltitudeTarget: h.AltitudeTarget,
		ThrustArm:      h.ThrustArm,
		StickDeadband:  h.StickDeadband,
		SettleCycles:   h.SettleCycles,
		PinTarget:      target,
		PositionPID:    [2]pid.Gains{h.PositionPID.North, h.PositionPID.East},
		VelocityPID:    [2]pid.Gains{h.VelocityPID.North, h.VelocityPID.East},
		MaxAccel:       h.MaxAccel,
		MaxHorizontal:  h.MaxHorizontal,
		MaxHeight:      h.MaxHeight,
	}
}

func (c Config) AltitudeSettings() bus.AltitudeSettings {
	a := c.Altitude
	return bus.AltitudeSettings{
		VelocityPID:       a.VelocityPID,
		PositionP:         a.PositionP,
		ThrustMin:         a.ThrustMin,
		ThrustMax:         a.ThrustMax,
		ThrustNeutral:     a.ThrustNeutral,
		CutThrustWhenZero: a.CutThrustWhenZero,
		MaxSpeedUp:        a.MaxSpeedUp,
		MaxSpeedDown:      a.MaxSpeedDown,
	}
}

// Publish writes every settings record to the bus.
func (c Config) Publish(b *bus.Bus) {
	b.SetFlightModeSettings(c.FlightModeSettings())
	b.SetStabilizationSettings(c.StabilizationSettings())
	b.SetHoldSettings(c.HoldSettings())
	b.SetAltitudeSettings(c.AltitudeSettings())
	b.SetNeutralThrustOffset(c.Altitude.NeutralThrustOffset)
}
