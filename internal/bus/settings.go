package bus

import "flightstab/internal/pid"

// Bank holds the per-profile stick shaping, limits and attitude gains.
// Attitude-axis arrays are indexed by Axis (Roll, Pitch, Yaw).
type Bank struct {
	StickExpo  [NumAttitudeAxes]float64 // -100..100
	MaxAngle   [NumAttitudeAxes]float64 // degrees
	ManualRate [NumAttitudeAxes]float64 // deg/s
	// FpvTiltDeg rotates roll/yaw sticks for a tilted camera. Zero disables.
	FpvTiltDeg  float64
	AttitudePID [NumAttitudeAxes]pid.Gains
}

// FlightModeProfile is one numbered stabilized flight-mode slot.
type FlightModeProfile struct {
	Law  [NumAxes]Law
	Bank Bank
}

type FlightModeSettings struct {
	Profiles [NumStabilizedModes]FlightModeProfile
	// HoldMode is the flight mode that runs the position/altitude hold cascades.
	HoldMode FlightMode
}

// Profile returns the profile for a stabilized flight mode.
func (s FlightModeSettings) Profile(m FlightMode) (FlightModeProfile, bool) {
	slot, ok := m.StabilizedSlot()
	if !ok {
		return FlightModeProfile{}, false
	}
	return s.Profiles[slot], true
}

type StabilizationSettings struct {
	WeakLevelingKp      float64
	MaxWeakLevelingRate float64
	// RattitudeTransition is the stick position (0,1] where rattitude hands
	// over from attitude to rate.
	RattitudeTransition     float64
	LowThrottleZeroIntegral bool
	// FullStickMapping feeds stick*ManualRate / stick*Max to every axis law
	// instead of only Attitude axes and a Rate yaw.
	FullStickMapping bool
}

// HoldTarget selects where horizontal position hold pins on engage.
type HoldTarget uint8

const (
	HoldTargetOrigin HoldTarget = iota
	HoldTargetCurrent
)

type HoldSettings struct {
	// MaxVelocity is the stick-full-scale velocity per direction in m/s.
	MaxVelocity    [NumDirs]float64
	AltitudeTarget float64 // metres above origin
	ThrustArm      float64 // thrust stick position that engages the vertical hold
	StickDeadband  float64
	SettleCycles   int
	PinTarget      HoldTarget

	PositionPID [2]pid.Gains // North, East
	VelocityPID [2]pid.Gains // North, East
	MaxAccel    float64      // m/s^2 per horizontal axis

	// Safety envelope: thrust is cut when |North| or |East| exceeds
	// MaxHorizontal, or Down <= -MaxHeight.
	MaxHorizontal float64
	MaxHeight     float64
}

type AltitudeSettings struct {
	VelocityPID       pid.Gains
	PositionP         float64
	ThrustMin         float64
	ThrustMax         float64
	ThrustNeutral     float64
	CutThrustWhenZero bool
	MaxSpeedUp        float64
	MaxSpeedDown      float64
}
