package bus

import "fmt"

// Axis indexes per-axis arrays. Roll, Pitch and Yaw are attitude axes; Thrust
// is the collective axis.
type Axis int

const (
	Roll Axis = iota
	Pitch
	Yaw
	Thrust

	NumAxes = 4
	// NumAttitudeAxes excludes Thrust.
	NumAttitudeAxes = 3
)

func (a Axis) String() string {
	switch a {
	case Roll:
		return "roll"
	case Pitch:
		return "pitch"
	case Yaw:
		return "yaw"
	case Thrust:
		return "thrust"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// Dir indexes North/East/Down arrays.
type Dir int

const (
	North Dir = iota
	East
	Down

	NumDirs = 3
)

// Law is the control law applied to one axis.
type Law uint8

const (
	LawDirect Law = iota
	LawAttitude
	LawRate
	LawRattitude
	LawWeakLeveling
	LawDirectWithLimits
	LawAltitudeHold
	LawAltitudeVario
)

var lawNames = [...]string{
	LawDirect:           "direct",
	LawAttitude:         "attitude",
	LawRate:             "rate",
	LawRattitude:        "rattitude",
	LawWeakLeveling:     "weak_leveling",
	LawDirectWithLimits: "direct_with_limits",
	LawAltitudeHold:     "altitude_hold",
	LawAltitudeVario:    "altitude_vario",
}

func (l Law) String() string {
	if int(l) < len(lawNames) {
		return lawNames[l]
	}
	return fmt.Sprintf("law(%d)", uint8(l))
}

func (l Law) MarshalText() ([]byte, error) {
	if int(l) >= len(lawNames) {
		return nil, fmt.Errorf("unknown law %d", uint8(l))
	}
	return []byte(lawNames[l]), nil
}

func (l *Law) UnmarshalText(b []byte) error {
	s := string(b)
	for i, name := range lawNames {
		if name == s {
			*l = Law(i)
			return nil
		}
	}
	return fmt.Errorf("unknown control law %q", s)
}

// IsThrust reports whether the law is only meaningful on the Thrust axis.
func (l Law) IsThrust() bool {
	return l == LawAltitudeHold || l == LawAltitudeVario
}

// HoldMode tags one axis of a HoldSetpoint.
type HoldMode uint8

const (
	HoldDisabled HoldMode = iota
	HoldPosition
	HoldVelocity
)

func (m HoldMode) String() string {
	switch m {
	case HoldDisabled:
		return "disabled"
	case HoldPosition:
		return "position"
	case HoldVelocity:
		return "velocity"
	default:
		return fmt.Sprintf("holdmode(%d)", uint8(m))
	}
}

// FlightMode is the numeric flight mode reported by FlightStatus.
type FlightMode uint8

const (
	FlightModeManual FlightMode = iota
	FlightModeStabilized1
	FlightModeStabilized2
	FlightModeStabilized3
	FlightModeStabilized4
	FlightModeStabilized5
	FlightModeStabilized6
	FlightModeAutotune
	FlightModePositionHold
	FlightModeLand
)

// NumStabilizedModes is the number of FlightModeProfile slots.
const NumStabilizedModes = 6

// StabilizedSlot maps Stabilized1..6 to a profile index.
func (m FlightMode) StabilizedSlot() (int, bool) {
	if m >= FlightModeStabilized1 && m <= FlightModeStabilized6 {
		return int(m - FlightModeStabilized1), true
	}
	return 0, false
}

var flightModeNames = [...]string{
	FlightModeManual:       "manual",
	FlightModeStabilized1:  "stabilized1",
	FlightModeStabilized2:  "stabilized2",
	FlightModeStabilized3:  "stabilized3",
	FlightModeStabilized4:  "stabilized4",
	FlightModeStabilized5:  "stabilized5",
	FlightModeStabilized6:  "stabilized6",
	FlightModeAutotune:     "autotune",
	FlightModePositionHold: "position_hold",
	FlightModeLand:         "land",
}

func (m FlightMode) String() string {
	if int(m) < len(flightModeNames) {
		return flightModeNames[m]
	}
	return fmt.Sprintf("flightmode(%d)", uint8(m))
}

func (m FlightMode) MarshalText() ([]byte, error) {
	if int(m) >= len(flightModeNames) {
		return nil, fmt.Errorf("unknown flight mode %d", uint8(m))
	}
	return []byte(flightModeNames[m]), nil
}

func (m *FlightMode) UnmarshalText(b []byte) error {
	s := string(b)
	for i, name := range flightModeNames {
		if name == s {
			*m = FlightMode(i)
			return nil
		}
	}
	return fmt.Errorf("unknown flight mode %q", s)
}

// ManualCommand is the raw stick input: Roll, Pitch, Yaw in [-1,1], Thrust in [0,1].
// Throttle is the unscaled throttle channel in [-1,1]; it goes negative
// below idle and on receiver failsafe.
type ManualCommand struct {
	Roll     float64
	Pitch    float64
	Yaw      float64
	Thrust   float64
	Throttle float64
}

// Axis returns the stick value for a.
func (c ManualCommand) Axis(a Axis) float64 {
	switch a {
	case Roll:
		return c.Roll
	case Pitch:
		return c.Pitch
	case Yaw:
		return c.Yaw
	case Thrust:
		return c.Thrust
	}
	return 0
}

type FlightStatus struct {
	Armed      bool
	FlightMode FlightMode
}

// StabilizationSetpoint carries attitude (degrees) or rate (deg/s) targets and
// thrust, with the control law each target is meant for. Value and Law share
// the same Axis indexing.
type StabilizationSetpoint struct {
	Value [NumAxes]float64
	Law   [NumAxes]Law
}

// RateSetpoint is the outer loop output consumed by the inner rate loop.
type RateSetpoint struct {
	Value [NumAxes]float64
}

// AttitudeState is the fused vehicle attitude. Angles are degrees, Q is the
// attitude quaternion (scalar first), Rate is body rate in deg/s.
type AttitudeState struct {
	Roll  float64
	Pitch float64
	Yaw   float64
	Q     [4]float64
	Rate  [NumAttitudeAxes]float64
}

// Euler returns Roll, Pitch, Yaw as an Axis-indexed array.
func (s AttitudeState) Euler() [NumAttitudeAxes]float64 {
	return [NumAttitudeAxes]float64{s.Roll, s.Pitch, s.Yaw}
}

// PositionState is the external positioning source in metres, NED.
type PositionState struct {
	NED   [NumDirs]float64
	Valid bool
}

// VelocityState is the external positioning source velocity in m/s, NED.
type VelocityState struct {
	NED   [NumDirs]float64
	Valid bool
}

// HoldSetpoint is the position/velocity target of a hold flight mode. Each
// direction is tagged independently.
type HoldSetpoint struct {
	Mode     [NumDirs]HoldMode
	Position [NumDirs]float64
	Velocity [NumDirs]float64
}

// AltitudeState is the diagnostic state of the vertical cascade.
type AltitudeState uint8

const (
	AltitudeDirect AltitudeState = iota
	AltitudeHold
	AltitudeVario
)

func (s AltitudeState) String() string {
	switch s {
	case AltitudeDirect:
		return "direct"
	case AltitudeHold:
		return "altitude_hold"
	case AltitudeVario:
		return "altitude_vario"
	default:
		return fmt.Sprintf("altitudestate(%d)", uint8(s))
	}
}

type AltitudeHoldStatus struct {
	VelocityDesired float64
	State           AltitudeState
}
