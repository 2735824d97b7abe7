package mocap

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"flightstab/internal/bus"
)

// Sample is one decoded line of the position feed.
//
// Line format (comma separated, NED metres and m/s, angles in degrees):
//
//	<north>,<east>,<down>,<vnorth>,<veast>,<vdown>,<valid>[,<roll>,<pitch>,<yaw>]
type Sample struct {
	Position    [bus.NumDirs]float64
	Velocity    [bus.NumDirs]float64
	Valid       bool
	HasAttitude bool
	Attitude    [bus.NumAttitudeAxes]float64
}

// ParseLine decodes one feed line. ok is false for blank lines and
// '#' comments.
func ParseLine(line string) (s Sample, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Sample{}, false, nil
	}
	parts := strings.Split(line, ",")
	if len(parts) != 7 && len(parts) != 10 {
		return Sample{}, false, fmt.Errorf("mocap: expected 7 or 10 fields, got %d", len(parts))
	}

	var vals [6]float64
	for i := range vals {
		v, err := parseFinite(parts[i])
		if err != nil {
			return Sample{}, false, fmt.Errorf("mocap: field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	valid, err := strconv.ParseBool(strings.TrimSpace(parts[6]))
	if err != nil {
		return Sample{}, false, fmt.Errorf("mocap: valid flag: %w", err)
	}
	copy(s.Position[:], vals[0:3])
	copy(s.Velocity[:], vals[3:6])
	s.Valid = valid

	if len(parts) == 10 {
		for i := 0; i < bus.NumAttitudeAxes; i++ {
			v, err := parseFinite(parts[7+i])
			if err != nil {
				return Sample{}, false, fmt.Errorf("mocap: field %d: %w", 8+i, err)
			}
			s.Attitude[i] = v
		}
		s.HasAttitude = true
	}
	return s, true, nil
}

// PilotSample is a decoded pilot input line relayed by the companion
// computer:
//
//	rc,<armed>,<flight_mode>,<roll>,<pitch>,<yaw>,<thrust>,<throttle>
type PilotSample struct {
	Command bus.ManualCommand
	Status  bus.FlightStatus
}

const pilotPrefix = "rc,"

// IsPilotLine reports whether line carries pilot input rather than state.
func IsPilotLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), pilotPrefix)
}

func ParsePilotLine(line string) (PilotSample, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 8 || parts[0] != "rc" {
		return PilotSample{}, fmt.Errorf("mocap: pilot line expects 8 fields, got %d", len(parts))
	}
	armed, err := strconv.ParseBool(strings.TrimSpace(parts[1]))
	if err != nil {
		return PilotSample{}, fmt.Errorf("mocap: armed flag: %w", err)
	}
	var mode bus.FlightMode
	if err := mode.UnmarshalText([]byte(strings.TrimSpace(parts[2]))); err != nil {
		return PilotSample{}, fmt.Errorf("mocap: %w", err)
	}

	var v [5]float64
	for i := range v {
		f, err := parseFinite(parts[3+i])
		if err != nil {
			return PilotSample{}, fmt.Errorf("mocap: pilot field %d: %w", 4+i, err)
		}
		v[i] = f
	}
	for i, name := range []string{"roll", "pitch", "yaw"} {
		if v[i] < -1 || v[i] > 1 {
			return PilotSample{}, fmt.Errorf("mocap: pilot %s out of range [-1,1]", name)
		}
	}
	if v[3] < 0 || v[3] > 1 {
		return PilotSample{}, fmt.Errorf("mocap: pilot thrust out of range [0,1]")
	}
	if v[4] < -1 || v[4] > 1 {
		return PilotSample{}, fmt.Errorf("mocap: pilot throttle out of range [-1,1]")
	}
	return PilotSample{
		Command: bus.ManualCommand{Roll: v[0], Pitch: v[1], Yaw: v[2], Thrust: v[3], Throttle: v[4]},
		Status:  bus.FlightStatus{Armed: armed, FlightMode: mode},
	}, nil
}

// parseFinite parses a float field, rejecting NaN and infinities. Range
// checks downstream rely on ordered comparisons, which NaN always fails.
func parseFinite(field string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", strings.TrimSpace(field))
	}
	return v, nil
}
