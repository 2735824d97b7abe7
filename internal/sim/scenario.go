package sim

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"flightstab/internal/bus"
)

// ScenarioScript is a deterministic pilot script.
//
// Times are Go durations ("250ms", "10s"). A zero duration runs until the
// last keyframe. Unknown keys are rejected.
//
//	version: 1
//	duration: 30s
//	vehicle:
//	  hover_thrust: 0.5
//	  drag: 0.3
//	keyframes:
//	  - t: 0s
//	    armed: true
//	    flight_mode: stabilized2
//	    thrust: 0.6
//	    throttle: 0.2
//	    position_valid: true
//	  - t: 5s
//	    pitch: -0.4
//
// Stick values (roll, pitch, yaw, thrust, throttle) are interpolated between
// keyframes. Armed, flight mode and position validity step at each keyframe.
// Keyframes must use non-decreasing t values.
type ScenarioScript struct {
	Version   int             `yaml:"version"`
	Duration  time.Duration   `yaml:"duration"`
	Vehicle   VehicleConfig   `yaml:"vehicle"`
	Keyframes []PilotKeyframe `yaml:"keyframes"`
}

// PilotKeyframe is a time-stamped pilot input.
type PilotKeyframe struct {
	T             time.Duration  `yaml:"t"`
	Armed         bool           `yaml:"armed"`
	FlightMode    bus.FlightMode `yaml:"flight_mode"`
	Roll          float64        `yaml:"roll"`
	Pitch         float64        `yaml:"pitch"`
	Yaw           float64        `yaml:"yaw"`
	Thrust        float64        `yaml:"thrust"`
	Throttle      float64        `yaml:"throttle"`
	PositionValid bool           `yaml:"position_valid"`
}

// Scenario is a validated script ready to be sampled with StateAt.
type Scenario struct {
	script   ScenarioScript
	duration time.Duration
}

func LoadScenarioScript(path string) (ScenarioScript, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ScenarioScript{}, fmt.Errorf("scenario: %w", err)
	}
	return ParseScenarioScriptYAML(b)
}

// ParseScenarioScriptYAML decodes a script. Misspelled keys are errors so a
// typo cannot silently zero a stick.
func ParseScenarioScriptYAML(b []byte) (ScenarioScript, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var script ScenarioScript
	if err := dec.Decode(&script); err != nil && !errors.Is(err, io.EOF) {
		return ScenarioScript{}, fmt.Errorf("scenario: %w", err)
	}
	return script, nil
}

func NewScenario(script ScenarioScript) (*Scenario, error) {
	switch script.Version {
	case 0, 1:
		script.Version = 1
	default:
		return nil, fmt.Errorf("scenario: version %d not supported", script.Version)
	}
	kfs := script.Keyframes
	if len(kfs) == 0 {
		return nil, fmt.Errorf("scenario: keyframes is required")
	}
	for i, kf := range kfs {
		switch {
		case kf.T < 0:
			return nil, fmt.Errorf("keyframes[%d].t must be >= 0", i)
		case i > 0 && kf.T < kfs[i-1].T:
			return nil, fmt.Errorf("keyframes[%d].t goes backwards", i)
		}
		if err := checkStick(kf, i); err != nil {
			return nil, err
		}
	}

	sc := &Scenario{script: script, duration: script.Duration}
	if sc.duration <= 0 {
		sc.duration = kfs[len(kfs)-1].T
	}
	if sc.duration <= 0 {
		return nil, fmt.Errorf("scenario: duration is required when all keyframes are at t=0")
	}
	return sc, nil
}

func checkStick(kf PilotKeyframe, i int) error {
	for _, c := range []struct {
		name   string
		v      float64
		lo, hi float64
	}{
		{"roll", kf.Roll, -1, 1},
		{"pitch", kf.Pitch, -1, 1},
		{"yaw", kf.Yaw, -1, 1},
		{"thrust", kf.Thrust, 0, 1},
		{"throttle", kf.Throttle, -1, 1},
	} {
		if c.v < c.lo || c.v > c.hi {
			return fmt.Errorf("keyframes[%d].%s must be within [%g,%g]", i, c.name, c.lo, c.hi)
		}
	}
	return nil
}

func (s *Scenario) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return s.duration
}

// Vehicle returns the airframe the script was written for.
func (s *Scenario) Vehicle() VehicleConfig {
	if s == nil {
		return VehicleConfig{}
	}
	return s.script.Vehicle
}

// PilotState is the pilot input at one instant.
type PilotState struct {
	Command       bus.ManualCommand
	Status        bus.FlightStatus
	PositionValid bool
}

// StateAt samples the script at elapsed. Past the end it holds the final
// keyframe, or wraps to the start when loop is set.
func (s *Scenario) StateAt(elapsed time.Duration, loop bool) PilotState {
	if s == nil {
		return PilotState{}
	}
	elapsed = max(elapsed, 0)
	if loop {
		elapsed %= s.duration
	} else {
		elapsed = min(elapsed, s.duration)
	}

	seg := segmentAt(s.script.Keyframes, elapsed)
	from, to := seg.from, seg.to
	return PilotState{
		Command: bus.ManualCommand{
			Roll:     seg.blend(from.Roll, to.Roll),
			Pitch:    seg.blend(from.Pitch, to.Pitch),
			Yaw:      seg.blend(from.Yaw, to.Yaw),
			Thrust:   seg.blend(from.Thrust, to.Thrust),
			Throttle: seg.blend(from.Throttle, to.Throttle),
		},
		Status:        bus.FlightStatus{Armed: from.Armed, FlightMode: from.FlightMode},
		PositionValid: from.PositionValid,
	}
}

// segment is the keyframe pair bracketing a sample time. Discrete fields
// come from from; sticks are blended toward to by frac.
type segment struct {
	from, to PilotKeyframe
	frac     float64
}

func (g segment) blend(a, b float64) float64 {
	return a + (b-a)*g.frac
}

func segmentAt(kfs []PilotKeyframe, t time.Duration) segment {
	// First keyframe strictly after t; keyframes sharing a timestamp act as
	// a step, the later one winning.
	next := sort.Search(len(kfs), func(i int) bool { return kfs[i].T > t })
	switch {
	case next == 0:
		return segment{from: kfs[0], to: kfs[0]}
	case next == len(kfs):
		last := kfs[len(kfs)-1]
		return segment{from: last, to: last}
	}
	from, to := kfs[next-1], kfs[next]
	span := to.T - from.T
	frac := float64(t-from.T) / float64(span)
	return segment{from: from, to: to, frac: min(max(frac, 0), 1)}
}
