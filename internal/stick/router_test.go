package stick

import (
	"errors"
	"math"
	"testing"

	"flightstab/internal/bus"
)

func testModes() bus.FlightModeSettings {
	var m bus.FlightModeSettings
	bank := bus.Bank{
		MaxAngle:   [bus.NumAttitudeAxes]float64{30, 40, 50},
		ManualRate: [bus.NumAttitudeAxes]float64{200, 210, 150},
	}
	m.Profiles[0] = bus.FlightModeProfile{
		Law:  [bus.NumAxes]bus.Law{bus.LawAttitude, bus.LawAttitude, bus.LawRate, bus.LawDirect},
		Bank: bank,
	}
	m.Profiles[1] = bus.FlightModeProfile{
		Law:  [bus.NumAxes]bus.Law{bus.LawRattitude, bus.LawWeakLeveling, bus.LawDirectWithLimits, bus.LawAltitudeHold},
		Bank: bank,
	}
	m.HoldMode = bus.FlightModeStabilized2
	return m
}

func testHold() bus.HoldSettings {
	return bus.HoldSettings{
		MaxVelocity:    [bus.NumDirs]float64{1, 1, 0.5},
		AltitudeTarget: 0.8,
		ThrustArm:      0.5,
		StickDeadband:  0.03,
		SettleCycles:   100,
	}
}

func TestRouter_AttitudeAssembly(t *testing.T) {
	r := NewRouter()
	out, err := r.Step(Input{
		Command: bus.ManualCommand{Roll: 0.5, Pitch: -0.5, Yaw: 0.2, Thrust: 0.7},
		Status:  bus.FlightStatus{Armed: true, FlightMode: bus.FlightModeStabilized1},
		Modes:   testModes(),
	})
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !out.Publish {
		t.Fatalf("expected publish")
	}
	want := [bus.NumAxes]float64{15, -20, 30, 0.7}
	for a := range want {
		if math.Abs(out.Setpoint.Value[a]-want[a]) > 1e-9 {
			t.Fatalf("axis %v got=%v want=%v", bus.Axis(a), out.Setpoint.Value[a], want[a])
		}
	}
	if out.Setpoint.Law != testModes().Profiles[0].Law {
		t.Fatalf("laws=%v want profile laws", out.Setpoint.Law)
	}
	if out.HoldActive {
		t.Fatalf("hold active outside hold mode")
	}
}

func TestRouter_BasePathZeroesNonAttitudeAxes(t *testing.T) {
	r := NewRouter()
	modes := testModes()
	modes.HoldMode = bus.FlightModeManual
	out, err := r.Step(Input{
		Command: bus.ManualCommand{Roll: 0.5, Pitch: 0.5, Yaw: 0.5, Thrust: 0.3},
		Status:  bus.FlightStatus{FlightMode: bus.FlightModeStabilized2},
		Modes:   modes,
	})
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	for a := bus.Roll; a <= bus.Yaw; a++ {
		if out.Setpoint.Value[a] != 0 {
			t.Fatalf("axis %v got=%v want 0", a, out.Setpoint.Value[a])
		}
	}
}

func TestRouter_FullStickMapping(t *testing.T) {
	r := NewRouter()
	modes := testModes()
	modes.HoldMode = bus.FlightModeManual
	out, err := r.Step(Input{
		Command: bus.ManualCommand{Roll: 0.5, Pitch: 0.5, Yaw: 0.5},
		Status:  bus.FlightStatus{FlightMode: bus.FlightModeStabilized2},
		Modes:   modes,
		Stab:    bus.StabilizationSettings{FullStickMapping: true},
	})
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	want := [3]float64{15, 20, 75}
	for a := range want {
		if math.Abs(out.Setpoint.Value[a]-want[a]) > 1e-9 {
			t.Fatalf("axis %v got=%v want=%v", bus.Axis(a), out.Setpoint.Value[a], want[a])
		}
	}
}

func TestRouter_UnsupportedMode(t *testing.T) {
	r := NewRouter()
	out, err := r.Step(Input{
		Status: bus.FlightStatus{FlightMode: bus.FlightModeLand},
		Modes:  testModes(),
	})
	if !errors.Is(err, ErrUnsupportedMode) {
		t.Fatalf("err=%v want ErrUnsupportedMode", err)
	}
	if out.Publish {
		t.Fatalf("must not publish on unsupported mode")
	}
}

func TestRouter_AutotuneSkipsWithoutError(t *testing.T) {
	r := NewRouter()
	out, err := r.Step(Input{
		Status: bus.FlightStatus{FlightMode: bus.FlightModeAutotune},
		Modes:  testModes(),
	})
	if err != nil {
		t.Fatalf("err=%v want nil", err)
	}
	if out.Publish {
		t.Fatalf("autotune must not publish")
	}
}

func TestRouter_HoldModeRunsGenerator(t *testing.T) {
	r := NewRouter()
	in := Input{
		Command: bus.ManualCommand{Roll: 0.5, Thrust: 0.6},
		Status:  bus.FlightStatus{Armed: true, FlightMode: bus.FlightModeStabilized2},
		Modes:   testModes(),
		Hold:    testHold(),
	}
	out, err := r.Step(in)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !out.HoldActive {
		t.Fatalf("expected hold active")
	}
	if out.Hold.Mode[bus.Down] != bus.HoldPosition || out.Hold.Position[bus.Down] != -0.8 {
		t.Fatalf("down=%v/%v want position/-0.8", out.Hold.Mode[bus.Down], out.Hold.Position[bus.Down])
	}
	if out.Hold.Mode[bus.East] != bus.HoldVelocity || out.Hold.Velocity[bus.East] != 0.5 {
		t.Fatalf("east=%v/%v want velocity/0.5", out.Hold.Mode[bus.East], out.Hold.Velocity[bus.East])
	}
	// The hold mode still publishes the profile's setpoint.
	if !out.Publish || out.Setpoint.Law[bus.Thrust] != bus.LawAltitudeHold {
		t.Fatalf("setpoint laws=%v", out.Setpoint.Law)
	}

	// Leaving and re-entering hold starts the generator afresh.
	in.Status.FlightMode = bus.FlightModeStabilized1
	if _, err := r.Step(in); err != nil {
		t.Fatalf("Step: %v", err)
	}
	in.Status.FlightMode = bus.FlightModeStabilized2
	in.Command = bus.ManualCommand{Thrust: 0.2}
	out, err = r.Step(in)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if out.Hold.Velocity[bus.East] != 0 {
		t.Fatalf("east vel=%v want 0 after reentry", out.Hold.Velocity[bus.East])
	}
}

func TestRouter_ExpoAndTiltApplied(t *testing.T) {
	r := NewRouter()
	modes := testModes()
	modes.Profiles[0].Bank.StickExpo = [bus.NumAttitudeAxes]float64{100, 0, 0}
	modes.Profiles[0].Bank.FpvTiltDeg = 90
	out, err := r.Step(Input{
		Command: bus.ManualCommand{Roll: 0.5, Yaw: 0},
		Status:  bus.FlightStatus{FlightMode: bus.FlightModeStabilized1},
		Modes:   modes,
	})
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	// Roll 0.5^4 rotated by 90 degrees lands entirely on yaw.
	if math.Abs(out.Command.Roll) > 1e-9 {
		t.Fatalf("roll=%v want 0", out.Command.Roll)
	}
	if math.Abs(out.Command.Yaw+0.0625) > 1e-9 {
		t.Fatalf("yaw=%v want -0.0625", out.Command.Yaw)
	}
}
