package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"flightstab/internal/bus"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "{}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Loop.SensorRateHz != 500 || cfg.Loop.ManualRateHz != 50 || cfg.Loop.OuterSkip != 1 {
		t.Fatalf("loop=%+v", cfg.Loop)
	}
	if cfg.Loop.AttitudeError != "euler" {
		t.Fatalf("attitude_error=%q want euler", cfg.Loop.AttitudeError)
	}
	if cfg.Stabilization.RattitudeTransition != 0.8 {
		t.Fatalf("rattitude_transition=%v want 0.8", cfg.Stabilization.RattitudeTransition)
	}
	if len(cfg.FlightModes.Profiles) != 2 {
		t.Fatalf("profiles=%d want 2", len(cfg.FlightModes.Profiles))
	}
	if cfg.FlightModes.HoldMode != bus.FlightModeStabilized2 {
		t.Fatalf("hold_mode=%v want stabilized2", cfg.FlightModes.HoldMode)
	}
	if cfg.Hold.SettleCycles != 100 || cfg.Hold.PinTarget != "origin" {
		t.Fatalf("hold=%+v", cfg.Hold)
	}
	if cfg.Altitude.ThrustMax != 0.9 || cfg.Altitude.ThrustNeutral != 0.5 {
		t.Fatalf("altitude=%+v", cfg.Altitude)
	}
	if cfg.Mocap.Baud != 115200 || cfg.Mocap.StaleAfter != 200*time.Millisecond {
		t.Fatalf("mocap=%+v", cfg.Mocap)
	}
	if cfg.Status.Interval != 5*time.Second {
		t.Fatalf("status.interval=%s want 5s", cfg.Status.Interval)
	}
	if _, ok := cfg.PinnedCPU(); ok {
		t.Fatalf("expected no pinned cpu by default")
	}
}

func TestLoad_ProfilesConverted(t *testing.T) {
	body := `
flight_modes:
  hold_mode: stabilized3
  profiles:
    - laws: {roll: attitude, pitch: attitude, yaw: rate, thrust: direct}
      stick_expo: {roll: 20, pitch: 20, yaw: 0}
      max_angle: {roll: 30, pitch: 25, yaw: 20}
      manual_rate: {roll: 150, pitch: 150, yaw: 90}
      fpv_tilt_deg: 15
      attitude_pid:
        roll: {kp: 3}
        pitch: {kp: 3.5}
        yaw: {kp: 2, ki: 0.1}
    - laws: {roll: rattitude, pitch: weak_leveling, yaw: rate, thrust: direct_with_limits}
    - laws: {roll: attitude, pitch: attitude, yaw: attitude, thrust: altitude_vario}
loop:
  cpu: 2
hold:
  pin_target: current
`
	cfg, err := Load(writeTempConfig(t, body))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	s := cfg.FlightModeSettings()
	if s.HoldMode != bus.FlightModeStabilized3 {
		t.Fatalf("hold_mode=%v", s.HoldMode)
	}
	p0 := s.Profiles[0]
	if p0.Law != [bus.NumAxes]bus.Law{bus.LawAttitude, bus.LawAttitude, bus.LawRate, bus.LawDirect} {
		t.Fatalf("laws=%v", p0.Law)
	}
	if p0.Bank.MaxAngle != [3]float64{30, 25, 20} || p0.Bank.ManualRate != [3]float64{150, 150, 90} {
		t.Fatalf("bank=%+v", p0.Bank)
	}
	if p0.Bank.StickExpo[bus.Roll] != 20 || p0.Bank.FpvTiltDeg != 15 {
		t.Fatalf("bank=%+v", p0.Bank)
	}
	if p0.Bank.AttitudePID[bus.Yaw].Ki != 0.1 || p0.Bank.AttitudePID[bus.Pitch].Kp != 3.5 {
		t.Fatalf("pid=%+v", p0.Bank.AttitudePID)
	}
	if got := s.Profiles[1].Law[bus.Thrust]; got != bus.LawDirectWithLimits {
		t.Fatalf("profile 2 thrust=%v", got)
	}
	// Unset banks get defaults.
	if s.Profiles[1].Bank.MaxAngle[bus.Roll] != 55 || s.Profiles[1].Bank.AttitudePID[bus.Roll].Kp != 2.5 {
		t.Fatalf("profile 2 bank=%+v", s.Profiles[1].Bank)
	}
	if got := s.Profiles[2].Law[bus.Thrust]; got != bus.LawAltitudeVario {
		t.Fatalf("profile 3 thrust=%v", got)
	}
	if cpu, ok := cfg.PinnedCPU(); !ok || cpu != 2 {
		t.Fatalf("cpu=%d ok=%v", cpu, ok)
	}
	if got := cfg.HoldSettings().PinTarget; got != bus.HoldTargetCurrent {
		t.Fatalf("pin_target=%v", got)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "AttitudeError",
			body: "loop:\n  attitude_error: matrix\n",
			want: "loop.attitude_error must be euler or quaternion",
		},
		{
			name: "ManualFasterThanSensor",
			body: "loop:\n  sensor_rate_hz: 100\n  manual_rate_hz: 200\n",
			want: "loop.manual_rate_hz must be <= loop.sensor_rate_hz",
		},
		{
			name: "RattitudeTransition",
			body: "stabilization:\n  rattitude_transition: 1.5\n",
			want: "stabilization.rattitude_transition must be within (0,1]",
		},
		{
			name: "ThrustLawOnRoll",
			body: "flight_modes:\n  profiles:\n    - laws: {roll: altitude_hold}\n",
			want: "flight_modes.profiles[0].laws.roll: altitude_hold is only valid on thrust",
		},
		{
			name: "AttitudeLawOnThrust",
			body: "flight_modes:\n  profiles:\n    - laws: {thrust: rate}\n",
			want: "flight_modes.profiles[0].laws.thrust: rate is not a thrust law",
		},
		{
			name: "HoldModeNotStabilized",
			body: "flight_modes:\n  hold_mode: autotune\n",
			want: "flight_modes.hold_mode must be one of stabilized1..stabilized6",
		},
		{
			name: "PinTarget",
			body: "hold:\n  pin_target: home\n",
			want: "hold.pin_target must be origin or current",
		},
		{
			name: "ThrustRange",
			body: "altitude:\n  thrust_min: 0.9\n  thrust_max: 0.4\n",
			want: "altitude.thrust_min must be < thrust_max",
		},
		{
			name: "MocapDevice",
			body: "mocap:\n  enable: true\n",
			want: "mocap.device is required when mocap.enable is true",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.body))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_TooManyProfiles(t *testing.T) {
	body := "flight_modes:\n  profiles:\n" +
		"    - {}\n    - {}\n    - {}\n    - {}\n    - {}\n    - {}\n    - {}\n"
	_, err := Load(writeTempConfig(t, body))
	requireErrEq(t, err, "flight_modes.profiles supports at most 6 entries")
}

func TestLoad_UnknownLawName(t *testing.T) {
	_, err := Load(writeTempConfig(t, "flight_modes:\n  profiles:\n    - laws: {roll: acro}\n"))
	if err == nil {
		t.Fatalf("expected error for unknown law name")
	}
}

func TestPublish_WritesAllSettings(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, "altitude:\n  neutral_thrust_offset: -0.02\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	b := bus.New()
	cfg.Publish(b)
	for _, topic := range []bus.Topic{
		bus.TopicFlightModeSettings,
		bus.TopicStabilizationSettings,
		bus.TopicHoldSettings,
		bus.TopicAltitudeSettings,
		bus.TopicNeutralThrustOffset,
	} {
		if b.Version(topic) == 0 {
			t.Fatalf("topic %v was not published", topic)
		}
	}
	if got := b.NeutralThrustOffset(); got != -0.02 {
		t.Fatalf("offset=%v want -0.02", got)
	}
	if got := b.AltitudeSettings().ThrustNeutral; got != 0.5 {
		t.Fatalf("thrust_neutral=%v want 0.5", got)
	}
}
