package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"flightstab/internal/bus"
	"flightstab/internal/pid"
)

type Config struct {
	Loop          LoopConfig          `yaml:"loop"`
	Stabilization StabilizationConfig `yaml:"stabilization"`
	FlightModes   FlightModesConfig   `yaml:"flight_modes"`
	Hold          HoldConfig          `yaml:"hold"`
	Altitude      AltitudeConfig      `yaml:"altitude"`
	Alarm         AlarmConfig         `yaml:"alarm"`
	Mocap         MocapConfig         `yaml:"mocap"`
	Status        StatusConfig        `yaml:"status"`
}

type LoopConfig struct {
	SensorRateHz float64 `yaml:"sensor_rate_hz"`
	ManualRateHz float64 `yaml:"manual_rate_hz"`
	OuterSkip    int     `yaml:"outer_skip"`
	// AttitudeError is "euler" or "quaternion".
	AttitudeError string `yaml:"attitude_error"`
	LockMemory    bool   `yaml:"lock_memory"`
	// CPU pins the control loop thread; negative leaves it unpinned.
	CPU *int `yaml:"cpu"`
}

type StabilizationConfig struct {
	WeakLevelingKp          float64 `yaml:"weak_leveling_kp"`
	MaxWeakLevelingRate     float64 `yaml:"max_weak_leveling_rate"`
	RattitudeTransition     float64 `yaml:"rattitude_transition"`
	LowThrottleZeroIntegral bool    `yaml:"low_throttle_zero_integral"`
	FullStickMapping        bool    `yaml:"full_stick_mapping"`
}

type FlightModesConfig struct {
	HoldMode bus.FlightMode `yaml:"hold_mode"`
	// Profiles are the Stabilized1..6 slots in order.
	Profiles []ProfileConfig `yaml:"profiles"`
}

type AxisLaws struct {
	Roll   bus.Law `yaml:"roll"`
	Pitch  bus.Law `yaml:"pitch"`
	Yaw    bus.Law `yaml:"yaw"`
	Thrust bus.Law `yaml:"thrust"`
}

type RPY struct {
	Roll  float64 `yaml:"roll"`
	Pitch float64 `yaml:"pitch"`
	Yaw   float64 `yaml:"yaw"`
}

type RPYGains struct {
	Roll  pid.Gains `yaml:"roll"`
	Pitch pid.Gains `yaml:"pitch"`
	Yaw   pid.Gains `yaml:"yaw"`
}

type ProfileConfig struct {
	Laws        AxisLaws `yaml:"laws"`
	StickExpo   RPY      `yaml:"stick_expo"`
	MaxAngle    RPY      `yaml:"max_angle"`
	ManualRate  RPY      `yaml:"manual_rate"`
	FpvTiltDeg  float64  `yaml:"fpv_tilt_deg"`
	AttitudePID RPYGains `yaml:"attitude_pid"`
}

type NED struct {
	North float64 `yaml:"north"`
	East  float64 `yaml:"east"`
	Down  float64 `yaml:"down"`
}

type NEGains struct {
	North pid.Gains `yaml:"north"`
	East  pid.Gains `yaml:"east"`
}

type HoldConfig struct {
	MaxVelocity    NED     `yaml:"max_velocity"`
	AltitudeTarget float64 `yaml:"altitude_target"`
	ThrustArm      float64 `yaml:"thrust_arm"`
	StickDeadband  float64 `yaml:"stick_deadband"`
	SettleCycles   int     `yaml:"settle_cycles"`
	// PinTarget is "origin" or "current".
	PinTarget     string  `yaml:"pin_target"`
	PositionPID   NEGains `yaml:"position_pid"`
	VelocityPID   NEGains `yaml:"velocity_pid"`
	MaxAccel      float64 `yaml:"max_accel"`
	MaxHorizontal float64 `yaml:"max_horizontal"`
	MaxHeight     float64 `yaml:"max_height"`
}

type AltitudeConfig struct {
	VelocityPID         pid.Gains `yaml:"velocity_pid"`
	PositionP           float64   `yaml:"position_p"`
	ThrustMin           float64   `yaml:"thrust_min"`
	ThrustMax           float64   `yaml:"thrust_max"`
	ThrustNeutral       float64   `yaml:"thrust_neutral"`
	NeutralThrustOffset float64   `yaml:"neutral_thrust_offset"`
	CutThrustWhenZero   bool      `yaml:"cut_thrust_when_zero"`
	MaxSpeedUp          float64   `yaml:"max_speed_up"`
	MaxSpeedDown        float64   `yaml:"max_speed_down"`
}

type AlarmConfig struct {
	// IndicatorPin is the BCM GPIO driven while a critical alarm is active.
	// Zero disables the indicator.
	IndicatorPin int `yaml:"indicator_pin"`
}

type MocapConfig struct {
	Enable     bool          `yaml:"enable"`
	Device     string        `yaml:"device"`
	Baud       int           `yaml:"baud"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type StatusConfig struct {
	Interval time.Duration `yaml:"interval"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultAndValidate fills zero values with defaults and rejects settings the
// control tasks cannot run with.
func DefaultAndValidate(cfg *Config) error {
	if cfg.Loop.SensorRateHz == 0 {
		cfg.Loop.SensorRateHz = 500
	}
	if cfg.Loop.SensorRateHz < 0 {
		return fmt.Errorf("loop.sensor_rate_hz must be > 0")
	}
	if cfg.Loop.ManualRateHz == 0 {
		cfg.Loop.ManualRateHz = 50
	}
	if cfg.Loop.ManualRateHz < 0 {
		return fmt.Errorf("loop.manual_rate_hz must be > 0")
	}
	if cfg.Loop.ManualRateHz > cfg.Loop.SensorRateHz {
		return fmt.Errorf("loop.manual_rate_hz must be <= loop.sensor_rate_hz")
	}
	if cfg.Loop.OuterSkip == 0 {
		cfg.Loop.OuterSkip = 1
	}
	if cfg.Loop.OuterSkip < 0 {
		return fmt.Errorf("loop.outer_skip must be >= 1")
	}
	if cfg.Loop.AttitudeError == "" {
		cfg.Loop.AttitudeError = "euler"
	}
	if cfg.Loop.AttitudeError != "euler" && cfg.Loop.AttitudeError != "quaternion" {
		return fmt.Errorf("loop.attitude_error must be euler or quaternion")
	}

	if cfg.Stabilization.RattitudeTransition == 0 {
		cfg.Stabilization.RattitudeTransition = 0.8
	}
	if cfg.Stabilization.RattitudeTransition < 0 || cfg.Stabilization.RattitudeTransition > 1 {
		return fmt.Errorf("stabilization.rattitude_transition must be within (0,1]")
	}
	if cfg.Stabilization.WeakLevelingKp == 0 {
		cfg.Stabilization.WeakLevelingKp = 0.1
	}
	if cfg.Stabilization.MaxWeakLevelingRate == 0 {
		cfg.Stabilization.MaxWeakLevelingRate = 5
	}
	if cfg.Stabilization.MaxWeakLevelingRate < 0 {
		return fmt.Errorf("stabilization.max_weak_leveling_rate must be >= 0")
	}

	if err := defaultFlightModes(&cfg.FlightModes); err != nil {
		return err
	}
	if err := defaultHold(&cfg.Hold); err != nil {
		return err
	}
	if err := defaultAltitude(&cfg.Altitude); err != nil {
		return err
	}

	if cfg.Alarm.IndicatorPin < 0 {
		return fmt.Errorf("alarm.indicator_pin must be >= 0")
	}

	if cfg.Mocap.Baud == 0 {
		cfg.Mocap.Baud = 115200
	}
	if cfg.Mocap.StaleAfter <= 0 {
		cfg.Mocap.StaleAfter = 200 * time.Millisecond
	}
	if cfg.Mocap.Enable && cfg.Mocap.Device == "" {
		return fmt.Errorf("mocap.device is required when mocap.enable is true")
	}

	if cfg.Status.Interval <= 0 {
		cfg.Status.Interval = 5 * time.Second
	}
	return nil
}

func defaultFlightModes(fm *FlightModesConfig) error {
	if len(fm.Profiles) > bus.NumStabilizedModes {
		return fmt.Errorf("flight_modes.profiles supports at most %d entries", bus.NumStabilizedModes)
	}
	if len(fm.Profiles) == 0 {
		fm.Profiles = []ProfileConfig{
			{Laws: AxisLaws{Roll: bus.LawAttitude, Pitch: bus.LawAttitude, Yaw: bus.LawRate, Thrust: bus.LawDirect}},
			{Laws: AxisLaws{Roll: bus.LawAttitude, Pitch: bus.LawAttitude, Yaw: bus.LawAttitude, Thrust: bus.LawAltitudeHold}},
		}
	}
	for i := range fm.Profiles {
		if err := defaultProfile(&fm.Profiles[i], i); err != nil {
			return err
		}
	}
	if fm.HoldMode == bus.FlightModeManual {
		fm.HoldMode = bus.FlightModeStabilized2
	}
	if _, ok := fm.HoldMode.StabilizedSlot(); !ok {
		return fmt.Errorf("flight_modes.hold_mode must be one of stabilized1..stabilized6")
	}
	return nil
}

func defaultProfile(p *ProfileConfig, i int) error {
	for _, ax := range []struct {
		name string
		law  bus.Law
	}{
		{"roll", p.Laws.Roll},
		{"pitch", p.Laws.Pitch},
		{"yaw", p.Laws.Yaw},
	} {
		if ax.law.IsThrust() {
			return fmt.Errorf("flight_modes.profiles[%d].laws.%s: %s is only valid on thrust", i, ax.name, ax.law)
		}
	}
	switch p.Laws.Thrust {
	case bus.LawDirect, bus.LawDirectWithLimits, bus.LawAltitudeHold, bus.LawAltitudeVario:
	default:
		return fmt.Errorf("flight_modes.profiles[%d].laws.thrust: %s is not a thrust law", i, p.Laws.Thrust)
	}

	for _, e := range []float64{p.StickExpo.Roll, p.StickExpo.Pitch, p.StickExpo.Yaw} {
		if e < -100 || e > 100 {
			return fmt.Errorf("flight_modes.profiles[%d].stick_expo must be within [-100,100]", i)
		}
	}
	if p.MaxAngle == (RPY{}) {
		p.MaxAngle = RPY{Roll: 55, Pitch: 55, Yaw: 35}
	}
	if p.ManualRate == (RPY{}) {
		p.ManualRate = RPY{Roll: 220, Pitch: 220, Yaw: 220}
	}
	if p.MaxAngle.Roll < 0 || p.MaxAngle.Pitch < 0 || p.MaxAngle.Yaw < 0 {
		return fmt.Errorf("flight_modes.profiles[%d].max_angle must be >= 0", i)
	}
	if p.ManualRate.Roll < 0 || p.ManualRate.Pitch < 0 || p.ManualRate.Yaw < 0 {
		return fmt.Errorf("flight_modes.profiles[%d].manual_rate must be >= 0", i)
	}
	if p.AttitudePID == (RPYGains{}) {
		g := pid.Gains{Kp: 2.5}
		p.AttitudePID = RPYGains{Roll: g, Pitch: g, Yaw: g}
	}
	return nil
}

func defaultHold(h *HoldConfig) error {
	if h.MaxVelocity == (NED{}) {
		h.MaxVelocity = NED{North: 1, East: 1, Down: 0.5}
	}
	if h.AltitudeTarget == 0 {
		h.AltitudeTarget = 0.8
	}
	if h.ThrustArm == 0 {
		h.ThrustArm = 0.5
	}
	if h.ThrustArm < 0 || h.ThrustArm > 1 {
		return fmt.Errorf("hold.thrust_arm must be within [0,1]")
	}
	if h.StickDeadband == 0 {
		h.StickDeadband = 0.03
	}
	if h.StickDeadband < 0 || h.StickDeadband >= 1 {
		return fmt.Errorf("hold.stick_deadband must be within [0,1)")
	}
	if h.SettleCycles == 0 {
		h.SettleCycles = 100
	}
	if h.SettleCycles < 0 {
		return fmt.Errorf("hold.settle_cycles must be >= 0")
	}
	if h.PinTarget == "" {
		h.PinTarget = "origin"
	}
	if h.PinTarget != "origin" && h.PinTarget != "current" {
		return fmt.Errorf("hold.pin_target must be origin or current")
	}
	if h.PositionPID == (NEGains{}) {
		h.PositionPID = NEGains{North: pid.Gains{Kp: 1}, East: pid.Gains{Kp: 1}}
	}
	if h.VelocityPID == (NEGains{}) {
		h.VelocityPID = NEGains{North: pid.Gains{Kp: 2}, East: pid.Gains{Kp: 2}}
	}
	if h.MaxAccel == 0 {
		h.MaxAccel = 10
	}
	if h.MaxHorizontal == 0 {
		h.MaxHorizontal = 2
	}
	if h.MaxHeight == 0 {
		h.MaxHeight = 2
	}
	if h.MaxAccel < 0 || h.MaxHorizontal < 0 || h.MaxHeight < 0 {
		return fmt.Errorf("hold.max_accel, hold.max_horizontal and hold.max_height must be > 0")
	}
	return nil
}

func defaultAltitude(a *AltitudeConfig) error {
	if a.VelocityPID == (pid.Gains{}) {
		a.VelocityPID = pid.Gains{Kp: 0.1, Ki: 0.05}
	}
	if a.PositionP == 0 {
		a.PositionP = 1
	}
	if a.ThrustMax == 0 {
		a.ThrustMax = 0.9
	}
	if a.ThrustNeutral == 0 {
		a.ThrustNeutral = 0.5
	}
	if a.ThrustMin < 0 || a.ThrustMax > 1 {
		return fmt.Errorf("altitude.thrust_min and altitude.thrust_max must be within [0,1]")
	}
	if a.ThrustMin >= a.ThrustMax {
		return fmt.Errorf("altitude.thrust_min must be < thrust_max")
	}
	if a.MaxSpeedUp == 0 {
		a.MaxSpeedUp = 0.6
	}
	if a.MaxSpeedDown == 0 {
		a.MaxSpeedDown = 1
	}
	if a.MaxSpeedUp < 0 || a.MaxSpeedDown < 0 {
		return fmt.Errorf("altitude.max_speed_up and altitude.max_speed_down must be > 0")
	}
	return nil
}

// PinnedCPU returns the CPU the loop thread should be pinned to.
func (c Config) PinnedCPU() (int, bool) {
	if c.Loop.CPU == nil || *c.Loop.CPU < 0 {
		return 0, false
	}
	return *c.Loop.CPU, true
}
