package sim

import (
	"math"
	"time"

	"github.com/golang/geo/r3"
	"go.einride.tech/pid"

	"flightstab/internal/bus"
	"flightstab/internal/outerloop"
)

const gravity = 9.81

// VehicleConfig describes the simulated airframe.
type VehicleConfig struct {
	// HoverThrust is the normalized thrust that balances gravity.
	HoverThrust float64 `yaml:"hover_thrust"`
	// Drag is a linear drag coefficient in 1/s.
	Drag float64 `yaml:"drag"`
	// RateKp is the proportional gain of the simulated inner rate loop
	// (deg/s^2 per deg/s of rate error).
	RateKp float64 `yaml:"rate_kp"`
	// MaxRate bounds the body rate in deg/s.
	MaxRate float64 `yaml:"max_rate"`
	// Start is the initial NED position in metres.
	Start [3]float64 `yaml:"start"`
}

// Vehicle is a point-mass multirotor in NED with first-order attitude
// dynamics. It stands in for the inner rate loop, mixer and airframe so the
// control tasks can run closed loop.
//
// Not safe for concurrent use.
type Vehicle struct {
	cfg VehicleConfig

	pos r3.Vector // NED, m
	vel r3.Vector // NED, m/s

	// Euler angles in degrees and body rates in deg/s, indexed by bus.Axis.
	att  [bus.NumAttitudeAxes]float64
	rate [bus.NumAttitudeAxes]float64

	ratePID [bus.NumAttitudeAxes]pid.Controller

	elapsed time.Duration
}

func NewVehicle(cfg VehicleConfig) *Vehicle {
	if cfg.HoverThrust <= 0 {
		cfg.HoverThrust = 0.5
	}
	if cfg.Drag < 0 {
		cfg.Drag = 0
	}
	if cfg.RateKp <= 0 {
		cfg.RateKp = 20
	}
	if cfg.MaxRate <= 0 {
		cfg.MaxRate = 720
	}
	v := &Vehicle{
		cfg: cfg,
		pos: r3.Vector{X: cfg.Start[0], Y: cfg.Start[1], Z: cfg.Start[2]},
	}
	for i := range v.ratePID {
		v.ratePID[i] = pid.Controller{
			Config: pid.ControllerConfig{ProportionalGain: cfg.RateKp},
		}
	}
	return v
}

// Step advances the plant by dt under the given rate/thrust command.
// A disarmed vehicle produces no thrust.
func (v *Vehicle) Step(cmd bus.RateSetpoint, armed bool, dt time.Duration) {
	if dt <= 0 {
		return
	}
	sec := dt.Seconds()
	v.elapsed += dt

	grounded := v.pos.Z >= 0 && !armed
	for a := bus.Roll; a <= bus.Yaw; a++ {
		if grounded {
			v.rate[a] = 0
			v.ratePID[a].Reset()
			continue
		}
		v.ratePID[a].Update(pid.ControllerInput{
			ReferenceSignal:  cmd.Value[a],
			ActualSignal:     v.rate[a],
			SamplingInterval: dt,
		})
		v.rate[a] = clamp(v.rate[a]+v.ratePID[a].State.ControlSignal*sec, -v.cfg.MaxRate, v.cfg.MaxRate)
		v.att[a] += v.rate[a] * sec
	}
	v.att[bus.Roll] = clamp(v.att[bus.Roll], -90, 90)
	v.att[bus.Pitch] = clamp(v.att[bus.Pitch], -89, 89)
	v.att[bus.Yaw] = wrapDeg(v.att[bus.Yaw])

	thrust := 0.0
	if armed {
		thrust = clamp(cmd.Value[bus.Thrust], 0, 1)
	}
	f := gravity * thrust / v.cfg.HoverThrust

	acc := v.bodyDown().Mul(-f).
		Add(r3.Vector{Z: gravity}).
		Sub(v.vel.Mul(v.cfg.Drag))

	v.vel = v.vel.Add(acc.Mul(sec))
	v.pos = v.pos.Add(v.vel.Mul(sec))

	// Ground contact: the vehicle sits on Down=0 and cannot sink into it.
	if v.pos.Z >= 0 {
		v.pos.Z = 0
		if v.vel.Z > 0 {
			v.vel = r3.Vector{}
		}
	}
}

// bodyDown is the body Z axis expressed in NED.
func (v *Vehicle) bodyDown() r3.Vector {
	phi := v.att[bus.Roll] * math.Pi / 180
	theta := v.att[bus.Pitch] * math.Pi / 180
	psi := v.att[bus.Yaw] * math.Pi / 180
	cphi, sphi := math.Cos(phi), math.Sin(phi)
	cthe, sthe := math.Cos(theta), math.Sin(theta)
	cpsi, spsi := math.Cos(psi), math.Sin(psi)
	return r3.Vector{
		X: cpsi*sthe*cphi + spsi*sphi,
		Y: spsi*sthe*cphi - cpsi*sphi,
		Z: cthe * cphi,
	}
}

func (v *Vehicle) Elapsed() time.Duration { return v.elapsed }

// Attitude returns the fused attitude an estimator would publish.
func (v *Vehicle) Attitude() bus.AttitudeState {
	s := bus.AttitudeState{
		Roll:  v.att[bus.Roll],
		Pitch: v.att[bus.Pitch],
		Yaw:   v.att[bus.Yaw],
		Rate:  v.rate,
	}
	s.Q = outerloop.RPYToQuat(v.att)
	return s
}

func (v *Vehicle) Position(valid bool) bus.PositionState {
	return bus.PositionState{NED: [bus.NumDirs]float64{v.pos.X, v.pos.Y, v.pos.Z}, Valid: valid}
}

func (v *Vehicle) Velocity(valid bool) bus.VelocityState {
	return bus.VelocityState{NED: [bus.NumDirs]float64{v.vel.X, v.vel.Y, v.vel.Z}, Valid: valid}
}

// Speed is the magnitude of the velocity vector in m/s.
func (v *Vehicle) Speed() float64 { return v.vel.Norm() }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func wrapDeg(d float64) float64 {
	d = math.Mod(d+180, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}
