package outerloop

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"

	"flightstab/internal/bus"
)

// ErrorStrategy computes the per-axis attitude error in degrees. It is chosen
// once when the controller is built.
type ErrorStrategy interface {
	Error(desired [bus.NumAttitudeAxes]float64, att bus.AttitudeState) [bus.NumAttitudeAxes]float64
}

// StrategyByName returns the strategy for the config value "euler" or
// "quaternion".
func StrategyByName(name string) (ErrorStrategy, error) {
	switch name {
	case "", "euler":
		return EulerError{}, nil
	case "quaternion":
		return QuaternionError{}, nil
	default:
		return nil, fmt.Errorf("outerloop: unknown attitude error strategy %q", name)
	}
}

// EulerError subtracts Euler angles and wraps the yaw error to the shortest
// way around.
type EulerError struct{}

func (EulerError) Error(desired [bus.NumAttitudeAxes]float64, att bus.AttitudeState) [bus.NumAttitudeAxes]float64 {
	var e [bus.NumAttitudeAxes]float64
	e[bus.Roll] = desired[bus.Roll] - att.Roll
	e[bus.Pitch] = desired[bus.Pitch] - att.Pitch
	e[bus.Yaw] = wrap180(desired[bus.Yaw] - att.Yaw)
	return e
}

func wrap180(deg float64) float64 {
	m := math.Mod(deg+180, 360)
	if m < 0 {
		return m + 180
	}
	return m - 180
}

// QuaternionError expresses the rotation from the current to the desired
// attitude back as roll/pitch/yaw. It stays well behaved for large errors and
// near gimbal lock.
type QuaternionError struct{}

func (QuaternionError) Error(desired [bus.NumAttitudeAxes]float64, att bus.AttitudeState) [bus.NumAttitudeAxes]float64 {
	qd := rpyToQuat(desired)
	qa := attitudeQuat(att)
	qe := quat.Conj(quat.Mul(quat.Conj(qd), qa))
	return quatToRPY(qe)
}

func attitudeQuat(att bus.AttitudeState) quat.Number {
	q := quat.Number{Real: att.Q[0], Imag: att.Q[1], Jmag: att.Q[2], Kmag: att.Q[3]}
	n := quat.Abs(q)
	if n == 0 || math.IsNaN(n) {
		return rpyToQuat(att.Euler())
	}
	return quat.Scale(1/n, q)
}

// rpyToQuat converts roll/pitch/yaw in degrees (ZYX order) to a unit
// quaternion with a non-negative scalar part.
func rpyToQuat(rpy [bus.NumAttitudeAxes]float64) quat.Number {
	phi := rpy[bus.Roll] * math.Pi / 360
	theta := rpy[bus.Pitch] * math.Pi / 360
	psi := rpy[bus.Yaw] * math.Pi / 360
	cphi, sphi := math.Cos(phi), math.Sin(phi)
	cthe, sthe := math.Cos(theta), math.Sin(theta)
	cpsi, spsi := math.Cos(psi), math.Sin(psi)

	q := quat.Number{
		Real: cphi*cthe*cpsi + sphi*sthe*spsi,
		Imag: sphi*cthe*cpsi - cphi*sthe*spsi,
		Jmag: cphi*sthe*cpsi + sphi*cthe*spsi,
		Kmag: cphi*cthe*spsi - sphi*sthe*cpsi,
	}
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	return q
}

// RPYToQuat is rpyToQuat with the scalar-first array layout of AttitudeState.Q.
func RPYToQuat(rpy [bus.NumAttitudeAxes]float64) [4]float64 {
	q := rpyToQuat(rpy)
	return [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag}
}

func quatToRPY(q quat.Number) [bus.NumAttitudeAxes]float64 {
	q0, q1, q2, q3 := q.Real, q.Imag, q.Jmag, q.Kmag
	r13 := 2 * (q1*q3 - q0*q2)
	r11 := q0*q0 + q1*q1 - q2*q2 - q3*q3
	r12 := 2 * (q1*q2 + q0*q3)
	r23 := 2 * (q2*q3 + q0*q1)
	r33 := q0*q0 - q1*q1 - q2*q2 + q3*q3

	const rad2deg = 180 / math.Pi
	var rpy [bus.NumAttitudeAxes]float64
	rpy[bus.Roll] = math.Atan2(r23, r33) * rad2deg
	rpy[bus.Pitch] = math.Asin(clamp(-r13, -1, 1)) * rad2deg
	rpy[bus.Yaw] = math.Atan2(r12, r11) * rad2deg
	return rpy
}
