package stick

import "math"

// expoBase scales expo so that expo=100 yields value^4 and expo=-100 yields
// value^0.25 (4^(1/100)).
const expoBase = 1.01395948

// ApplyExpo reshapes a stick value in [-1,1] through a signed power curve.
// Zero, the sign and both endpoints are preserved; expo is -100..100.
func ApplyExpo(value, expo float64) float64 {
	exp := clamp(math.Pow(expoBase, expo), 0.25, 4.0)
	switch {
	case value > 0:
		return clamp(math.Pow(value, exp), 0, 1)
	case value < 0:
		return clamp(-math.Pow(-value, exp), -1, 0)
	default:
		return 0
	}
}

// TiltCompensator rotates the roll/yaw stick pair for a camera tilted by a
// fixed angle. The trig values are recomputed only when the angle changes.
type TiltCompensator struct {
	angle float64
	cos   float64
	sin   float64
	valid bool
}

// Apply returns the rotated roll and yaw commands, each clamped to [-1,1].
// Rolling right adds negative yaw and yawing left adds negative roll.
func (t *TiltCompensator) Apply(angleDeg, roll, yaw float64) (float64, float64) {
	if !t.valid || t.angle != angleDeg {
		rad := angleDeg * math.Pi / 180
		t.cos = math.Cos(rad)
		t.sin = math.Sin(rad)
		t.angle = angleDeg
		t.valid = true
	}
	r := clamp(t.cos*roll+t.sin*yaw, -1, 1)
	y := clamp(t.cos*yaw-t.sin*roll, -1, 1)
	return r, y
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
