package stick

import (
	"math"
	"testing"
)

func TestApplyExpo_IdentityAtZero(t *testing.T) {
	for v := -1.0; v <= 1.0; v += 0.05 {
		got := ApplyExpo(v, 0)
		if math.Abs(got-v) > 1e-12 {
			t.Fatalf("ApplyExpo(%v,0)=%v want %v", v, got, v)
		}
	}
}

func TestApplyExpo_OddSymmetry(t *testing.T) {
	for e := -100.0; e <= 100.0; e += 12.5 {
		for v := 0.0; v <= 1.0; v += 0.1 {
			pos := ApplyExpo(v, e)
			neg := ApplyExpo(-v, e)
			if math.Abs(pos+neg) > 1e-12 {
				t.Fatalf("expo=%v v=%v: f(v)=%v f(-v)=%v", e, v, pos, neg)
			}
		}
	}
}

func TestApplyExpo_EndpointsAndBounds(t *testing.T) {
	for _, e := range []float64{-100, -30, 0, 30, 100} {
		if got := ApplyExpo(1, e); got != 1 {
			t.Fatalf("ApplyExpo(1,%v)=%v want 1", e, got)
		}
		if got := ApplyExpo(-1, e); got != -1 {
			t.Fatalf("ApplyExpo(-1,%v)=%v want -1", e, got)
		}
		if got := ApplyExpo(0, e); got != 0 {
			t.Fatalf("ApplyExpo(0,%v)=%v want 0", e, got)
		}
	}
	// expo=100 clamps the exponent to 4.
	if got, want := ApplyExpo(0.5, 100), math.Pow(0.5, 4); math.Abs(got-want) > 1e-9 {
		t.Fatalf("ApplyExpo(0.5,100)=%v want %v", got, want)
	}
	// Positive expo softens the center.
	if ApplyExpo(0.5, 50) >= 0.5 {
		t.Fatalf("positive expo should reduce mid-stick")
	}
	if ApplyExpo(0.5, -50) <= 0.5 {
		t.Fatalf("negative expo should increase mid-stick")
	}
}

func TestTiltCompensator(t *testing.T) {
	var tc TiltCompensator

	r, y := tc.Apply(90, 0.5, 0.25)
	if math.Abs(r-0.25) > 1e-9 || math.Abs(y+0.5) > 1e-9 {
		t.Fatalf("90deg: roll=%v yaw=%v want 0.25,-0.5", r, y)
	}

	r, y = tc.Apply(45, 1, 1)
	if r != 1 {
		t.Fatalf("roll=%v want clamp to 1", r)
	}
	if math.Abs(y) > 1e-9 {
		t.Fatalf("yaw=%v want 0", y)
	}
	if tc.angle != 45 {
		t.Fatalf("cached angle=%v want 45", tc.angle)
	}
}
