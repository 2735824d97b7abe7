package altitude

import (
	"math"
	"testing"

	"flightstab/internal/bus"
	"flightstab/internal/pid"
)

func testSettings() bus.AltitudeSettings {
	return bus.AltitudeSettings{
		VelocityPID:   pid.Gains{Kp: 0.1, Ki: 0.05},
		PositionP:     1.0,
		ThrustMin:     0.1,
		ThrustMax:     0.9,
		ThrustNeutral: 0.5,
		MaxSpeedUp:    1.0,
		MaxSpeedDown:  1.0,
	}
}

func positionHold(downTarget float64) Input {
	var in Input
	in.Hold.Mode[bus.Down] = bus.HoldPosition
	in.Hold.Position[bus.Down] = downTarget
	in.Position.Valid = true
	in.Velocity.Valid = true
	return in
}

func TestHold_ReinitComputesDemandSynchronously(t *testing.T) {
	c := New(testSettings(), 0)
	in := positionHold(-0.8)

	got := c.Hold(0.6, true, in, 0.01)
	// 0.8 m below target: desired down velocity -0.8, thrust above neutral.
	if got <= 0.5 {
		t.Fatalf("thrust=%v want above neutral", got)
	}
	if !c.Active() {
		t.Fatalf("controller not active after Hold")
	}
	if c.Status().State != bus.AltitudeHold {
		t.Fatalf("state=%v want altitude_hold", c.Status().State)
	}
	if math.Abs(c.Status().VelocityDesired+0.8) > 1e-9 {
		t.Fatalf("velocity desired=%v want -0.8", c.Status().VelocityDesired)
	}
}

func TestHold_ClampsToThrustLimits(t *testing.T) {
	s := testSettings()
	s.VelocityPID.Kp = 10
	c := New(s, 0)

	if got := c.Hold(0.6, true, positionHold(-0.8), 0.01); got != 0.9 {
		t.Fatalf("thrust=%v want 0.9", got)
	}
	in := positionHold(0)
	in.Position.NED[bus.Down] = -1.5
	if got := c.Hold(0.6, true, in, 0.01); got != 0.1 {
		t.Fatalf("thrust=%v want 0.1", got)
	}
}

func TestHold_SpeedLimits(t *testing.T) {
	s := testSettings()
	s.MaxSpeedUp = 0.3
	s.MaxSpeedDown = 0.2
	c := New(s, 0)

	c.Hold(0.6, true, positionHold(-5), 0.01)
	if got := c.VelocitySetpoint(); got != -0.3 {
		t.Fatalf("up velocity=%v want -0.3", got)
	}
	c.Hold(0.6, true, positionHold(5), 0.01)
	if got := c.VelocitySetpoint(); got != 0.2 {
		t.Fatalf("down velocity=%v want 0.2", got)
	}
}

func TestHold_CutThrustWhenZero(t *testing.T) {
	s := testSettings()
	s.CutThrustWhenZero = true
	c := New(s, 0)

	c.Hold(0.6, true, positionHold(-0.8), 0.01)
	for i := 0; i < 10; i++ {
		c.Update(positionHold(-0.8), 0.01)
	}
	got := c.Hold(0, false, positionHold(-0.8), 0.01)
	if got != 0 {
		t.Fatalf("thrust=%v want 0", got)
	}
	if c.VelocitySetpoint() != 0 {
		t.Fatalf("velocity setpoint=%v want 0", c.VelocitySetpoint())
	}
	if !c.Fresh() || c.Active() {
		t.Fatalf("fresh=%v active=%v want ready for fresh activation", c.Fresh(), c.Active())
	}

	// Next activation carries no integral from before the cut.
	fresh := New(s, 0)
	in := positionHold(-0.8)
	if a, b := c.Hold(0.6, true, in, 0.01), fresh.Hold(0.6, true, in, 0.01); math.Abs(a-b) > 1e-12 {
		t.Fatalf("reactivated thrust=%v want=%v", a, b)
	}
}

func TestHold_VerticalDisabledPassesThrough(t *testing.T) {
	c := New(testSettings(), 0)
	var in Input
	in.Hold.Mode[bus.Down] = bus.HoldDisabled

	if got := c.Hold(0.35, true, in, 0.01); got != 0.35 {
		t.Fatalf("thrust=%v want 0.35", got)
	}
	if got := c.Hold(0.05, false, in, 0.01); got != 0.05 {
		t.Fatalf("thrust=%v want 0.05", got)
	}
	if c.Status().State != bus.AltitudeDirect {
		t.Fatalf("state=%v want direct", c.Status().State)
	}
}

func TestHold_VelocityMode(t *testing.T) {
	c := New(testSettings(), 0)
	var in Input
	in.Hold.Mode[bus.Down] = bus.HoldVelocity
	in.Hold.Velocity[bus.Down] = 0.2

	c.Hold(0.6, true, in, 0.01)
	if c.Status().State != bus.AltitudeVario {
		t.Fatalf("state=%v want altitude_vario", c.Status().State)
	}
	if c.VelocitySetpoint() != 0.2 {
		t.Fatalf("velocity setpoint=%v want 0.2", c.VelocitySetpoint())
	}
}

func TestUpdateSettings_KeepsAccumulator(t *testing.T) {
	c := New(testSettings(), 0)
	in := positionHold(-0.8)
	c.Hold(0.6, true, in, 0.01)
	for i := 0; i < 20; i++ {
		c.Update(in, 0.01)
	}
	before := c.velPID.Integral()
	if before == 0 {
		t.Fatalf("expected integral to build up")
	}

	s := testSettings()
	s.ThrustNeutral = 0.45
	c.UpdateSettings(s, 0.02)
	if c.velPID.Integral() != before {
		t.Fatalf("integral=%v want %v", c.velPID.Integral(), before)
	}
	if math.Abs(c.Neutral()-0.47) > 1e-12 {
		t.Fatalf("neutral=%v want 0.47", c.Neutral())
	}
}

func TestUpdate_InactiveIsNoop(t *testing.T) {
	c := New(testSettings(), 0)
	c.Update(positionHold(-0.8), 0.01)
	if c.Status() != (bus.AltitudeHoldStatus{}) {
		t.Fatalf("status=%+v want zero", c.Status())
	}

	c.Hold(0.6, true, positionHold(-0.8), 0.01)
	c.Disable()
	c.Disable()
	if c.Active() || !c.Fresh() {
		t.Fatalf("active=%v fresh=%v after Disable", c.Active(), c.Fresh())
	}
	st := c.Status()
	c.Update(positionHold(-2), 0.01)
	if c.Status() != st {
		t.Fatalf("status changed while disabled")
	}
}

func TestUpdate_NonFiniteStateKeepsLastDemand(t *testing.T) {
	c := New(testSettings(), 0)
	in := positionHold(-0.8)
	want := c.Hold(0.6, true, in, 0.01)

	bad := in
	bad.Position.NED[bus.Down] = math.NaN()
	c.Update(bad, 0.01)
	bad = in
	bad.Velocity.NED[bus.Down] = math.Inf(1)
	c.Update(bad, 0.01)
	if got := c.Hold(0.6, false, in, 0.01); got != want {
		t.Fatalf("thrust=%v want %v", got, want)
	}

	// The accumulator was not poisoned: a clean update stays finite.
	c.Update(in, 0.01)
	if got := c.Hold(0.6, false, in, 0.01); math.IsNaN(got) {
		t.Fatalf("thrust=%v after clean update", got)
	}
}
