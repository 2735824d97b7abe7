package mocap

import (
	"testing"

	"flightstab/internal/bus"
)

func TestParseLine_PositionVelocity(t *testing.T) {
	s, ok, err := ParseLine(" 1.5,-2,-0.75, 0.1,0.2,-0.3,1 \r")
	if err != nil || !ok {
		t.Fatalf("ParseLine() ok=%v err=%v", ok, err)
	}
	if s.Position != [3]float64{1.5, -2, -0.75} {
		t.Fatalf("pos=%v", s.Position)
	}
	if s.Velocity != [3]float64{0.1, 0.2, -0.3} {
		t.Fatalf("vel=%v", s.Velocity)
	}
	if !s.Valid || s.HasAttitude {
		t.Fatalf("valid=%v hasAttitude=%v", s.Valid, s.HasAttitude)
	}
}

func TestParseLine_WithAttitude(t *testing.T) {
	s, ok, err := ParseLine("0,0,0,0,0,0,false,5,-10,90")
	if err != nil || !ok {
		t.Fatalf("ParseLine() ok=%v err=%v", ok, err)
	}
	if s.Valid {
		t.Fatalf("expected invalid sample")
	}
	if !s.HasAttitude || s.Attitude != [3]float64{5, -10, 90} {
		t.Fatalf("attitude=%v has=%v", s.Attitude, s.HasAttitude)
	}
}

func TestParseLine_SkipsBlankAndComments(t *testing.T) {
	for _, line := range []string{"", "   ", "# north,east,down"} {
		_, ok, err := ParseLine(line)
		if ok || err != nil {
			t.Fatalf("line %q: ok=%v err=%v", line, ok, err)
		}
	}
}

func TestParseLine_Errors(t *testing.T) {
	cases := []string{
		"1,2,3",
		"1,2,3,4,5,6,1,7",
		"1,2,x,4,5,6,1",
		"1,2,3,4,5,6,maybe",
		"1,2,3,4,5,6,1,0,0,yaw",
		"NaN,0,-1,0,0,0,true",
		"0,0,-1,0,+Inf,0,true",
		"0,0,-1,0,0,0,true,0,-Inf,0",
	}
	for _, line := range cases {
		if _, _, err := ParseLine(line); err == nil {
			t.Fatalf("line %q: expected error", line)
		}
	}
}

func TestParsePilotLine(t *testing.T) {
	if !IsPilotLine("  rc,1,stabilized2,0,0,0,0.5,0.1") || IsPilotLine("1,2,3,4,5,6,1") {
		t.Fatalf("IsPilotLine mismatch")
	}
	p, err := ParsePilotLine("rc,1,stabilized2,0.25,-0.5,0,0.6,0.2")
	if err != nil {
		t.Fatalf("ParsePilotLine() error: %v", err)
	}
	if !p.Status.Armed || p.Status.FlightMode != bus.FlightModeStabilized2 {
		t.Fatalf("status=%+v", p.Status)
	}
	want := bus.ManualCommand{Roll: 0.25, Pitch: -0.5, Yaw: 0, Thrust: 0.6, Throttle: 0.2}
	if p.Command != want {
		t.Fatalf("command=%+v want %+v", p.Command, want)
	}
}

func TestParsePilotLine_Errors(t *testing.T) {
	cases := []string{
		"rc,1,stabilized2,0,0,0,0.5",
		"rc,yes,stabilized2,0,0,0,0.5,0",
		"rc,1,cruise,0,0,0,0.5,0",
		"rc,1,stabilized1,1.5,0,0,0.5,0",
		"rc,1,stabilized1,0,0,0,-0.1,0",
		"rc,1,stabilized1,0,0,0,0.5,2",
		"rc,true,stabilized1,0,0,0,NaN,0",
		"rc,true,stabilized1,nan,0,0,0.5,0",
		"rc,true,stabilized1,0,0,Inf,0.5,0",
	}
	for _, line := range cases {
		if _, err := ParsePilotLine(line); err == nil {
			t.Fatalf("line %q: expected error", line)
		}
	}
}
