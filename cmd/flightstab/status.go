package main

import (
	"fmt"
	"strings"
	"time"

	"flightstab/internal/alarm"
	"flightstab/internal/bus"
	"flightstab/internal/flight"
)

// statusLine formats the periodic one-line summary of the control loop.
func statusLine(elapsed time.Duration, st flight.Stats, pos bus.PositionState, highest alarm.Severity) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "t=%s manual=%d outer=%d alt=%d", elapsed.Round(time.Millisecond), st.ManualCycles, st.OuterCycles, st.AltitudeCycles)
	fmt.Fprintf(&sb, " dt=%.4f", st.OuterDT)
	fmt.Fprintf(&sb, " rate=%.1f/%.1f/%.1f thrust=%.3f",
		st.Rate.Value[bus.Roll], st.Rate.Value[bus.Pitch], st.Rate.Value[bus.Yaw], st.Rate.Value[bus.Thrust])
	if st.HoldActive {
		fmt.Fprintf(&sb, " hold=%s vsp=%.2f", st.Altitude.State, st.Altitude.VelocityDesired)
	}
	if pos.Valid {
		fmt.Fprintf(&sb, " pos=%.2f/%.2f/%.2f", pos.NED[bus.North], pos.NED[bus.East], pos.NED[bus.Down])
	} else {
		sb.WriteString(" pos=invalid")
	}
	if st.ModeErrors > 0 {
		fmt.Fprintf(&sb, " mode_errors=%d", st.ModeErrors)
	}
	if st.ThrustCuts > 0 {
		fmt.Fprintf(&sb, " thrust_cuts=%d", st.ThrustCuts)
	}
	fmt.Fprintf(&sb, " alarm=%s", highest)
	return sb.String()
}
