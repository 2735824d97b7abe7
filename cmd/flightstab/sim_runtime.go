package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"time"

	"flightstab/internal/alarm"
	"flightstab/internal/bus"
	"flightstab/internal/config"
	"flightstab/internal/flight"
	"flightstab/internal/sim"
)

// simulation flies a pilot scenario against the simulated vehicle in
// virtual time. The control tasks run in the same order the live loop runs
// them: manual task on its own divider, then altitude and outer loop on
// every sensor sample.
type simulation struct {
	cfg      config.Config
	scenario *sim.Scenario
	vehicle  *sim.Vehicle
	alarms   *alarm.Set
	bus      *bus.Bus
	loop     *flight.Loop
}

type simResult struct {
	Elapsed     time.Duration
	Position    [bus.NumDirs]float64
	MaxSpeed    float64
	MaxHeight   float64
	Stats       flight.Stats
	Alarm       alarm.Severity
	FinalMode   bus.FlightMode
	FinalArmed  bool
	FinalThrust float64
}

func newSimulation(cfg config.Config, scenarioPath string) (*simulation, error) {
	script, err := sim.LoadScenarioScript(scenarioPath)
	if err != nil {
		return nil, err
	}
	sc, err := sim.NewScenario(script)
	if err != nil {
		return nil, err
	}
	return newSimulationFromScenario(cfg, sc)
}

func newSimulationFromScenario(cfg config.Config, sc *sim.Scenario) (*simulation, error) {
	alarms := alarm.NewSet(nil)
	b, l, err := newControl(cfg, alarms, nil)
	if err != nil {
		return nil, err
	}
	return &simulation{
		cfg:      cfg,
		scenario: sc,
		vehicle:  sim.NewVehicle(sc.Vehicle()),
		alarms:   alarms,
		bus:      b,
		loop:     l,
	}, nil
}

// Run steps the simulation for d, or the scenario duration when d is zero.
func (s *simulation) Run(ctx context.Context, d time.Duration) (simResult, error) {
	if d <= 0 {
		d = s.scenario.Duration()
	}
	if d <= 0 {
		return simResult{}, fmt.Errorf("simulation duration must be > 0")
	}
	step := time.Duration(float64(time.Second) / s.cfg.Loop.SensorRateHz)
	if step <= 0 {
		return simResult{}, fmt.Errorf("loop.sensor_rate_hz too high for simulation")
	}
	manualEvery := int(math.Round(s.cfg.Loop.SensorRateHz / s.cfg.Loop.ManualRateHz))
	if manualEvery < 1 {
		manualEvery = 1
	}
	statusEvery := int(s.cfg.Status.Interval / step)
	if statusEvery < 1 {
		statusEvery = 1
	}

	var res simResult
	var lastModeErr string
	start := time.Unix(0, 0)
	n := int(d / step)
	for i := 0; i < n; i++ {
		if i%1000 == 0 && ctx.Err() != nil {
			break
		}
		elapsed := time.Duration(i) * step
		now := start.Add(elapsed)

		ps := s.scenario.StateAt(elapsed, false)
		s.bus.SetManualCommand(ps.Command)
		s.bus.SetFlightStatus(ps.Status)
		s.bus.SetAttitudeState(s.vehicle.Attitude())
		s.bus.SetPositionState(s.vehicle.Position(ps.PositionValid))
		s.bus.SetVelocityState(s.vehicle.Velocity(ps.PositionValid))

		if i%manualEvery == 0 {
			if err := s.loop.ManualControlTask(); err != nil {
				if msg := err.Error(); msg != lastModeErr {
					log.Printf("sim t=%s manual control: %v", elapsed, err)
					lastModeErr = msg
				}
			} else {
				lastModeErr = ""
			}
		}
		s.loop.VelocityUpdated(now)
		s.loop.AttitudeUpdated(now)

		s.vehicle.Step(s.bus.RateSetpoint(), ps.Status.Armed, step)

		if v := s.vehicle.Speed(); v > res.MaxSpeed {
			res.MaxSpeed = v
		}
		if h := -s.vehicle.Position(true).NED[bus.Down]; h > res.MaxHeight {
			res.MaxHeight = h
		}
		if (i+1)%statusEvery == 0 {
			log.Printf("sim %s", statusLine(elapsed+step, s.loop.Snapshot(), s.vehicle.Position(true), s.alarms.Highest()))
		}
		res.Elapsed = elapsed + step
		res.FinalMode = ps.Status.FlightMode
		res.FinalArmed = ps.Status.Armed
	}

	res.Position = s.vehicle.Position(true).NED
	res.Stats = s.loop.Snapshot()
	res.Alarm = s.alarms.Highest()
	res.FinalThrust = s.bus.RateSetpoint().Value[bus.Thrust]
	return res, nil
}

func printSimResult(w io.Writer, r simResult) {
	fmt.Fprintf(w, "elapsed: %s\n", r.Elapsed)
	fmt.Fprintf(w, "final_mode: %s armed=%v\n", r.FinalMode, r.FinalArmed)
	fmt.Fprintf(w, "position_ned: %.3f %.3f %.3f\n", r.Position[bus.North], r.Position[bus.East], r.Position[bus.Down])
	fmt.Fprintf(w, "max_speed: %.3f\n", r.MaxSpeed)
	fmt.Fprintf(w, "max_height: %.3f\n", r.MaxHeight)
	fmt.Fprintf(w, "final_thrust: %.3f\n", r.FinalThrust)
	fmt.Fprintf(w, "manual_cycles: %d\n", r.Stats.ManualCycles)
	fmt.Fprintf(w, "outer_cycles: %d\n", r.Stats.OuterCycles)
	fmt.Fprintf(w, "altitude_cycles: %d\n", r.Stats.AltitudeCycles)
	fmt.Fprintf(w, "mode_errors: %d\n", r.Stats.ModeErrors)
	fmt.Fprintf(w, "thrust_cuts: %d\n", r.Stats.ThrustCuts)
	fmt.Fprintf(w, "highest_alarm: %s\n", r.Alarm)
}
