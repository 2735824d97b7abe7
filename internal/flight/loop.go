// Package flight schedules the control tasks on a single goroutine and
// connects them to the data bus.
package flight

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"flightstab/internal/alarm"
	"flightstab/internal/altitude"
	"flightstab/internal/bus"
	"flightstab/internal/outerloop"
	"flightstab/internal/stick"
)

const (
	dtMin   = 1.0e-6
	dtMax   = 1.0
	dtAlpha = 1.0e-2
)

type Config struct {
	// SensorRate is the attitude update rate in Hz.
	SensorRate float64
	// ManualRate is the stick task rate in Hz.
	ManualRate float64
	// OuterSkip runs the outer loop on every OuterSkip-th attitude update.
	OuterSkip int
	Strategy  outerloop.ErrorStrategy
	// ThreadSetup runs on the locked loop thread before the first task,
	// e.g. to pin it to a CPU. A failure is logged and the loop continues.
	ThreadSetup func() error
}

// EventKind tells the loop which sensor has published new state.
type EventKind uint8

const (
	AttitudeUpdated EventKind = iota
	VelocityUpdated
)

// Event is a sensor update notification. The producer must publish the
// state to the bus before sending the event.
type Event struct {
	Kind EventKind
	At   time.Time
}

type Stats struct {
	ManualCycles   uint64
	OuterCycles    uint64
	AltitudeCycles uint64
	ModeErrors     uint64
	ThrustCuts     uint64

	HoldActive bool
	OuterDT    float64
	Rate       bus.RateSetpoint
	Altitude   bus.AltitudeHoldStatus
}

// settingsCache holds the settings records last read from the bus together
// with the bus versions they were read at.
type settingsCache struct {
	modes, stab, hold, alt, neutral uint64

	Modes    bus.FlightModeSettings
	Stab     bus.StabilizationSettings
	Hold     bus.HoldSettings
	Altitude bus.AltitudeSettings
	Neutral  float64
}

// Loop owns the controller context. The task methods must all be called from
// one goroutine; Run does that. Snapshot may be called from anywhere.
type Loop struct {
	cfg    Config
	bus    *bus.Bus
	alarms alarm.Reporter

	router *stick.Router
	alt    *altitude.Controller
	outer  *outerloop.Controller

	outerDT DeltaTime
	altDT   DeltaTime

	settings settingsCache
	loaded   bool
	bank     bus.Bank
	cpusaver int

	mu    sync.RWMutex
	stats Stats
}

func New(cfg Config, b *bus.Bus, alarms alarm.Reporter) *Loop {
	if cfg.SensorRate <= 0 {
		cfg.SensorRate = 500
	}
	if cfg.ManualRate <= 0 {
		cfg.ManualRate = 50
	}
	if cfg.OuterSkip <= 0 {
		cfg.OuterSkip = 1
	}
	expected := 1 / cfg.SensorRate

	l := &Loop{
		cfg:     cfg,
		bus:     b,
		alarms:  alarms,
		router:  stick.NewRouter(),
		outerDT: NewDeltaTime(expected*float64(cfg.OuterSkip), dtMin, dtMax, dtAlpha),
		altDT:   NewDeltaTime(expected, dtMin, dtMax, dtAlpha),
	}
	l.refreshSettings()
	l.alt = altitude.New(l.settings.Altitude, l.settings.Neutral)
	l.outer = outerloop.New(cfg.Strategy, l.alt)
	return l
}

func (l *Loop) Snapshot() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stats
}

func (l *Loop) update(fn func(*Stats)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(&l.stats)
}

// refreshSettings rereads any settings record whose bus version moved. Tuning
// changes reach the altitude cascade without resetting its accumulator.
func (l *Loop) refreshSettings() {
	c := &l.settings
	if v := l.bus.Version(bus.TopicFlightModeSettings); !l.loaded || v != c.modes {
		c.modes = v
		c.Modes = l.bus.FlightModeSettings()
	}
	if v := l.bus.Version(bus.TopicStabilizationSettings); !l.loaded || v != c.stab {
		c.stab = v
		c.Stab = l.bus.StabilizationSettings()
	}
	if v := l.bus.Version(bus.TopicHoldSettings); !l.loaded || v != c.hold {
		c.hold = v
		c.Hold = l.bus.HoldSettings()
	}
	altChanged := false
	if v := l.bus.Version(bus.TopicAltitudeSettings); !l.loaded || v != c.alt {
		c.alt = v
		c.Altitude = l.bus.AltitudeSettings()
		altChanged = true
	}
	if v := l.bus.Version(bus.TopicNeutralThrustOffset); !l.loaded || v != c.neutral {
		c.neutral = v
		c.Neutral = l.bus.NeutralThrustOffset()
		altChanged = true
	}
	if altChanged && l.alt != nil {
		l.alt.UpdateSettings(c.Altitude, c.Neutral)
	}
	l.loaded = true
}

// ManualControlTask shapes the stick input and publishes the stabilization
// setpoint. An unsupported flight mode raises a critical alarm and publishes
// nothing.
func (l *Loop) ManualControlTask() error {
	l.refreshSettings()
	out, err := l.router.Step(stick.Input{
		Command:  l.bus.ManualCommand(),
		Status:   l.bus.FlightStatus(),
		Modes:    l.settings.Modes,
		Stab:     l.settings.Stab,
		Hold:     l.settings.Hold,
		Position: l.bus.PositionState(),
	})
	if err != nil {
		l.alarms.Set(alarm.ManualControl, alarm.Critical)
		l.update(func(s *Stats) { s.ModeErrors++ })
		return err
	}
	l.alarms.Set(alarm.ManualControl, alarm.OK)
	if out.Publish {
		if out.HoldActive {
			l.bus.SetHoldSetpoint(out.Hold)
		}
		l.bus.SetStabilizationSetpoint(out.Setpoint)
	}
	l.update(func(s *Stats) { s.ManualCycles++ })
	return nil
}

// VelocityUpdated is the altitude task body, run on every new velocity
// sample.
func (l *Loop) VelocityUpdated(now time.Time) {
	dt := l.altDT.Average(now)
	l.refreshSettings()
	if !l.alt.Active() {
		return
	}
	l.alt.Update(altitude.Input{
		Hold:     l.bus.HoldSetpoint(),
		Position: l.bus.PositionState(),
		Velocity: l.bus.VelocityState(),
	}, dt)
	st := l.alt.Status()
	l.bus.SetAltitudeHoldStatus(st)
	l.update(func(s *Stats) {
		s.AltitudeCycles++
		s.Altitude = st
	})
}

// AttitudeUpdated is the outer loop task body. It runs on every OuterSkip-th
// attitude update.
func (l *Loop) AttitudeUpdated(now time.Time) {
	l.cpusaver++
	if (l.cpusaver-1)%l.cfg.OuterSkip != 0 {
		return
	}
	dt := l.outerDT.Average(now)
	l.refreshSettings()

	status := l.bus.FlightStatus()
	if p, ok := l.settings.Modes.Profile(status.FlightMode); ok {
		l.bank = p.Bank
	}

	out := l.outer.Step(outerloop.Input{
		Setpoint:     l.bus.StabilizationSetpoint(),
		Attitude:     l.bus.AttitudeState(),
		Status:       status,
		Throttle:     l.bus.ManualCommand().Throttle,
		Bank:         l.bank,
		Stab:         l.settings.Stab,
		HoldMode:     l.settings.Modes.HoldMode,
		HoldSetpoint: l.bus.HoldSetpoint(),
		Hold:         l.settings.Hold,
		Position:     l.bus.PositionState(),
		Velocity:     l.bus.VelocityState(),
	}, dt)

	l.bus.SetRateSetpoint(out.Rate)
	if out.SetpointChanged {
		l.bus.SetStabilizationSetpoint(out.Setpoint)
	}
	var st bus.AltitudeHoldStatus
	if out.HoldActive {
		st = l.alt.Status()
		l.bus.SetAltitudeHoldStatus(st)
	}
	l.update(func(s *Stats) {
		s.OuterCycles++
		if out.ThrustCut {
			s.ThrustCuts++
		}
		s.HoldActive = out.HoldActive
		s.OuterDT = dt
		s.Rate = out.Rate
		if out.HoldActive {
			s.Altitude = st
		}
	})
}

// Run executes the control tasks until ctx is done: the manual control task
// on its own ticker, the outer loop and altitude tasks on sensor events.
// Everything runs on the calling goroutine, locked to its OS thread.
func (l *Loop) Run(ctx context.Context, events <-chan Event) error {
	if l == nil {
		return fmt.Errorf("flight: loop is nil")
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if l.cfg.ThreadSetup != nil {
		if err := l.cfg.ThreadSetup(); err != nil {
			log.Printf("flight: thread setup: %v", err)
		}
	}

	period := time.Duration(float64(time.Second) / l.cfg.ManualRate)
	manual := time.NewTicker(period)
	defer manual.Stop()

	var lastModeErr string
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-manual.C:
			if err := l.ManualControlTask(); err != nil {
				// Log once per distinct failure; the alarm carries the state.
				if msg := err.Error(); msg != lastModeErr {
					log.Printf("flight: manual control: %v", err)
					lastModeErr = msg
				}
			} else {
				lastModeErr = ""
			}
		case ev, ok := <-events:
			if !ok {
				return errors.New("flight: sensor event stream closed")
			}
			switch ev.Kind {
			case AttitudeUpdated:
				l.AttitudeUpdated(ev.At)
			case VelocityUpdated:
				l.VelocityUpdated(ev.At)
			}
		}
	}
}
