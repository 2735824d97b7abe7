package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"flightstab/internal/alarm"
	"flightstab/internal/bus"
	"flightstab/internal/config"
	"flightstab/internal/flight"
	"flightstab/internal/mocap"
	"flightstab/internal/rt"
)

type liveRuntime struct {
	cfg    config.Config
	alarms *alarm.Set
	bus    *bus.Bus
	loop   *flight.Loop
	mocap  *mocap.Service

	started time.Time
	wg      sync.WaitGroup
}

func newLiveRuntime(ctx context.Context, cfg config.Config) (*liveRuntime, error) {
	c := cfg
	if err := config.DefaultAndValidate(&c); err != nil {
		return nil, err
	}

	var ind alarm.Indicator
	if c.Alarm.IndicatorPin > 0 {
		var err error
		ind, err = alarm.OpenGPIOIndicator(c.Alarm.IndicatorPin)
		if err != nil {
			// Keep flying without the indicator; alarms are still logged.
			log.Printf("alarm indicator init failed pin=%d: %v", c.Alarm.IndicatorPin, err)
			ind = nil
		}
	}
	alarms := alarm.NewSet(ind)

	rc := rtConfig(c)
	b, l, err := newControl(c, alarms, func() error { return rt.PinThread(rc) })
	if err != nil {
		_ = alarms.Close()
		return nil, err
	}

	r := &liveRuntime{
		cfg:     c,
		alarms:  alarms,
		bus:     b,
		loop:    l,
		started: time.Now(),
	}

	r.mocap = mocap.New(mocap.Config{
		Enable:     c.Mocap.Enable,
		Device:     c.Mocap.Device,
		Baud:       c.Mocap.Baud,
		StaleAfter: c.Mocap.StaleAfter,
	}, b, alarms)
	if err := r.mocap.Start(ctx); err != nil {
		r.Close()
		return nil, fmt.Errorf("mocap start: %w", err)
	}
	if !c.Mocap.Enable {
		log.Printf("mocap disabled: no sensor events, outer loop and altitude tasks stay idle")
	}
	return r, nil
}

// Run blocks in the control loop until ctx is done. A status line is logged
// every status.interval.
func (r *liveRuntime) Run(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}
	statusCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		t := time.NewTicker(r.cfg.Status.Interval)
		defer t.Stop()
		for {
			select {
			case <-statusCtx.Done():
				return
			case <-t.C:
				log.Printf("%s", r.statusLine())
			}
		}
	}()

	err := r.loop.Run(ctx, r.mocap.Events())
	cancel()
	r.wg.Wait()
	return err
}

func (r *liveRuntime) statusLine() string {
	line := statusLine(time.Since(r.started), r.loop.Snapshot(), r.bus.PositionState(), r.alarms.Highest())
	if r.cfg.Mocap.Enable {
		m := r.mocap.Snapshot()
		line += fmt.Sprintf(" mocap_samples=%d stale=%v", m.Samples, m.Stale)
		if m.DroppedEvents > 0 {
			line += fmt.Sprintf(" dropped=%d", m.DroppedEvents)
		}
	}
	if err := r.alarms.IndicatorErr(); err != nil {
		line += fmt.Sprintf(" indicator_err=%q", err.Error())
	}
	return line
}

func (r *liveRuntime) Close() {
	if r == nil {
		return
	}
	if r.mocap != nil {
		r.mocap.Close()
	}
	if r.alarms != nil {
		_ = r.alarms.Close()
	}
}
