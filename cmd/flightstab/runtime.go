package main

import (
	"flightstab/internal/alarm"
	"flightstab/internal/bus"
	"flightstab/internal/config"
	"flightstab/internal/flight"
	"flightstab/internal/outerloop"
)

// newControl builds the bus, publishes the configured settings and creates
// the control loop on top of it.
func newControl(cfg config.Config, alarms alarm.Reporter, threadSetup func() error) (*bus.Bus, *flight.Loop, error) {
	strategy, err := outerloop.StrategyByName(cfg.Loop.AttitudeError)
	if err != nil {
		return nil, nil, err
	}
	b := bus.New()
	cfg.Publish(b)
	l := flight.New(flight.Config{
		SensorRate:  cfg.Loop.SensorRateHz,
		ManualRate:  cfg.Loop.ManualRateHz,
		OuterSkip:   cfg.Loop.OuterSkip,
		Strategy:    strategy,
		ThreadSetup: threadSetup,
	}, b, alarms)
	return b, l, nil
}
