package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flightstab/internal/config"
	"flightstab/internal/rt"
)

func main() {
	var configPath string
	var scenarioPath string
	var duration time.Duration
	flag.StringVar(&configPath, "config", "./configs/flightstab.yaml", "Path to YAML config")
	flag.StringVar(&scenarioPath, "scenario", "", "Fly a pilot scenario YAML against the simulated vehicle instead of live inputs")
	flag.DurationVar(&duration, "duration", 0, "Simulated duration (default: the scenario's own)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if scenarioPath != "" {
		sim, err := newSimulation(cfg, scenarioPath)
		if err != nil {
			log.Fatalf("scenario load failed: %v", err)
		}
		res, err := sim.Run(ctx, duration)
		if err != nil {
			log.Fatalf("simulation failed: %v", err)
		}
		printSimResult(os.Stdout, res)
		return
	}

	if err := rt.ApplyProcess(rtConfig(cfg)); err != nil {
		// Keep flying without locked memory; it only affects latency.
		log.Printf("%v", err)
	}

	r, err := newLiveRuntime(ctx, cfg)
	if err != nil {
		log.Fatalf("runtime init failed: %v", err)
	}
	defer r.Close()

	log.Printf("flightstab starting")
	log.Printf("loop sensor_rate=%gHz manual_rate=%gHz outer_skip=%d attitude_error=%s",
		cfg.Loop.SensorRateHz, cfg.Loop.ManualRateHz, cfg.Loop.OuterSkip, cfg.Loop.AttitudeError)

	if err := r.Run(ctx); err != nil {
		log.Printf("control loop stopped: %v", err)
	}
	log.Printf("flightstab stopping")
}

func rtConfig(cfg config.Config) rt.Config {
	cpu, pin := cfg.PinnedCPU()
	return rt.Config{LockMemory: cfg.Loop.LockMemory, PinCPU: pin, CPU: cpu}
}
