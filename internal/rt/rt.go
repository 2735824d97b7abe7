// Package rt applies the process-level settings the control loop wants on a
// flight computer: locked memory and a pinned CPU for the loop thread.
package rt

import (
	"fmt"
	"log"
)

type Config struct {
	LockMemory bool
	// CPU pins the calling thread when PinCPU is set.
	PinCPU bool
	CPU    int
}

var (
	lockMemoryFn = lockMemory
	pinThreadFn  = pinThread
)

// ApplyProcess locks current and future memory when configured.
func ApplyProcess(cfg Config) error {
	if !cfg.LockMemory {
		return nil
	}
	if err := lockMemoryFn(); err != nil {
		return fmt.Errorf("rt: lock memory: %w", err)
	}
	log.Printf("rt: memory locked")
	return nil
}

// PinThread pins the calling OS thread to cfg.CPU. The caller must already
// hold its goroutine on that thread with runtime.LockOSThread.
func PinThread(cfg Config) error {
	if !cfg.PinCPU {
		return nil
	}
	if cfg.CPU < 0 {
		return fmt.Errorf("rt: cpu must be >= 0")
	}
	if err := pinThreadFn(cfg.CPU); err != nil {
		return fmt.Errorf("rt: pin cpu %d: %w", cfg.CPU, err)
	}
	log.Printf("rt: loop thread pinned to cpu %d", cfg.CPU)
	return nil
}
