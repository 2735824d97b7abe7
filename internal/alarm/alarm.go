// Package alarm is the fault-reporting facility used by the control tasks.
package alarm

import (
	"fmt"
	"log"
	"sync"
)

type Severity uint8

const (
	OK Severity = iota
	Warning
	Error
	Critical
)

func (s Severity) String() string {
	switch s {
	case OK:
		return "ok"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Critical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", uint8(s))
	}
}

type ID uint8

const (
	ManualControl ID = iota
	Stabilization
	PositionSource

	numIDs
)

func (id ID) String() string {
	switch id {
	case ManualControl:
		return "manualcontrol"
	case Stabilization:
		return "stabilization"
	case PositionSource:
		return "positionsource"
	default:
		return fmt.Sprintf("alarm(%d)", uint8(id))
	}
}

// Reporter is what control tasks need to raise or clear an alarm.
type Reporter interface {
	Set(id ID, sev Severity)
}

// Set holds the current level of every alarm and drives an optional indicator
// that is on while any alarm is Critical.
//
// Safe for concurrent use.
type Set struct {
	mu     sync.Mutex
	levels [numIDs]Severity
	ind    Indicator
	indOn  bool
	indErr error
}

func NewSet(ind Indicator) *Set {
	return &Set{ind: ind}
}

func (s *Set) Set(id ID, sev Severity) {
	if id >= numIDs {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.levels[id]
	if prev == sev {
		return
	}
	s.levels[id] = sev
	log.Printf("alarm: %s=%s (was %s)", id, sev, prev)
	s.updateIndicatorLocked()
}

func (s *Set) Get(id ID) Severity {
	if id >= numIDs {
		return OK
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels[id]
}

// Highest returns the most severe active level.
func (s *Set) Highest() Severity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highestLocked()
}

// IndicatorErr returns the last error reported by the indicator, if any.
func (s *Set) IndicatorErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indErr
}

func (s *Set) highestLocked() Severity {
	hi := OK
	for _, l := range s.levels {
		if l > hi {
			hi = l
		}
	}
	return hi
}

func (s *Set) updateIndicatorLocked() {
	if s.ind == nil {
		return
	}
	on := s.highestLocked() == Critical
	if on == s.indOn {
		return
	}
	if err := s.ind.SetOn(on); err != nil {
		s.indErr = err
		log.Printf("alarm: indicator update failed: %v", err)
		return
	}
	s.indOn = on
	s.indErr = nil
}

// Close releases the indicator, leaving it off.
func (s *Set) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ind == nil {
		return nil
	}
	err := s.ind.Close()
	s.ind = nil
	return err
}
