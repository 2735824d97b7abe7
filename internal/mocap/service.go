package mocap

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"flightstab/internal/alarm"
	"flightstab/internal/bus"
	"flightstab/internal/flight"
	"flightstab/internal/outerloop"
)

type Config struct {
	Enable     bool
	Device     string
	Baud       int
	StaleAfter time.Duration
}

type Snapshot struct {
	Enabled bool   `json:"enabled"`
	Device  string `json:"device,omitempty"`
	Baud    int    `json:"baud,omitempty"`

	Valid bool `json:"valid"`
	Stale bool `json:"stale"`

	Samples       uint64    `json:"samples"`
	PilotSamples  uint64    `json:"pilot_samples"`
	ParseErrors   uint64    `json:"parse_errors"`
	DroppedEvents uint64    `json:"dropped_events"`
	LastSample    time.Time `json:"last_sample,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

type Service struct {
	cfg    Config
	bus    *bus.Bus
	alarms alarm.Reporter
	events chan flight.Event
	now    func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	mu     sync.Mutex
	closer io.Closer
	snap   Snapshot
	last   time.Time
	pos    bus.PositionState
	vel    bus.VelocityState
}

func New(cfg Config, b *bus.Bus, alarms alarm.Reporter) *Service {
	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 200 * time.Millisecond
	}
	return &Service{
		cfg:    cfg,
		bus:    b,
		alarms: alarms,
		events: make(chan flight.Event, 16),
		now:    time.Now,
		snap:   Snapshot{Enabled: cfg.Enable, Device: cfg.Device, Baud: cfg.Baud},
	}
}

// Events carries one notification per published state update.
func (s *Service) Events() <-chan flight.Event {
	return s.events
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("mocap service is nil")
	}
	if !s.cfg.Enable {
		return nil
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	port, err := openPortFn(s.cfg.Device, s.cfg.Baud)
	if err != nil {
		s.snap.LastError = fmt.Sprintf("mocap open failed device=%s baud=%d: %v", s.cfg.Device, s.cfg.Baud, err)
		return err
	}
	s.closer = port
	s.last = s.now()

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		defer func() { _ = port.Close() }()
		log.Printf("mocap enabled device=%s baud=%d", s.cfg.Device, s.cfg.Baud)
		s.readLoop(childCtx, port)
	}()
	go func() {
		defer s.wg.Done()
		s.watchdog(childCtx)
	}()
	return nil
}

func (s *Service) readLoop(ctx context.Context, r io.Reader) {
	scanner := bufio.NewScanner(retryReader{ctx: ctx, r: r})
	scanner.Buffer(make([]byte, 0, 256), 4096)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		s.HandleLine(scanner.Text())
	}
	if ctx.Err() != nil {
		return
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	s.setError(fmt.Sprintf("mocap read stopped: %v", err))
	log.Printf("mocap: read stopped: %v", err)
}

// HandleLine decodes one feed line and publishes it.
func (s *Service) HandleLine(line string) {
	if IsPilotLine(line) {
		s.handlePilot(line)
		return
	}
	sample, ok, err := ParseLine(line)
	if err != nil {
		s.mu.Lock()
		s.snap.ParseErrors++
		s.snap.LastError = err.Error()
		s.mu.Unlock()
		return
	}
	if !ok {
		return
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = now
	s.pos = bus.PositionState{NED: sample.Position, Valid: sample.Valid}
	s.vel = bus.VelocityState{NED: sample.Velocity, Valid: sample.Valid}
	s.bus.SetPositionState(s.pos)
	s.bus.SetVelocityState(s.vel)

	if s.snap.Stale {
		log.Printf("mocap: feed resumed")
	}
	s.snap.Stale = false
	s.snap.Valid = sample.Valid
	s.snap.Samples++
	s.snap.LastSample = now
	if sample.Valid {
		s.report(alarm.OK)
	} else {
		s.report(alarm.Warning)
	}
	s.emitLocked(flight.Event{Kind: flight.VelocityUpdated, At: now})

	if sample.HasAttitude {
		att := bus.AttitudeState{
			Roll:  sample.Attitude[bus.Roll],
			Pitch: sample.Attitude[bus.Pitch],
			Yaw:   sample.Attitude[bus.Yaw],
			Q:     outerloop.RPYToQuat(sample.Attitude),
		}
		s.bus.SetAttitudeState(att)
		s.emitLocked(flight.Event{Kind: flight.AttitudeUpdated, At: now})
	}
}

// handlePilot publishes relayed stick input. The manual task picks it up on
// its own tick, so no event is emitted.
func (s *Service) handlePilot(line string) {
	p, err := ParsePilotLine(line)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.snap.ParseErrors++
		s.snap.LastError = err.Error()
		return
	}
	s.bus.SetManualCommand(p.Command)
	s.bus.SetFlightStatus(p.Status)
	s.snap.PilotSamples++
}

func (s *Service) watchdog(ctx context.Context) {
	t := time.NewTicker(s.cfg.StaleAfter / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.CheckStale()
		}
	}
}

// CheckStale invalidates the published position and velocity once no sample
// has arrived within StaleAfter.
func (s *Service) CheckStale() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Stale || now.Sub(s.last) <= s.cfg.StaleAfter {
		return
	}
	s.snap.Stale = true
	s.snap.Valid = false
	s.pos.Valid = false
	s.vel.Valid = false
	s.bus.SetPositionState(s.pos)
	s.bus.SetVelocityState(s.vel)
	s.report(alarm.Error)
	log.Printf("mocap: feed stale after %s", now.Sub(s.last).Round(time.Millisecond))
	s.emitLocked(flight.Event{Kind: flight.VelocityUpdated, At: now})
}

func (s *Service) emitLocked(ev flight.Event) {
	select {
	case s.events <- ev:
	default:
		s.snap.DroppedEvents++
	}
}

func (s *Service) report(sev alarm.Severity) {
	if s.alarms != nil {
		s.alarms.Set(alarm.PositionSource, sev)
	}
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	closer := s.closer
	s.cancel = nil
	s.closer = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if closer != nil {
		_ = closer.Close()
	}
	s.wg.Wait()
	s.closeOnce.Do(func() { close(s.events) })
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *Service) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.LastError = msg
}

// retryReader hides the empty reads a port returns on read timeout so the
// scanner does not give up with io.ErrNoProgress.
type retryReader struct {
	ctx context.Context
	r   io.Reader
}

func (r retryReader) Read(b []byte) (int, error) {
	for {
		n, err := r.r.Read(b)
		if n > 0 || err != nil {
			return n, err
		}
		if r.ctx.Err() != nil {
			return 0, io.EOF
		}
	}
}
