package bus

import "sync"

// Topic identifies one record on the bus.
type Topic int

const (
	TopicManualCommand Topic = iota
	TopicFlightStatus
	TopicFlightModeSettings
	TopicStabilizationSettings
	TopicHoldSettings
	TopicAltitudeSettings
	TopicNeutralThrustOffset
	TopicStabilizationSetpoint
	TopicRateSetpoint
	TopicAttitudeState
	TopicPositionState
	TopicVelocityState
	TopicHoldSetpoint
	TopicAltitudeHoldStatus

	numTopics
)

// Bus is the in-memory data bus shared by the control tasks and their
// producers. Getters return copies; setters publish a whole record.
//
// Safe for concurrent use. The control tasks themselves are not; they rely on
// running on a single goroutine and only exchange data through the Bus.
type Bus struct {
	mu sync.RWMutex

	versions [numTopics]uint64

	manual      ManualCommand
	status      FlightStatus
	modes       FlightModeSettings
	stab        StabilizationSettings
	holdCfg     HoldSettings
	altCfg      AltitudeSettings
	neutralOff  float64
	stabDesired StabilizationSetpoint
	rate        RateSetpoint
	attitude    AttitudeState
	position    PositionState
	velocity    VelocityState
	hold        HoldSetpoint
	altStatus   AltitudeHoldStatus
}

func New() *Bus {
	return &Bus{}
}

// Version increments every time the topic is set.
func (b *Bus) Version(t Topic) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.versions[t]
}

func (b *Bus) bump(t Topic) {
	b.versions[t]++
}

func (b *Bus) ManualCommand() ManualCommand {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.manual
}

func (b *Bus) SetManualCommand(v ManualCommand) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.manual = v
	b.bump(TopicManualCommand)
}

func (b *Bus) FlightStatus() FlightStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

func (b *Bus) SetFlightStatus(v FlightStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = v
	b.bump(TopicFlightStatus)
}

func (b *Bus) FlightModeSettings() FlightModeSettings {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.modes
}

func (b *Bus) SetFlightModeSettings(v FlightModeSettings) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.modes = v
	b.bump(TopicFlightModeSettings)
}

func (b *Bus) StabilizationSettings() StabilizationSettings {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stab
}

func (b *Bus) SetStabilizationSettings(v StabilizationSettings) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stab = v
	b.bump(TopicStabilizationSettings)
}

func (b *Bus) HoldSettings() HoldSettings {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.holdCfg
}

func (b *Bus) SetHoldSettings(v HoldSettings) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.holdCfg = v
	b.bump(TopicHoldSettings)
}

func (b *Bus) AltitudeSettings() AltitudeSettings {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.altCfg
}

func (b *Bus) SetAltitudeSettings(v AltitudeSettings) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.altCfg = v
	b.bump(TopicAltitudeSettings)
}

// NeutralThrustOffset is the self-tuned hover-thrust correction added to the
// configured neutral thrust.
func (b *Bus) NeutralThrustOffset() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.neutralOff
}

func (b *Bus) SetNeutralThrustOffset(v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.neutralOff = v
	b.bump(TopicNeutralThrustOffset)
}

func (b *Bus) StabilizationSetpoint() StabilizationSetpoint {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stabDesired
}

func (b *Bus) SetStabilizationSetpoint(v StabilizationSetpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stabDesired = v
	b.bump(TopicStabilizationSetpoint)
}

func (b *Bus) RateSetpoint() RateSetpoint {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rate
}

func (b *Bus) SetRateSetpoint(v RateSetpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rate = v
	b.bump(TopicRateSetpoint)
}

func (b *Bus) AttitudeState() AttitudeState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.attitude
}

func (b *Bus) SetAttitudeState(v AttitudeState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attitude = v
	b.bump(TopicAttitudeState)
}

func (b *Bus) PositionState() PositionState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.position
}

func (b *Bus) SetPositionState(v PositionState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.position = v
	b.bump(TopicPositionState)
}

func (b *Bus) VelocityState() VelocityState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.velocity
}

func (b *Bus) SetVelocityState(v VelocityState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.velocity = v
	b.bump(TopicVelocityState)
}

func (b *Bus) HoldSetpoint() HoldSetpoint {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.hold
}

func (b *Bus) SetHoldSetpoint(v HoldSetpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hold = v
	b.bump(TopicHoldSetpoint)
}

func (b *Bus) AltitudeHoldStatus() AltitudeHoldStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.altStatus
}

func (b *Bus) SetAltitudeHoldStatus(v AltitudeHoldStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.altStatus = v
	b.bump(TopicAltitudeHoldStatus)
}
