package alarm

// Indicator is a binary output (LED, buzzer) lit while a critical alarm is
// active.
//
// Close should be best-effort and leave the output off.
type Indicator interface {
	SetOn(on bool) error
	Close() error
}

// OpenGPIOIndicator drives the given BCM GPIO line as the alarm indicator.
func OpenGPIOIndicator(pin int) (Indicator, error) {
	return openGPIOFn(pin)
}
