// Package pid implements the PID primitive shared by every control cascade.
//
// Not safe for concurrent use. Callers own one Controller per axis and call
// Apply at most once per control period so the integral stays time-consistent.
package pid

// Gains are the tunable parameters of a Controller.
//
// Tau is the derivative low-pass time constant in seconds
// (1/(2*pi*f_cutoff)). Zero disables filtering.
type Gains struct {
	Kp  float64 `yaml:"kp"`
	Ki  float64 `yaml:"ki"`
	Kd  float64 `yaml:"kd"`
	Tau float64 `yaml:"tau"`
}

type Controller struct {
	g Gains

	iAccumulator float64
	lastErr      float64
	lastDer      float64
}

func New(g Gains) Controller {
	return Controller{g: g}
}

// Configure replaces the gains and keeps the accumulated state, so tuning can
// be hot-reloaded in flight.
func (c *Controller) Configure(g Gains) {
	c.g = g
}

func (c *Controller) Gains() Gains {
	return c.g
}

// Apply returns Kp*err + I + D and advances the integral by Ki*err*dt.
//
// The integral is not bounded here; windup is handled by callers resetting
// the controller with Zero on mode changes and while grounded.
func (c *Controller) Apply(err, dt float64) float64 {
	c.iAccumulator += c.g.Ki * err * dt

	diff := err - c.lastErr
	c.lastErr = err

	dterm := 0.0
	if c.g.Kd > 0 && dt > 0 {
		raw := diff * c.g.Kd / dt
		dterm = c.lastDer + dt/(dt+c.g.Tau)*(raw-c.lastDer)
		c.lastDer = dterm
	}
	return err*c.g.Kp + c.iAccumulator + dterm
}

// Zero clears the integral and derivative history without touching gains.
func (c *Controller) Zero() {
	c.iAccumulator = 0
	c.lastErr = 0
	c.lastDer = 0
}

// Integral is the current accumulator contribution to the output.
func (c *Controller) Integral() float64 {
	return c.iAccumulator
}
