package flight

import "time"

// DeltaTime turns irregular task invocation times into a stable loop period
// by clamping each raw interval and low-pass filtering it.
type DeltaTime struct {
	min, max, alpha float64
	average         float64
	last            time.Time
}

// NewDeltaTime starts the average at expected seconds.
func NewDeltaTime(expected, min, max, alpha float64) DeltaTime {
	return DeltaTime{min: min, max: max, alpha: alpha, average: expected}
}

// Average records an invocation at now and returns the filtered period in
// seconds. The first call only stores the timestamp.
func (d *DeltaTime) Average(now time.Time) float64 {
	if d.last.IsZero() {
		d.last = now
		return d.average
	}
	raw := now.Sub(d.last).Seconds()
	d.last = now
	if raw < d.min {
		raw = d.min
	}
	if raw > d.max {
		raw = d.max
	}
	d.average = d.average*(1-d.alpha) + raw*d.alpha
	return d.average
}
