// Package bench measures engine throughput over a recorded dataset.
package bench

import "time"

// Timer measures one interval. While running, readings are taken against
// the current time.
type Timer struct {
	start   time.Time
	stop    time.Time
	running bool
}

// Start resets the timer and starts it.
func (t *Timer) Start() {
	t.start = time.Now()
	t.stop = t.start
	t.running = true
}

// Stop freezes the reading. Stopping a stopped timer is a no-op.
func (t *Timer) Stop() {
	if t.running {
		t.stop = time.Now()
		t.running = false
	}
}

// Elapsed returns the measured duration.
func (t *Timer) Elapsed() time.Duration {
	if t.running {
		return time.Since(t.start)
	}
	return t.stop.Sub(t.start)
}

// Microseconds returns the elapsed time in whole microseconds.
func (t *Timer) Microseconds() int64 { return t.Elapsed().Microseconds() }

// Milliseconds returns the elapsed time in fractional milliseconds.
func (t *Timer) Milliseconds() float64 { return float64(t.Microseconds()) / 1e3 }

// Seconds returns the elapsed time in fractional seconds.
func (t *Timer) Seconds() float64 { return float64(t.Microseconds()) / 1e6 }
