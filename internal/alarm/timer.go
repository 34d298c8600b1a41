package alarm

import "time"

// Timer is a start instant plus a duration, evaluated against the clock the
// caller passes in. It never fires on its own.
type Timer struct {
	timeout   time.Duration
	running   bool
	startTime time.Time
}

// NewTimer creates a stopped timer
func NewTimer(timeout time.Duration) *Timer {
	return &Timer{timeout: timeout}
}

// Start (re)starts the timer at now
func (t *Timer) Start(now time.Time) {
	t.running = true
	t.startTime = now
}

// Stop stops the timer
func (t *Timer) Stop() {
	t.running = false
}

// IsRunning returns true if the timer has been started and not stopped
func (t *Timer) IsRunning() bool {
	return t.running
}

// HasExpired reports whether a running timer has reached its duration
func (t *Timer) HasExpired(now time.Time) bool {
	if !t.running {
		return false
	}
	return now.Sub(t.startTime) >= t.timeout
}

// Within reports whether now falls inside the window [start, start+timeout].
// A stopped timer has no window.
func (t *Timer) Within(now time.Time) bool {
	if !t.running {
		return false
	}
	return now.Sub(t.startTime) <= t.timeout
}

// Remaining returns the time left, zero when stopped or expired
func (t *Timer) Remaining(now time.Time) time.Duration {
	if !t.running {
		return 0
	}
	remaining := t.timeout - now.Sub(t.startTime)
	if remaining < 0 {
		return 0
	}
	return remaining
}
