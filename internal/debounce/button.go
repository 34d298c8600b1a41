// Package debounce turns raw, bouncing button levels into single press events.
package debounce

import (
	"time"

	"github.com/dbehnke/antitheft/internal/hal"
)

// DefaultDelay is the settle interval a level change must respect
const DefaultDelay = 50 * time.Millisecond

// Button tracks one active-low push-button.
type Button struct {
	delay      time.Duration
	prev       bool
	lastChange time.Time
}

// NewButton creates a button seeded with the level currently on the line, so a
// button held down at power-up is not reported as a press.
func NewButton(initial bool, delay time.Duration) *Button {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Button{delay: delay, prev: initial}
}

// Poll feeds one raw sample and reports whether it completes a press.
// The previous level is updated on every call, so a bounce inside the delay
// window is absorbed rather than deferred.
func (b *Button) Poll(level bool, now time.Time) bool {
	pressed := false

	if level != b.prev && now.Sub(b.lastChange) >= b.delay {
		b.lastChange = now
		pressed = level == hal.LOW
	}
	b.prev = level

	return pressed
}

// Level returns the last sampled level
func (b *Button) Level() bool { return b.prev }
