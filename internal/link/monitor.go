// Package link derives the connected/disconnected status of the TX peer from
// the arrival time of its datagrams and drives the status indicator.
package link

import (
	"time"

	"github.com/dbehnke/antitheft/internal/hal"
)

const (
	DefaultTimeout = 3000 * time.Millisecond
	DefaultBlink   = 500 * time.Millisecond
)

// Monitor tracks the last datagram time. There is no hysteresis: the link is
// connected while the last datagram is younger than the timeout.
type Monitor struct {
	timeout   time.Duration
	blink     time.Duration
	indicator hal.Line

	lastDatagram time.Time
	seen         bool

	ledOn      bool
	lastToggle time.Time
	connected  bool
}

// NewMonitor creates a monitor driving indicator
func NewMonitor(timeout, blink time.Duration, indicator hal.Line) *Monitor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if blink <= 0 {
		blink = DefaultBlink
	}
	return &Monitor{timeout: timeout, blink: blink, indicator: indicator}
}

// Touch records a well-formed datagram, whatever its opcode
func (m *Monitor) Touch(now time.Time) {
	m.lastDatagram = now
	m.seen = true
}

// Connected reports whether a datagram arrived within the timeout
func (m *Monitor) Connected(now time.Time) bool {
	if !m.seen {
		return false
	}
	return now.Sub(m.lastDatagram) < m.timeout
}

// Tick updates the indicator: steady on while connected, a free-running
// square wave while disconnected. It returns true in changed when the
// connected status differs from the previous tick.
func (m *Monitor) Tick(now time.Time) (connected, changed bool) {
	connected = m.Connected(now)
	changed = connected != m.connected
	m.connected = connected

	if connected {
		m.indicator.Set(hal.HIGH)
		return connected, changed
	}

	if now.Sub(m.lastToggle) >= m.blink {
		m.lastToggle = now
		m.ledOn = !m.ledOn
		m.indicator.Set(m.ledOn)
	}

	return connected, changed
}

// LastDatagram returns the time of the last datagram and whether one was seen
func (m *Monitor) LastDatagram() (time.Time, bool) {
	return m.lastDatagram, m.seen
}
