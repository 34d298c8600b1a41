// Package pattern drives blink/beep patterns on ganged output lines without
// ever blocking the caller's poll loop.
package pattern

import (
	"time"

	"github.com/dbehnke/antitheft/internal/hal"
)

// DefaultPhase is the duration of each half-pulse
const DefaultPhase = 150 * time.Millisecond

// Scheduler runs at most one pulse job at a time over a set of lines that are
// always driven together.
type Scheduler struct {
	lines []hal.Line
	phase time.Duration

	active    bool
	on        bool
	count     int
	target    int
	lastPhase time.Time
}

// NewScheduler creates an idle scheduler over the given lines
func NewScheduler(phase time.Duration, lines ...hal.Line) *Scheduler {
	if phase <= 0 {
		phase = DefaultPhase
	}
	return &Scheduler{lines: lines, phase: phase}
}

// Start begins a pattern of times on/off pulses, replacing any job in
// progress. The lines are forced low first so no stale level survives.
func (s *Scheduler) Start(times int, now time.Time) {
	s.drive(hal.LOW)
	s.on = false
	s.count = 0
	s.lastPhase = now

	if times <= 0 {
		s.active = false
		s.target = 0
		return
	}

	s.active = true
	s.target = times * 2
}

// Tick advances the running job. It must be called on every poll iteration.
func (s *Scheduler) Tick(now time.Time) {
	if !s.active {
		return
	}
	if now.Sub(s.lastPhase) < s.phase {
		return
	}

	s.lastPhase = now
	s.on = !s.on
	s.drive(s.on)
	s.count++

	if s.count >= s.target {
		s.active = false
		s.on = false
		s.drive(hal.LOW)
	}
}

// Cancel stops any running job and forces the lines low
func (s *Scheduler) Cancel() {
	s.active = false
	s.on = false
	s.drive(hal.LOW)
}

// Active reports whether a job is running
func (s *Scheduler) Active() bool { return s.active }

// Target returns the number of half-pulses of the current or last job
func (s *Scheduler) Target() int { return s.target }

// Count returns the number of half-pulses already emitted
func (s *Scheduler) Count() int { return s.count }

// Phase returns the half-pulse duration
func (s *Scheduler) Phase() time.Duration { return s.phase }

func (s *Scheduler) drive(level bool) {
	for _, l := range s.lines {
		l.Set(level)
	}
}
