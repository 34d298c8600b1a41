package alarm

import (
	"log"
	"time"

	"github.com/dbehnke/antitheft/internal/hal"
	"github.com/dbehnke/antitheft/internal/protocol"
)

// Default timing and pattern values
const (
	DefaultArmStabilize      = 1500 * time.Millisecond
	DefaultVibrationDebounce = 800 * time.Millisecond
	DefaultAlarmDuration     = 3000 * time.Millisecond

	DefaultArmBlinks       = 1
	DefaultDisarmBlinks    = 2
	DefaultLocateBlinks    = 5
	DefaultVibrationBlinks = 10
)

// Store persists the non-transient arming state.
type Store interface {
	Load() State
	Save(state State) error
}

// Signaler runs blink/beep patterns. Starting a pattern replaces the running one.
type Signaler interface {
	Start(times int, now time.Time)
}

// Transition is reported to the Observer after every state change.
type Transition struct {
	From  State
	To    State
	Cause Cause
	At    time.Time
}

// Observer receives transitions. It is called on the poll goroutine and must
// return immediately.
type Observer interface {
	OnTransition(tr Transition)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(tr Transition)

// OnTransition calls f
func (f ObserverFunc) OnTransition(tr Transition) { f(tr) }

// Patterns holds the number of pulses for each signal
type Patterns struct {
	Arm       int
	Disarm    int
	Locate    int
	Vibration int
}

// Timing holds the state machine's timer durations
type Timing struct {
	ArmStabilize      time.Duration
	VibrationDebounce time.Duration
	AlarmDuration     time.Duration
}

// Options configures a Controller. Zero fields take the defaults.
type Options struct {
	Patterns Patterns
	Timing   Timing
	Debug    bool
}

// DefaultOptions returns the stock timings and pattern counts
func DefaultOptions() Options {
	return Options{
		Patterns: Patterns{
			Arm:       DefaultArmBlinks,
			Disarm:    DefaultDisarmBlinks,
			Locate:    DefaultLocateBlinks,
			Vibration: DefaultVibrationBlinks,
		},
		Timing: Timing{
			ArmStabilize:      DefaultArmStabilize,
			VibrationDebounce: DefaultVibrationDebounce,
			AlarmDuration:     DefaultAlarmDuration,
		},
	}
}

func (o *Options) applyDefaults() {
	d := DefaultOptions()
	if o.Patterns.Arm <= 0 {
		o.Patterns.Arm = d.Patterns.Arm
	}
	if o.Patterns.Disarm <= 0 {
		o.Patterns.Disarm = d.Patterns.Disarm
	}
	if o.Patterns.Locate <= 0 {
		o.Patterns.Locate = d.Patterns.Locate
	}
	if o.Patterns.Vibration <= 0 {
		o.Patterns.Vibration = d.Patterns.Vibration
	}
	if o.Timing.ArmStabilize <= 0 {
		o.Timing.ArmStabilize = d.Timing.ArmStabilize
	}
	if o.Timing.VibrationDebounce <= 0 {
		o.Timing.VibrationDebounce = d.Timing.VibrationDebounce
	}
	if o.Timing.AlarmDuration <= 0 {
		o.Timing.AlarmDuration = d.Timing.AlarmDuration
	}
}

// Stats counts controller activity since start
type Stats struct {
	Arms       uint32
	Disarms    uint32
	Alarms     uint32
	Locates    uint32
	Ignored    uint32 // unknown opcodes
	Malformed  uint32 // datagrams of the wrong size
	SaveErrors uint32
}

// Controller is the receiver's state machine. It is not safe for concurrent
// use: OnDatagram, OnCommand and Tick must all run on the poll goroutine.
type Controller struct {
	state    State
	relay    hal.Line
	signals  Signaler
	store    Store
	observer Observer
	opts     Options

	stabilize   *Timer
	vibDebounce *Timer
	alarmTimer  *Timer

	stats Stats
}

// NewController restores the persisted state and drives the starter-disable
// relay to match it. A restored ARMED state gets a fresh stabilization window
// starting at now.
func NewController(relay hal.Line, signals Signaler, store Store, opts Options, now time.Time) *Controller {
	opts.applyDefaults()

	c := &Controller{
		state:       DISARMED,
		relay:       relay,
		signals:     signals,
		store:       store,
		opts:        opts,
		stabilize:   NewTimer(opts.Timing.ArmStabilize),
		vibDebounce: NewTimer(opts.Timing.VibrationDebounce),
		alarmTimer:  NewTimer(opts.Timing.AlarmDuration),
	}

	if store != nil {
		if restored := store.Load(); restored.Persistable() {
			c.state = restored
		}
	}

	if c.state == ARMED {
		c.relay.Set(hal.HIGH)
		c.stabilize.Start(now)
	} else {
		c.relay.Set(hal.LOW)
	}

	log.Printf("[Alarm] Restored state %s", c.state)
	return c
}

// SetObserver installs the transition hook
func (c *Controller) SetObserver(o Observer) {
	c.observer = o
}

// OnDatagram decodes a received datagram and applies it. Malformed datagrams
// are dropped without any state change and the decode error is returned.
func (c *Controller) OnDatagram(data []byte, now time.Time) (protocol.Command, error) {
	cmd, err := protocol.Decode(data)
	if err != nil {
		c.stats.Malformed++
		return cmd, err
	}
	c.OnCommand(cmd, now)
	return cmd, nil
}

// OnCommand applies a decoded command
func (c *Controller) OnCommand(cmd protocol.Command, now time.Time) {
	switch cmd.Opcode {
	case protocol.OPCODE_TOGGLE_ARM:
		if c.state == DISARMED {
			c.arm(now)
		} else {
			c.disarm(now)
		}
	case protocol.OPCODE_LOCATE:
		c.stats.Locates++
		c.signals.Start(c.opts.Patterns.Locate, now)
	default:
		c.stats.Ignored++
		if c.opts.Debug {
			log.Printf("[Alarm] Ignoring %s", cmd)
		}
	}
}

// Tick samples the vibration input (active-low) and advances the timers.
func (c *Controller) Tick(now time.Time, vibration bool) {
	if c.state == ARMED &&
		c.stabilize.HasExpired(now) &&
		vibration == hal.LOW &&
		!c.vibDebounce.Within(now) {
		c.vibDebounce.Start(now)
		c.alarmTimer.Start(now)
		c.stats.Alarms++
		c.signals.Start(c.opts.Patterns.Vibration, now)
		c.transition(ALARM, CauseVibration, now)
	}

	if c.state == ALARM && c.alarmTimer.HasExpired(now) {
		c.alarmTimer.Stop()
		c.transition(ARMED, CauseAlarmTimeout, now)
	}
}

func (c *Controller) arm(now time.Time) {
	c.relay.Set(hal.HIGH)
	c.stabilize.Start(now)
	c.stats.Arms++
	c.signals.Start(c.opts.Patterns.Arm, now)
	c.transition(ARMED, CauseToggle, now)
	c.save()
}

// disarm always wins, including mid-alarm; the disarm pattern preempts any
// vibration pattern still running.
func (c *Controller) disarm(now time.Time) {
	c.relay.Set(hal.LOW)
	c.alarmTimer.Stop()
	c.stats.Disarms++
	c.signals.Start(c.opts.Patterns.Disarm, now)
	c.transition(DISARMED, CauseToggle, now)
	c.save()
}

func (c *Controller) transition(to State, cause Cause, now time.Time) {
	from := c.state
	c.state = to

	if c.opts.Debug {
		log.Printf("[Alarm] %s -> %s (%s)", from, to, cause)
	}
	if c.observer != nil {
		c.observer.OnTransition(Transition{From: from, To: to, Cause: cause, At: now})
	}
}

func (c *Controller) save() {
	if c.store == nil {
		return
	}
	if err := c.store.Save(c.state); err != nil {
		c.stats.SaveErrors++
		log.Printf("[Alarm] Failed to persist state %s: %v", c.state, err)
	}
}

// State returns the current arming state
func (c *Controller) State() State { return c.state }

// Stats returns a copy of the activity counters
func (c *Controller) Stats() Stats { return c.stats }

// Options returns the effective options
func (c *Controller) Options() Options { return c.opts }

// AlarmRemaining returns the time left before ALARM reverts to ARMED
func (c *Controller) AlarmRemaining(now time.Time) time.Duration {
	if c.state != ALARM {
		return 0
	}
	return c.alarmTimer.Remaining(now)
}

// Stabilizing reports whether vibration sensing is still suppressed after arming
func (c *Controller) Stabilizing(now time.Time) bool {
	return c.state == ARMED && !c.stabilize.HasExpired(now)
}
