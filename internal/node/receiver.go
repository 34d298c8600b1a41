// Package node runs the TX and RX boards: a single poll goroutine per node
// that samples inputs, services the datagram link and advances every
// non-blocking state machine.
package node

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dbehnke/antitheft/internal/alarm"
	"github.com/dbehnke/antitheft/internal/hal"
	"github.com/dbehnke/antitheft/internal/link"
	"github.com/dbehnke/antitheft/internal/network"
	"github.com/dbehnke/antitheft/internal/pattern"
	"github.com/dbehnke/antitheft/internal/protocol"
)

// DEFAULT_POLL_INTERVAL is the main loop period of both nodes
const DEFAULT_POLL_INTERVAL = 10 * time.Millisecond

// MAX_DATAGRAMS_PER_POLL bounds how many datagrams one Poll drains
const MAX_DATAGRAMS_PER_POLL = 32

// ReceiverConfig wires the RX board
type ReceiverConfig struct {
	Relay      hal.Line // starter-disable relay
	Siren      hal.Line
	TurnSignal hal.Line
	LinkLED    hal.Line
	Vibration  hal.Line // active-low sensor input

	Link  network.Datagram
	Store alarm.Store

	Options        alarm.Options
	SignalPhase    time.Duration
	ConnectTimeout time.Duration
	LinkBlink      time.Duration
	PowerOnBeeps   int
	PollInterval   time.Duration
	// StatusInterval enables a periodic status log line; zero disables it
	StatusInterval time.Duration

	// Reporter receives transitions and link edges; optional
	Reporter *Reporter
	Debug    bool
}

// Receiver is the RX node
type Receiver struct {
	cfg     ReceiverConfig
	ctrl    *alarm.Controller
	signals *pattern.Scheduler
	chirp   *pattern.Scheduler
	monitor *link.Monitor
	buf     []byte

	lastStatus time.Time
}

// NewReceiver restores the arming state, starts the power-on chirp and
// returns a receiver ready to Poll
func NewReceiver(cfg ReceiverConfig, now time.Time) *Receiver {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DEFAULT_POLL_INTERVAL
	}
	cfg.Options.Debug = cfg.Options.Debug || cfg.Debug

	r := &Receiver{
		cfg:     cfg,
		signals: pattern.NewScheduler(cfg.SignalPhase, cfg.Siren, cfg.TurnSignal),
		chirp:   pattern.NewScheduler(cfg.SignalPhase, cfg.Siren),
		monitor: link.NewMonitor(cfg.ConnectTimeout, cfg.LinkBlink, cfg.LinkLED),
		buf:     make([]byte, protocol.BUFFER_LENGTH),
	}

	r.ctrl = alarm.NewController(cfg.Relay, r.signals, cfg.Store, cfg.Options, now)
	if cfg.Reporter != nil {
		r.ctrl.SetObserver(cfg.Reporter)
	}

	r.chirp.Start(cfg.PowerOnBeeps, now)
	r.lastStatus = now

	log.Printf("RX FSM READY (NON-BLOCKING)")
	return r
}

// Poll runs one loop iteration: pending datagrams first, then the signal
// scheduler, the link indicator and the vibration sample.
func (r *Receiver) Poll(now time.Time) {
	r.drain(now)

	// Any alarm pattern takes the siren over from the power-on chirp
	if r.signals.Active() && r.chirp.Active() {
		r.chirp.Cancel()
	}
	r.chirp.Tick(now)
	r.signals.Tick(now)

	if connected, changed := r.monitor.Tick(now); changed {
		if connected {
			log.Printf("[Link] TX connected")
		} else {
			log.Printf("[Link] TX lost")
		}
		if r.cfg.Reporter != nil {
			r.cfg.Reporter.OnLink(connected, now)
		}
	}

	r.ctrl.Tick(now, r.cfg.Vibration.Get())

	if r.cfg.StatusInterval > 0 && now.Sub(r.lastStatus) >= r.cfg.StatusInterval {
		r.lastStatus = now
		log.Printf("Status: %s", r.Status(now))
	}
}

// Status summarises state, link and counters for logging
func (r *Receiver) Status(now time.Time) string {
	linkStatus := LINK_DISCONNECTED
	if r.monitor.Connected(now) {
		linkStatus = LINK_CONNECTED
	}
	state := r.ctrl.State().String()
	if r.ctrl.Stabilizing(now) {
		state += " (stabilizing)"
	} else if remaining := r.ctrl.AlarmRemaining(now); remaining > 0 {
		state += fmt.Sprintf(" (%v left)", remaining)
	}
	stats := r.ctrl.Stats()
	return fmt.Sprintf("state=%s, link=%s, arms=%d, disarms=%d, alarms=%d, locates=%d, malformed=%d",
		state, linkStatus, stats.Arms, stats.Disarms, stats.Alarms, stats.Locates, stats.Malformed)
}

func (r *Receiver) drain(now time.Time) {
	for i := 0; i < MAX_DATAGRAMS_PER_POLL; i++ {
		n, err := r.cfg.Link.Receive(r.buf)
		if err != nil {
			if !errors.Is(err, network.ErrClosed) {
				log.Printf("[Link] Receive failed: %v", err)
			}
			return
		}
		if n == 0 {
			return
		}

		cmd, err := r.ctrl.OnDatagram(r.buf[:n], now)
		if err != nil {
			if r.cfg.Debug {
				log.Printf("[Link] Dropping datagram: %v", err)
			}
			continue
		}
		r.monitor.Touch(now)

		if r.cfg.Debug {
			log.Printf("[Link] Received %s, state %s", cmd, r.ctrl.State())
		}
	}
}

// Run polls until ctx is cancelled
func (r *Receiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			r.Poll(now)
		}
	}
}

// Controller exposes the alarm state machine
func (r *Receiver) Controller() *alarm.Controller { return r.ctrl }

// Signals exposes the siren/turn-signal scheduler
func (r *Receiver) Signals() *pattern.Scheduler { return r.signals }

// Monitor exposes the link monitor
func (r *Receiver) Monitor() *link.Monitor { return r.monitor }

// Chirping reports whether the power-on chirp is still sounding
func (r *Receiver) Chirping() bool { return r.chirp.Active() }
