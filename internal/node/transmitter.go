package node

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/dbehnke/antitheft/internal/debounce"
	"github.com/dbehnke/antitheft/internal/hal"
	"github.com/dbehnke/antitheft/internal/network"
	"github.com/dbehnke/antitheft/internal/pattern"
	"github.com/dbehnke/antitheft/internal/protocol"
)

// DEFAULT_FEEDBACK_BLINKS is the number of LED pulses after each press
const DEFAULT_FEEDBACK_BLINKS = 3

// TransmitterConfig wires the TX board
type TransmitterConfig struct {
	ArmButton    hal.Line // active-low
	LocateButton hal.Line // active-low
	FeedbackLED  hal.Line

	Link network.Datagram

	ButtonDebounce time.Duration
	SignalPhase    time.Duration
	FeedbackBlinks int
	PollInterval   time.Duration
	Debug          bool
}

// Transmitter is the TX node
type Transmitter struct {
	cfg      TransmitterConfig
	keypad   *debounce.Keypad
	feedback *pattern.Scheduler

	sent   atomic.Uint32
	failed atomic.Uint32
}

// NewTransmitter samples the buttons for their baseline and installs the
// send-status handler on the link
func NewTransmitter(cfg TransmitterConfig) *Transmitter {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DEFAULT_POLL_INTERVAL
	}
	if cfg.FeedbackBlinks <= 0 {
		cfg.FeedbackBlinks = DEFAULT_FEEDBACK_BLINKS
	}

	t := &Transmitter{
		cfg: cfg,
		keypad: debounce.NewKeypad(cfg.ButtonDebounce,
			debounce.Key{Name: "ARM", Line: cfg.ArmButton, Opcode: protocol.OPCODE_TOGGLE_ARM},
			debounce.Key{Name: "LOCATE", Line: cfg.LocateButton, Opcode: protocol.OPCODE_LOCATE},
		),
		feedback: pattern.NewScheduler(cfg.SignalPhase, cfg.FeedbackLED),
	}

	cfg.FeedbackLED.Set(hal.LOW)
	cfg.Link.SetSendHandler(t.onSent)

	log.Printf("TX ready")
	return t
}

func (t *Transmitter) onSent(ok bool, _ error) {
	if ok {
		t.sent.Add(1)
		log.Printf("Send status: SUCCESS")
		return
	}
	t.failed.Add(1)
	log.Printf("Send status: FAIL")
}

// Poll samples the buttons, sends one datagram per press and advances the
// feedback blink. The send handler counts each outcome.
func (t *Transmitter) Poll(now time.Time) {
	for _, cmd := range t.keypad.Poll(now) {
		if t.cfg.Debug {
			log.Printf("[TX] Sending %s", cmd)
		}
		if err := t.cfg.Link.Send(cmd.Bytes()); err != nil && t.cfg.Debug {
			log.Printf("[TX] Send %s failed: %v", cmd, err)
		}
		t.feedback.Start(t.cfg.FeedbackBlinks, now)
	}
	t.feedback.Tick(now)
}

// Run polls until ctx is cancelled
func (t *Transmitter) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			t.Poll(now)
		}
	}
}

// Sent returns the number of successful sends
func (t *Transmitter) Sent() uint32 { return t.sent.Load() }

// Failed returns the number of failed sends
func (t *Transmitter) Failed() uint32 { return t.failed.Load() }

// Feedback exposes the feedback LED scheduler
func (t *Transmitter) Feedback() *pattern.Scheduler { return t.feedback }
