package alarm

import (
	"errors"
	"testing"
	"time"

	"github.com/dbehnke/antitheft/internal/hal"
	"github.com/dbehnke/antitheft/internal/pattern"
	"github.com/dbehnke/antitheft/internal/protocol"
)

var epoch = time.Date(2026, 1, 6, 8, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

// fakeStore keeps the saved state in memory and records every write
type fakeStore struct {
	state State
	saves []State
	err   error
}

func (s *fakeStore) Load() State { return s.state }

func (s *fakeStore) Save(state State) error {
	if s.err != nil {
		return s.err
	}
	s.state = state
	s.saves = append(s.saves, state)
	return nil
}

// fakeSignaler records every pattern request
type fakeSignaler struct {
	starts []int
}

func (f *fakeSignaler) Start(times int, now time.Time) {
	f.starts = append(f.starts, times)
}

func (f *fakeSignaler) last() int {
	if len(f.starts) == 0 {
		return -1
	}
	return f.starts[len(f.starts)-1]
}

var (
	toggle = []byte{protocol.OPCODE_TOGGLE_ARM, 0}
	locate = []byte{protocol.OPCODE_LOCATE, 0}
)

func newTestController(store *fakeStore) (*Controller, *hal.MemoryLine, *fakeSignaler) {
	relay := hal.NewMemoryLine("relay1", hal.LOW)
	sig := &fakeSignaler{}
	c := NewController(relay, sig, store, DefaultOptions(), at(0))
	return c, relay, sig
}

// armedAndStable arms at t=0 and returns once vibration sensing is live
func armedAndStable(t *testing.T) (*Controller, *fakeStore, *fakeSignaler) {
	t.Helper()
	store := &fakeStore{}
	c, _, sig := newTestController(store)
	if _, err := c.OnDatagram(toggle, at(0)); err != nil {
		t.Fatalf("OnDatagram() error = %v", err)
	}
	c.Tick(at(1500), hal.HIGH)
	if c.State() != ARMED || c.Stabilizing(at(1500)) {
		t.Fatalf("setup: state=%s stabilizing=%v", c.State(), c.Stabilizing(at(1500)))
	}
	return c, store, sig
}

func TestToggleFromDisarmed(t *testing.T) {
	store := &fakeStore{}
	c, relay, sig := newTestController(store)

	if _, err := c.OnDatagram(toggle, at(10)); err != nil {
		t.Fatalf("OnDatagram() error = %v", err)
	}

	if c.State() != ARMED {
		t.Errorf("State() = %s, want ARMED", c.State())
	}
	if !relay.Get() {
		t.Errorf("starter-disable relay not engaged")
	}
	if len(store.saves) != 1 || store.saves[0] != ARMED {
		t.Errorf("saves = %v, want [ARMED]", store.saves)
	}
	if sig.last() != DefaultArmBlinks {
		t.Errorf("pattern = %d, want %d", sig.last(), DefaultArmBlinks)
	}
}

func TestToggleParity(t *testing.T) {
	for n := 0; n <= 7; n++ {
		store := &fakeStore{}
		c, relay, _ := newTestController(store)

		ms := 0
		for i := 0; i < n; i++ {
			c.OnDatagram(toggle, at(ms))
			ms += 100
			// Locate in between never changes the outcome
			c.OnDatagram(locate, at(ms))
			ms += 100
		}

		want := DISARMED
		if n%2 == 1 {
			want = ARMED
		}
		if c.State() != want {
			t.Errorf("after %d toggles: State() = %s, want %s", n, c.State(), want)
		}
		if relay.Get() != (want == ARMED) {
			t.Errorf("after %d toggles: relay = %v", n, relay.Get())
		}
		if len(store.saves) != n {
			t.Errorf("after %d toggles: %d saves", n, len(store.saves))
		}
	}
}

func TestLocateDoesNotChangeState(t *testing.T) {
	store := &fakeStore{}
	c, _, sig := newTestController(store)
	c.OnDatagram(toggle, at(0))
	saves := len(store.saves)

	c.OnDatagram(locate, at(500))

	if c.State() != ARMED {
		t.Errorf("State() = %s, want ARMED", c.State())
	}
	if len(store.saves) != saves {
		t.Errorf("locate wrote to the store")
	}
	if sig.last() != DefaultLocateBlinks {
		t.Errorf("pattern = %d, want %d", sig.last(), DefaultLocateBlinks)
	}
	if c.Stats().Locates != 1 {
		t.Errorf("Locates = %d, want 1", c.Stats().Locates)
	}
}

func TestMalformedAndUnknownDatagrams(t *testing.T) {
	store := &fakeStore{}
	c, relay, sig := newTestController(store)

	for _, data := range [][]byte{{}, {0x01}, {0x01, 0x00, 0x00}} {
		if _, err := c.OnDatagram(data, at(0)); !errors.Is(err, protocol.ErrSizeMismatch) {
			t.Errorf("OnDatagram(%v) error = %v, want ErrSizeMismatch", data, err)
		}
	}

	cmd, err := c.OnDatagram([]byte{0x09, 0x01}, at(0))
	if err != nil {
		t.Fatalf("unknown opcode returned error %v", err)
	}
	if cmd.Opcode != 0x09 {
		t.Errorf("decoded opcode = %d, want 9", cmd.Opcode)
	}

	if c.State() != DISARMED || relay.Get() || len(store.saves) != 0 || len(sig.starts) != 0 {
		t.Errorf("bad datagrams changed state")
	}
	if c.Stats().Malformed != 3 || c.Stats().Ignored != 1 {
		t.Errorf("Stats() = %+v", c.Stats())
	}
}

func TestVibrationIgnoredDuringStabilization(t *testing.T) {
	store := &fakeStore{}
	c, _, _ := newTestController(store)
	c.OnDatagram(toggle, at(0))

	// Sensor reads triggered the whole time
	for ms := 0; ms < 1500; ms += 10 {
		c.Tick(at(ms), hal.LOW)
		if c.State() != ARMED {
			t.Fatalf("t=%dms: State() = %s during stabilization", ms, c.State())
		}
	}

	c.Tick(at(1500), hal.LOW)
	if c.State() != ALARM {
		t.Errorf("State() = %s at end of stabilization, want ALARM", c.State())
	}
}

func TestVibrationTriggersAlarm(t *testing.T) {
	c, store, sig := armedAndStable(t)
	saves := len(store.saves)

	c.Tick(at(2000), hal.LOW)

	if c.State() != ALARM {
		t.Fatalf("State() = %s, want ALARM", c.State())
	}
	if sig.last() != DefaultVibrationBlinks {
		t.Errorf("pattern = %d, want %d", sig.last(), DefaultVibrationBlinks)
	}
	if len(store.saves) != saves {
		t.Errorf("ALARM was persisted: %v", store.saves)
	}
}

func TestAlarmRevertsToArmedAtDuration(t *testing.T) {
	c, _, _ := armedAndStable(t)
	c.Tick(at(2000), hal.LOW)

	c.Tick(at(4999), hal.HIGH)
	if c.State() != ALARM {
		t.Fatalf("reverted early: State() = %s at 2999ms", c.State())
	}
	if c.AlarmRemaining(at(4999)) != time.Millisecond {
		t.Errorf("AlarmRemaining() = %v, want 1ms", c.AlarmRemaining(at(4999)))
	}

	c.Tick(at(5000), hal.HIGH)
	if c.State() != ARMED {
		t.Errorf("State() = %s at 3000ms, want ARMED", c.State())
	}
}

func TestSecondTriggerDoesNotExtendAlarm(t *testing.T) {
	c, _, sig := armedAndStable(t)
	c.Tick(at(2000), hal.LOW)
	patterns := len(sig.starts)

	// Keep triggering inside the debounce window and beyond
	for ms := 2010; ms < 5000; ms += 10 {
		c.Tick(at(ms), hal.LOW)
	}
	if len(sig.starts) != patterns {
		t.Errorf("re-trigger during ALARM started another pattern")
	}

	c.Tick(at(5000), hal.HIGH)
	if c.State() != ARMED {
		t.Errorf("alarm extended by re-trigger: State() = %s", c.State())
	}
}

func TestVibrationDebounceWindow(t *testing.T) {
	opts := DefaultOptions()
	opts.Timing.AlarmDuration = 100 * time.Millisecond
	relay := hal.NewMemoryLine("relay1", hal.LOW)
	c := NewController(relay, &fakeSignaler{}, &fakeStore{}, opts, at(0))
	c.OnDatagram(toggle, at(0))

	c.Tick(at(2000), hal.LOW)
	c.Tick(at(2100), hal.HIGH) // alarm over, back to ARMED
	if c.State() != ARMED {
		t.Fatalf("State() = %s, want ARMED", c.State())
	}

	c.Tick(at(2800), hal.LOW) // exactly 800ms: still inside the window
	if c.State() != ARMED {
		t.Errorf("trigger at debounce boundary accepted")
	}
	c.Tick(at(2801), hal.LOW)
	if c.State() != ALARM {
		t.Errorf("trigger after debounce window rejected")
	}
}

func TestDisarmDuringAlarm(t *testing.T) {
	store := &fakeStore{}
	relay := hal.NewMemoryLine("relay1", hal.LOW)
	siren := hal.NewMemoryLine("relay2", hal.LOW)
	sched := pattern.NewScheduler(pattern.DefaultPhase, siren)
	c := NewController(relay, sched, store, DefaultOptions(), at(0))

	c.OnDatagram(toggle, at(0))
	c.Tick(at(2000), hal.LOW)
	sched.Tick(at(2150))
	if !siren.Get() || sched.Target() != DefaultVibrationBlinks*2 {
		t.Fatalf("vibration pattern not running")
	}

	c.OnDatagram(toggle, at(2200))

	if c.State() != DISARMED {
		t.Errorf("State() = %s, want DISARMED", c.State())
	}
	if relay.Get() {
		t.Errorf("relay still engaged after disarm")
	}
	if siren.Get() {
		t.Errorf("vibration pattern output not cancelled")
	}
	if sched.Target() != DefaultDisarmBlinks*2 || sched.Count() != 0 {
		t.Errorf("disarm pattern target=%d count=%d", sched.Target(), sched.Count())
	}
	if store.state != DISARMED {
		t.Errorf("persisted %s, want DISARMED", store.state)
	}

	// The expired alarm timer must not resurrect ARMED
	c.Tick(at(6000), hal.LOW)
	if c.State() != DISARMED {
		t.Errorf("State() = %s after alarm duration, want DISARMED", c.State())
	}
}

func TestRestoreArmed(t *testing.T) {
	store := &fakeStore{state: ARMED}
	c, relay, _ := newTestController(store)

	if c.State() != ARMED || !relay.Get() {
		t.Fatalf("restore: state=%s relay=%v", c.State(), relay.Get())
	}

	// Stabilization restarts at boot
	c.Tick(at(1000), hal.LOW)
	if c.State() != ARMED {
		t.Errorf("vibration accepted during post-boot stabilization")
	}
	c.Tick(at(1500), hal.LOW)
	if c.State() != ALARM {
		t.Errorf("vibration rejected after post-boot stabilization")
	}
}

func TestRestartMidAlarmRecoversArmed(t *testing.T) {
	c, store, _ := armedAndStable(t)
	c.Tick(at(2000), hal.LOW)
	if c.State() != ALARM {
		t.Fatalf("setup: State() = %s", c.State())
	}

	restarted, _, _ := newTestController(store)
	if restarted.State() != ARMED {
		t.Errorf("recovered %s, want ARMED", restarted.State())
	}
}

func TestRestoreIgnoresTransientState(t *testing.T) {
	store := &fakeStore{state: ALARM}
	c, relay, _ := newTestController(store)
	if c.State() != DISARMED || relay.Get() {
		t.Errorf("restored transient state: %s", c.State())
	}
}

func TestSaveErrorDoesNotBlockTransition(t *testing.T) {
	store := &fakeStore{err: errors.New("flash worn out")}
	c, relay, _ := newTestController(store)

	c.OnDatagram(toggle, at(0))
	if c.State() != ARMED || !relay.Get() {
		t.Errorf("save failure blocked arming")
	}
	if c.Stats().SaveErrors != 1 {
		t.Errorf("SaveErrors = %d, want 1", c.Stats().SaveErrors)
	}
}

func TestObserverSeesTransitions(t *testing.T) {
	c, _, _ := newTestController(&fakeStore{})
	var seen []Transition
	c.SetObserver(ObserverFunc(func(tr Transition) {
		seen = append(seen, tr)
	}))

	c.OnDatagram(toggle, at(0))
	c.Tick(at(1600), hal.LOW)
	c.Tick(at(4600), hal.HIGH)
	c.OnDatagram(toggle, at(5000))

	expected := []Transition{
		{From: DISARMED, To: ARMED, Cause: CauseToggle, At: at(0)},
		{From: ARMED, To: ALARM, Cause: CauseVibration, At: at(1600)},
		{From: ALARM, To: ARMED, Cause: CauseAlarmTimeout, At: at(4600)},
		{From: ARMED, To: DISARMED, Cause: CauseToggle, At: at(5000)},
	}
	if len(seen) != len(expected) {
		t.Fatalf("saw %d transitions, want %d: %+v", len(seen), len(expected), seen)
	}
	for i := range expected {
		if seen[i] != expected[i] {
			t.Errorf("transition %d = %+v, want %+v", i, seen[i], expected[i])
		}
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state       State
		expected    string
		persistable bool
	}{
		{DISARMED, "DISARMED", true},
		{ARMED, "ARMED", true},
		{ALARM, "ALARM", false},
		{State(7), "State(7)", false},
	}

	for _, tt := range tests {
		if tt.state.String() != tt.expected {
			t.Errorf("String() = %q, want %q", tt.state.String(), tt.expected)
		}
		if tt.state.Persistable() != tt.persistable {
			t.Errorf("%s.Persistable() = %v, want %v", tt.expected, tt.state.Persistable(), tt.persistable)
		}
	}
}

func TestOptionsDefaults(t *testing.T) {
	c := NewController(hal.NewMemoryLine("relay1", hal.LOW), &fakeSignaler{}, nil, Options{}, at(0))
	if c.Options() != DefaultOptions() {
		t.Errorf("Options() = %+v, want defaults", c.Options())
	}
}
