package node

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dbehnke/antitheft/internal/alarm"
	"github.com/dbehnke/antitheft/internal/database"
	"github.com/dbehnke/antitheft/internal/telemetry"
	"github.com/google/uuid"
)

// DEFAULT_REPORT_QUEUE is the number of events buffered between the poll
// loop and the reporter goroutine
const DEFAULT_REPORT_QUEUE = 64

// Link status names used in link events
const (
	LINK_CONNECTED    = "CONNECTED"
	LINK_DISCONNECTED = "DISCONNECTED"
)

// Journal stores events durably
type Journal interface {
	Append(event *database.Event) error
}

// Reporter moves receiver events off the poll goroutine into the journal and
// the telemetry publisher. Report never blocks: when the queue is full the
// event is dropped and counted.
type Reporter struct {
	events    chan telemetry.Event
	journal   Journal
	publisher telemetry.Publisher

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Uint32
	failed  atomic.Uint32
}

// NewReporter creates a reporter. journal and publisher may each be nil.
func NewReporter(queue int, journal Journal, publisher telemetry.Publisher) *Reporter {
	if queue <= 0 {
		queue = DEFAULT_REPORT_QUEUE
	}
	r := &Reporter{
		events:    make(chan telemetry.Event, queue),
		journal:   journal,
		publisher: publisher,
	}

	r.wg.Add(1)
	go r.run()
	return r
}

// Report queues ev, assigning an ID if it has none. Returns false if the
// event was dropped.
func (r *Reporter) Report(ev telemetry.Event) bool {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return false
	}

	select {
	case r.events <- ev:
		return true
	default:
		r.dropped.Add(1)
		return false
	}
}

// OnTransition reports an alarm state change
func (r *Reporter) OnTransition(tr alarm.Transition) {
	r.Report(telemetry.Event{
		Kind:  telemetry.KindTransition,
		From:  tr.From.String(),
		To:    tr.To.String(),
		Cause: string(tr.Cause),
		At:    tr.At,
	})
}

// OnLink reports a link status edge
func (r *Reporter) OnLink(connected bool, at time.Time) {
	ev := telemetry.Event{
		Kind:  telemetry.KindLink,
		From:  LINK_CONNECTED,
		To:    LINK_DISCONNECTED,
		Cause: "timeout",
		At:    at,
	}
	if connected {
		ev.From, ev.To, ev.Cause = LINK_DISCONNECTED, LINK_CONNECTED, "datagram"
	}
	r.Report(ev)
}

func (r *Reporter) run() {
	defer r.wg.Done()

	for ev := range r.events {
		if r.journal != nil {
			err := r.journal.Append(&database.Event{
				ID:    ev.ID,
				Kind:  ev.Kind,
				From:  ev.From,
				To:    ev.To,
				Cause: ev.Cause,
				At:    ev.At,
			})
			if err != nil {
				r.failed.Add(1)
				log.Printf("[Reporter] Journal append failed: %v", err)
			}
		}

		if r.publisher != nil {
			if err := r.publisher.Publish(ev); err != nil {
				r.failed.Add(1)
				log.Printf("[Reporter] Publish failed: %v", err)
			}
		}
	}
}

// Close stops accepting events and waits for the queued ones to be written
func (r *Reporter) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.events)
	r.mu.Unlock()

	r.wg.Wait()
}

// Dropped returns how many events were discarded because the queue was full
func (r *Reporter) Dropped() uint32 { return r.dropped.Load() }

// Failed returns how many journal or publish writes failed
func (r *Reporter) Failed() uint32 { return r.failed.Load() }
