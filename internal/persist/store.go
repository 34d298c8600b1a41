package persist

import (
	"log"
	"sync"

	"github.com/dbehnke/antitheft/internal/alarm"
)

// Slot is raw durable storage for one record.
type Slot interface {
	ReadSlot() ([]byte, error)
	WriteSlot(record []byte) error
}

// Store validates records on their way in and out of a Slot.
type Store struct {
	slot Slot
}

// NewStore creates a store over slot
func NewStore(slot Slot) *Store {
	return &Store{slot: slot}
}

// Load returns the persisted state. Any read error or invalid record yields
// DISARMED; Load never fails.
func (s *Store) Load() alarm.State {
	record, err := s.slot.ReadSlot()
	if err != nil {
		log.Printf("[Persist] Slot read failed, defaulting to %s: %v", alarm.DISARMED, err)
		return alarm.DISARMED
	}

	state, ok := DecodeRecord(record)
	if !ok {
		log.Printf("[Persist] No valid record (% X), defaulting to %s", record, alarm.DISARMED)
		return alarm.DISARMED
	}
	return state
}

// Save writes state to the slot. Transient states are refused.
func (s *Store) Save(state alarm.State) error {
	record, err := EncodeRecord(state)
	if err != nil {
		return err
	}
	return s.slot.WriteSlot(record)
}

// MemorySlot is a volatile Slot for tests and simulation.
type MemorySlot struct {
	mu     sync.Mutex
	data   []byte
	writes int
}

// NewMemorySlot creates a slot holding a copy of initial (nil = blank)
func NewMemorySlot(initial []byte) *MemorySlot {
	s := &MemorySlot{}
	if initial != nil {
		s.data = append([]byte(nil), initial...)
	}
	return s
}

// ReadSlot returns a copy of the slot contents
func (s *MemorySlot) ReadSlot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data...), nil
}

// WriteSlot replaces the slot contents
func (s *MemorySlot) WriteSlot(record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), record...)
	s.writes++
	return nil
}

// Corrupt overwrites one byte, simulating flash corruption
func (s *MemorySlot) Corrupt(offset int, value byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset >= 0 && offset < len(s.data) {
		s.data[offset] = value
	}
}

// Writes returns the number of WriteSlot calls
func (s *MemorySlot) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
