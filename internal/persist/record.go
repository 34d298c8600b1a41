// Package persist stores the arming state in a two-byte durable slot:
// a magic validity byte followed by the encoded state.
package persist

import (
	"errors"
	"fmt"

	"github.com/dbehnke/antitheft/internal/alarm"
)

const (
	RECORD_MAGIC  byte = 0xA5
	RECORD_LENGTH      = 2

	ADDR_MAGIC = 0
	ADDR_STATE = 1
)

// ErrTransientState is returned when asked to persist a state that must not
// survive a restart.
var ErrTransientState = errors.New("state is transient and cannot be persisted")

// EncodeRecord returns the slot contents for state
func EncodeRecord(state alarm.State) ([]byte, error) {
	if !state.Persistable() {
		return nil, fmt.Errorf("%w: %s", ErrTransientState, state)
	}

	record := make([]byte, RECORD_LENGTH)
	record[ADDR_MAGIC] = RECORD_MAGIC
	record[ADDR_STATE] = byte(state)
	return record, nil
}

// DecodeRecord parses slot contents. ok is false when the slot holds no valid
// record: wrong length, wrong magic, or a state byte outside DISARMED..ARMED.
func DecodeRecord(record []byte) (state alarm.State, ok bool) {
	if len(record) != RECORD_LENGTH {
		return alarm.DISARMED, false
	}
	if record[ADDR_MAGIC] != RECORD_MAGIC {
		return alarm.DISARMED, false
	}

	state = alarm.State(record[ADDR_STATE])
	if !state.Persistable() {
		return alarm.DISARMED, false
	}
	return state, true
}
