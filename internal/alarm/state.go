// Package alarm implements the receiver's arming state machine.
package alarm

import "fmt"

// State is the arming state of the receiver
type State uint8

const (
	DISARMED State = iota
	ARMED
	ALARM
)

// String returns the state name
func (s State) String() string {
	switch s {
	case DISARMED:
		return "DISARMED"
	case ARMED:
		return "ARMED"
	case ALARM:
		return "ALARM"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Persistable reports whether s may be written to durable storage. ALARM is
// derived from ARMED plus a running timer and must not survive a restart.
func (s State) Persistable() bool {
	return s == DISARMED || s == ARMED
}

// Cause describes what triggered a transition
type Cause string

const (
	CauseRestore      Cause = "restore"
	CauseToggle       Cause = "toggle"
	CauseVibration    Cause = "vibration"
	CauseAlarmTimeout Cause = "alarm-timeout"
)
