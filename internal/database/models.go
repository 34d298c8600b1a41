package database

import (
	"fmt"
	"time"
)

// SLOT_ID is the primary key of the single arming slot row
const SLOT_ID = 1

// ArmSlot is the durable two-byte arming record. The bytes are stored as-is;
// validation happens in the persist package.
type ArmSlot struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Record    []byte    `gorm:"not null" json:"record"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (ArmSlot) TableName() string {
	return "arm_slot"
}

// Event kinds
const (
	EventKindTransition = "transition"
	EventKindLink       = "link"
)

// Event is one journal entry: a state transition or a link edge
type Event struct {
	ID        string    `gorm:"primarykey;size:36" json:"id"`
	Kind      string    `gorm:"index;size:16" json:"kind"`
	From      string    `gorm:"column:from_state;size:16" json:"from"`
	To        string    `gorm:"column:to_state;size:16" json:"to"`
	Cause     string    `gorm:"size:32" json:"cause"`
	At        time.Time `gorm:"column:occurred_at;index" json:"at"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Event) TableName() string {
	return "events"
}

// String returns a formatted string representation
func (e Event) String() string {
	result := fmt.Sprintf("%s %s -> %s", e.Kind, e.From, e.To)
	if e.Cause != "" {
		result += fmt.Sprintf(" (%s)", e.Cause)
	}
	return result
}
