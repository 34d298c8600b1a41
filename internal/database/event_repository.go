package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRepository provides database operations for the event journal
type EventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new repository instance
func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append stores an event, assigning an ID and timestamp if missing
func (r *EventRepository) Append(event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Kind == "" {
		return fmt.Errorf("event kind is required")
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}

	return r.db.Create(event).Error
}

// Recent returns the newest events first
func (r *EventRepository) Recent(limit int) ([]Event, error) {
	var events []Event
	err := r.db.Order("occurred_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// ByKind returns events of one kind, newest first
func (r *EventRepository) ByKind(kind string, limit int) ([]Event, error) {
	var events []Event
	err := r.db.Where("kind = ?", kind).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// Count returns the total number of journal entries
func (r *EventRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&Event{}).Count(&count).Error
	return count, err
}

// DeleteBefore prunes entries older than cutoff and returns how many were removed
func (r *EventRepository) DeleteBefore(cutoff time.Time) (int64, error) {
	result := r.db.Where("occurred_at < ?", cutoff).Delete(&Event{})
	return result.RowsAffected, result.Error
}
