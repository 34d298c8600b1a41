package database

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// SlotRepository stores the arming record in a single row. It implements
// persist.Slot.
type SlotRepository struct {
	db *gorm.DB
}

// NewSlotRepository creates a new repository instance
func NewSlotRepository(db *gorm.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

// ReadSlot returns the stored record, or nil when nothing was ever written
func (r *SlotRepository) ReadSlot() ([]byte, error) {
	var slot ArmSlot
	err := r.db.Where("id = ?", SLOT_ID).First(&slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return slot.Record, nil
}

// WriteSlot replaces the stored record
func (r *SlotRepository) WriteSlot(record []byte) error {
	slot := ArmSlot{
		ID:        SLOT_ID,
		Record:    append([]byte(nil), record...),
		UpdatedAt: time.Now(),
	}
	return r.db.Save(&slot).Error
}

// Erase removes the slot row, as a blank EEPROM would read
func (r *SlotRepository) Erase() error {
	return r.db.Where("id = ?", SLOT_ID).Delete(&ArmSlot{}).Error
}
