package database

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dbehnke/antitheft/internal/alarm"
	"github.com/dbehnke/antitheft/internal/persist"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data", "antitheft.db")
	db, err := NewDB(Config{Path: path}, log.New(os.Stdout, "[DB] ", log.LstdFlags))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Health(); err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	return db
}

func TestSlotRepositoryBlank(t *testing.T) {
	db := newTestDB(t)
	repo := NewSlotRepository(db.GetDB())

	record, err := repo.ReadSlot()
	if err != nil {
		t.Fatalf("ReadSlot() error = %v", err)
	}
	if record != nil {
		t.Errorf("blank slot = % X, want nil", record)
	}
}

func TestSlotRepositoryWriteRead(t *testing.T) {
	db := newTestDB(t)
	repo := NewSlotRepository(db.GetDB())

	if err := repo.WriteSlot([]byte{0xA5, 0x01}); err != nil {
		t.Fatalf("WriteSlot() error = %v", err)
	}
	if err := repo.WriteSlot([]byte{0xA5, 0x00}); err != nil {
		t.Fatalf("WriteSlot() error = %v", err)
	}

	record, err := repo.ReadSlot()
	if err != nil {
		t.Fatalf("ReadSlot() error = %v", err)
	}
	if !bytes.Equal(record, []byte{0xA5, 0x00}) {
		t.Errorf("ReadSlot() = % X, want A5 00", record)
	}

	var rows int64
	db.GetDB().Model(&ArmSlot{}).Count(&rows)
	if rows != 1 {
		t.Errorf("slot rows = %d, want 1", rows)
	}

	if err := repo.Erase(); err != nil {
		t.Fatalf("Erase() error = %v", err)
	}
	if record, _ := repo.ReadSlot(); record != nil {
		t.Errorf("slot not erased: % X", record)
	}
}

func TestSlotWriteNotBlockedByJournal(t *testing.T) {
	db := newTestDB(t)
	slot := NewSlotRepository(db.GetDB())

	// Hold the journal connection inside an open transaction
	tx := db.JournalDB().Begin()
	if tx.Error != nil {
		t.Fatalf("Begin() error = %v", tx.Error)
	}
	defer tx.Rollback()
	var n int64
	if err := tx.Model(&Event{}).Count(&n).Error; err != nil {
		t.Fatalf("Count() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- slot.WriteSlot([]byte{0xA5, 0x01}) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WriteSlot() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WriteSlot() waited behind the journal")
	}

	record, err := slot.ReadSlot()
	if err != nil || !bytes.Equal(record, []byte{0xA5, 0x01}) {
		t.Errorf("ReadSlot() = % X, %v", record, err)
	}
}

func TestSlotRepositoryAsStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "antitheft.db")

	db, err := NewDB(Config{Path: path}, nil)
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	store := persist.NewStore(NewSlotRepository(db.GetDB()))
	if err := store.Save(alarm.ARMED); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	db.Close()

	// Reopen, as after a power cycle
	db, err = NewDB(Config{Path: path}, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer db.Close()

	slot := NewSlotRepository(db.GetDB())
	store = persist.NewStore(slot)
	if got := store.Load(); got != alarm.ARMED {
		t.Errorf("Load() after reopen = %s, want ARMED", got)
	}

	// Corrupt magic byte
	if err := slot.WriteSlot([]byte{0x00, byte(alarm.ARMED)}); err != nil {
		t.Fatalf("WriteSlot() error = %v", err)
	}
	if got := store.Load(); got != alarm.DISARMED {
		t.Errorf("Load() with corrupt magic = %s, want DISARMED", got)
	}
}

func TestEventRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewEventRepository(db.JournalDB())

	base := time.Date(2026, 1, 6, 8, 0, 0, 0, time.UTC)
	events := []*Event{
		{Kind: EventKindTransition, From: "DISARMED", To: "ARMED", Cause: "toggle", At: base},
		{Kind: EventKindLink, From: "DISCONNECTED", To: "CONNECTED", At: base.Add(time.Second)},
		{Kind: EventKindTransition, From: "ARMED", To: "ALARM", Cause: "vibration", At: base.Add(2 * time.Second)},
	}

	for _, e := range events {
		if err := repo.Append(e); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if len(e.ID) != 36 {
			t.Errorf("ID = %q, want a UUID", e.ID)
		}
	}

	count, err := repo.Count()
	if err != nil || count != 3 {
		t.Fatalf("Count() = %d, %v, want 3", count, err)
	}

	recent, err := repo.Recent(2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 2 || recent[0].To != "ALARM" {
		t.Errorf("Recent(2) = %v", recent)
	}

	transitions, err := repo.ByKind(EventKindTransition, 10)
	if err != nil || len(transitions) != 2 {
		t.Errorf("ByKind(transition) = %d, %v, want 2", len(transitions), err)
	}

	removed, err := repo.DeleteBefore(base.Add(time.Second))
	if err != nil || removed != 1 {
		t.Errorf("DeleteBefore() = %d, %v, want 1", removed, err)
	}
}

func TestEventRepositoryValidation(t *testing.T) {
	db := newTestDB(t)
	repo := NewEventRepository(db.JournalDB())

	if err := repo.Append(nil); err == nil {
		t.Errorf("Append(nil) succeeded")
	}
	if err := repo.Append(&Event{}); err == nil {
		t.Errorf("Append without kind succeeded")
	}
}

func TestEventString(t *testing.T) {
	e := Event{Kind: EventKindTransition, From: "ARMED", To: "DISARMED", Cause: "toggle"}
	expected := "transition ARMED -> DISARMED (toggle)"
	if e.String() != expected {
		t.Errorf("String() = %q, want %q", e.String(), expected)
	}
}
