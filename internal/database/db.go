package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Config holds database configuration
type Config struct {
	Path string // Path to SQLite database file
}

// DB holds two handles on one SQLite file. The arming slot is written from
// the poll goroutine and the journal from the reporter goroutine; each has
// its own connection so a slot write never queues behind journal traffic.
type DB struct {
	slot    *gorm.DB
	journal *gorm.DB
}

// NewDB opens (creating if needed) the SQLite database with the pure Go driver
func NewDB(config Config, log *log.Logger) (*DB, error) {
	if dir := filepath.Dir(config.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	gormLog := newGormLogger(log)

	slot, err := openHandle(config.Path, gormLog)
	if err != nil {
		return nil, fmt.Errorf("failed to open slot handle: %w", err)
	}
	if err := slot.AutoMigrate(&ArmSlot{}, &Event{}); err != nil {
		closeHandle(slot)
		return nil, err
	}

	journal, err := openHandle(config.Path, gormLog)
	if err != nil {
		closeHandle(slot)
		return nil, fmt.Errorf("failed to open journal handle: %w", err)
	}

	if log != nil {
		log.Printf("Database initialized: %s", config.Path)
	}

	return &DB{slot: slot, journal: journal}, nil
}

func newGormLogger(log *log.Logger) logger.Interface {
	if log == nil {
		return logger.Default.LogMode(logger.Silent)
	}
	return logger.New(
		log,
		logger.Config{
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true, // a blank slot is normal on first boot
			Colorful:                  false,
		},
	)
}

func openHandle(path string, gormLog logger.Interface) (*gorm.DB, error) {
	dialector := sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path,
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := configureSQLite(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// configureSQLite favours durability: the arming slot must survive a power cut.
// WAL lets the journal handle read while the slot handle writes; concurrent
// writers wait on the file lock for at most busy_timeout.
func configureSQLite(sqlDB *sql.DB) error {
	// PRAGMAs are per connection, so pin each handle to one that never idles out
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	pragmaSettings := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=memory",
	}

	for _, pragma := range pragmaSettings {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return nil
}

func closeHandle(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB returns the handle for the arming slot
func (db *DB) GetDB() *gorm.DB {
	return db.slot
}

// JournalDB returns the handle for the event journal
func (db *DB) JournalDB() *gorm.DB {
	return db.journal
}

// Close closes both handles
func (db *DB) Close() error {
	return errors.Join(closeHandle(db.journal), closeHandle(db.slot))
}

// Health pings both handles
func (db *DB) Health() error {
	for _, h := range []*gorm.DB{db.slot, db.journal} {
		sqlDB, err := h.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.Ping(); err != nil {
			return err
		}
	}
	return nil
}
