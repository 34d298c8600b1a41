// Package hal abstracts the digital lines of the TX and RX boards.
package hal

import (
	"log"
	"sync"
)

// Digital levels. Buttons and the vibration sensor are active-low.
const (
	HIGH = true
	LOW  = false
)

// Line is a single binary digital line, input or output.
type Line interface {
	Set(level bool)
	Get() bool
}

// MemoryLine is an in-process line used on hosts without GPIO and in tests.
type MemoryLine struct {
	mu      sync.Mutex
	name    string
	level   bool
	changes int
}

// NewMemoryLine creates a line at the given initial level
func NewMemoryLine(name string, initial bool) *MemoryLine {
	return &MemoryLine{name: name, level: initial}
}

// Set drives the line; only real edges are counted
func (l *MemoryLine) Set(level bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.level != level {
		l.changes++
	}
	l.level = level
}

// Get returns the current level
func (l *MemoryLine) Get() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Changes returns the number of edges seen since creation
func (l *MemoryLine) Changes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.changes
}

// Name returns the line name
func (l *MemoryLine) Name() string { return l.name }

// LoggedLine wraps a line and logs every edge when debug is enabled.
type LoggedLine struct {
	Line
	name  string
	debug bool
}

// NewLoggedLine wraps line with edge logging
func NewLoggedLine(name string, line Line, debug bool) *LoggedLine {
	return &LoggedLine{Line: line, name: name, debug: debug}
}

// Set drives the wrapped line
func (l *LoggedLine) Set(level bool) {
	if l.debug && l.Line.Get() != level {
		log.Printf("[HAL] %s -> %s", l.name, LevelString(level))
	}
	l.Line.Set(level)
}

// LevelString returns "HIGH" or "LOW"
func LevelString(level bool) string {
	if level {
		return "HIGH"
	}
	return "LOW"
}
