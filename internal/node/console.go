package node

import (
	"bufio"
	"context"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dbehnke/antitheft/internal/hal"
)

// DEFAULT_HOLD is how long a console key holds its line low
const DEFAULT_HOLD = 200 * time.Millisecond

// Console drives simulated active-low inputs from text commands, one per
// line: a bound key pulses its line low for the hold time.
type Console struct {
	mu    sync.Mutex
	keys  map[string]consoleKey
	hold  time.Duration
	timer map[string]*time.Timer
}

type consoleKey struct {
	line hal.Line
	help string
}

// NewConsole creates a console with no keys bound
func NewConsole(hold time.Duration) *Console {
	if hold <= 0 {
		hold = DEFAULT_HOLD
	}
	return &Console{
		keys:  make(map[string]consoleKey),
		hold:  hold,
		timer: make(map[string]*time.Timer),
	}
}

// Bind maps key to line
func (c *Console) Bind(key string, line hal.Line, help string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[key] = consoleKey{line: line, help: help}
}

// Pulse pulls the line bound to key low and releases it after the hold
// time. A pulse while the key is still held extends the hold.
func (c *Console) Pulse(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	k, ok := c.keys[key]
	if !ok {
		return false
	}

	k.line.Set(hal.LOW)
	if t, held := c.timer[key]; held {
		t.Stop()
	}
	var release *time.Timer
	release = time.AfterFunc(c.hold, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.timer[key] != release {
			return
		}
		k.line.Set(hal.HIGH)
		delete(c.timer, key)
	})
	c.timer[key] = release
	return true
}

// Run reads commands from in until EOF or ctx is cancelled
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		cmd := strings.TrimSpace(scanner.Text())
		switch cmd {
		case "":
			continue
		case "?", "help":
			c.printHelp()
		default:
			if !c.Pulse(cmd) {
				log.Printf("[Console] Unknown command %q, try help", cmd)
			}
		}
	}

	return scanner.Err()
}

func (c *Console) printHelp() {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.keys))
	for k := range c.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, held := c.timer[k]; held {
			log.Printf("[Console] %-4s %s (held)", k, c.keys[k].help)
			continue
		}
		log.Printf("[Console] %-4s %s", k, c.keys[k].help)
	}
}
