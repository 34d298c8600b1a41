package debounce

import (
	"time"

	"github.com/dbehnke/antitheft/internal/hal"
	"github.com/dbehnke/antitheft/internal/protocol"
)

// Key binds an input line to the opcode it sends.
type Key struct {
	Name   string
	Line   hal.Line
	Opcode uint8
}

type keyState struct {
	key    Key
	button *Button
	toggle uint8
}

// Keypad polls a fixed set of keys and produces one command per press.
type Keypad struct {
	keys []*keyState
}

// NewKeypad samples every line once to establish its baseline
func NewKeypad(delay time.Duration, keys ...Key) *Keypad {
	k := &Keypad{keys: make([]*keyState, 0, len(keys))}
	for _, key := range keys {
		k.keys = append(k.keys, &keyState{
			key:    key,
			button: NewButton(key.Line.Get(), delay),
		})
	}
	return k
}

// Poll samples all keys. Each press flips that key's toggle byte, which is
// carried as the command payload.
func (k *Keypad) Poll(now time.Time) []protocol.Command {
	var cmds []protocol.Command

	for _, ks := range k.keys {
		if !ks.button.Poll(ks.key.Line.Get(), now) {
			continue
		}
		ks.toggle ^= 1
		cmds = append(cmds, protocol.Command{
			Opcode:  ks.key.Opcode,
			Payload: ks.toggle,
		})
	}

	return cmds
}

// Len returns the number of keys
func (k *Keypad) Len() int { return len(k.keys) }
