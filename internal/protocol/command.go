package protocol

import (
	"errors"
	"fmt"
)

// ErrSizeMismatch is returned when a received datagram is not exactly COMMAND_LENGTH bytes.
var ErrSizeMismatch = errors.New("datagram size mismatch")

// Command is the single datagram exchanged between TX and RX.
type Command struct {
	Opcode  uint8
	Payload uint8
}

// Encode builds the wire form of a command
func Encode(opcode, payload uint8) []byte {
	data := make([]byte, COMMAND_LENGTH)
	data[COMMAND_OPCODE_OFFSET] = opcode
	data[COMMAND_PAYLOAD_OFFSET] = payload
	return data
}

// Bytes returns the wire form of c
func (c Command) Bytes() []byte {
	return Encode(c.Opcode, c.Payload)
}

// Decode parses a received datagram. The link layer's framing is trusted, so
// the only check is the exact length.
func Decode(data []byte) (Command, error) {
	if len(data) != COMMAND_LENGTH {
		return Command{}, fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, len(data), COMMAND_LENGTH)
	}

	return Command{
		Opcode:  data[COMMAND_OPCODE_OFFSET],
		Payload: data[COMMAND_PAYLOAD_OFFSET],
	}, nil
}

// IsToggleArm reports whether c requests an arm/disarm toggle
func (c Command) IsToggleArm() bool { return c.Opcode == OPCODE_TOGGLE_ARM }

// IsLocate reports whether c requests the locate pattern
func (c Command) IsLocate() bool { return c.Opcode == OPCODE_LOCATE }

// IsKnown reports whether the opcode is one this node understands
func (c Command) IsKnown() bool {
	return c.IsToggleArm() || c.IsLocate()
}

// OpcodeString returns a readable opcode name
func (c Command) OpcodeString() string {
	switch c.Opcode {
	case OPCODE_TOGGLE_ARM:
		return "TOGGLE_ARM"
	case OPCODE_LOCATE:
		return "LOCATE"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", c.Opcode)
	}
}

// String returns a formatted string representation
func (c Command) String() string {
	return fmt.Sprintf("Command{%s, payload=%d}", c.OpcodeString(), c.Payload)
}
