package protocol

// Command protocol constants shared by the TX and RX nodes

const (
	// Wire layout: opcode(1) | payload(1)
	COMMAND_LENGTH         = 2
	COMMAND_OPCODE_OFFSET  = 0
	COMMAND_PAYLOAD_OFFSET = 1

	// Buffer used when reading from the link; anything longer is truncated and
	// then rejected by the exact-length check.
	BUFFER_LENGTH = 64
)

// Opcodes
const (
	OPCODE_TOGGLE_ARM uint8 = 0x01 // Arm when disarmed, disarm otherwise
	OPCODE_LOCATE     uint8 = 0x02 // Flash/beep so the vehicle can be found
)
