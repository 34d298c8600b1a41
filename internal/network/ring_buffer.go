package network

import (
	"fmt"
)

// LENGTH_PREFIX is the size of the big-endian length stored before each datagram
const LENGTH_PREFIX = 2

// MAX_DATAGRAM is the largest payload a length prefix can describe
const MAX_DATAGRAM = 0xFFFF

// RingBuffer is a byte circular buffer holding length-prefixed datagrams.
// It is not safe for concurrent use; callers hold their own lock.
type RingBuffer struct {
	buffer   []byte
	head     int
	tail     int
	size     int
	capacity int
	name     string
}

// NewRingBuffer creates a new ring buffer with specified capacity in bytes
func NewRingBuffer(capacity int, name string) *RingBuffer {
	return &RingBuffer{
		buffer:   make([]byte, capacity),
		capacity: capacity,
		name:     name,
	}
}

// AddData appends raw bytes. Returns false if there is not enough space.
func (rb *RingBuffer) AddData(data []byte) bool {
	if !rb.HasSpace(len(data)) {
		return false
	}

	for _, b := range data {
		rb.buffer[rb.head] = b
		rb.head = (rb.head + 1) % rb.capacity
		rb.size++
	}

	return true
}

// GetData removes len(data) bytes. Returns false if not enough are stored.
func (rb *RingBuffer) GetData(data []byte) bool {
	if !rb.Peek(data) {
		return false
	}
	rb.skip(len(data))
	return true
}

// Peek copies len(data) bytes without removing them
func (rb *RingBuffer) Peek(data []byte) bool {
	if rb.size < len(data) {
		return false
	}

	pos := rb.tail
	for i := range data {
		data[i] = rb.buffer[pos]
		pos = (pos + 1) % rb.capacity
	}

	return true
}

func (rb *RingBuffer) skip(n int) {
	rb.tail = (rb.tail + n) % rb.capacity
	rb.size -= n
}

// Clear empties the ring buffer
func (rb *RingBuffer) Clear() {
	rb.head = 0
	rb.tail = 0
	rb.size = 0
}

// FreeSpace returns available space in bytes
func (rb *RingBuffer) FreeSpace() int {
	return rb.capacity - rb.size
}

// DataSize returns the number of stored bytes, prefixes included
func (rb *RingBuffer) DataSize() int {
	return rb.size
}

// HasSpace checks if buffer has space for length bytes
func (rb *RingBuffer) HasSpace(length int) bool {
	return rb.FreeSpace() >= length
}

// HasData returns true if buffer contains data
func (rb *RingBuffer) HasData() bool {
	return rb.size > 0
}

// IsEmpty returns true if buffer is empty
func (rb *RingBuffer) IsEmpty() bool {
	return rb.size == 0
}

// String returns a string representation for debugging
func (rb *RingBuffer) String() string {
	return fmt.Sprintf("RingBuffer[%s]: size=%d, capacity=%d, head=%d, tail=%d",
		rb.name, rb.size, rb.capacity, rb.head, rb.tail)
}

// AddLength stores a length prefix followed by data. Returns false if the
// whole datagram does not fit.
func (rb *RingBuffer) AddLength(data []byte) bool {
	length := len(data)
	if length > MAX_DATAGRAM || !rb.HasSpace(LENGTH_PREFIX+length) {
		return false
	}

	rb.AddData([]byte{byte(length >> 8), byte(length & 0xFF)})
	rb.AddData(data)
	return true
}

func (rb *RingBuffer) nextLength() (int, bool) {
	var prefix [LENGTH_PREFIX]byte
	if !rb.Peek(prefix[:]) {
		return 0, false
	}
	length := (int(prefix[0]) << 8) | int(prefix[1])
	if rb.size < LENGTH_PREFIX+length {
		return 0, false
	}
	return length, true
}

// GetLength removes the oldest datagram and copies it into data. A datagram
// longer than data is truncated, like a UDP read into a short buffer; the
// returned length is the number of bytes copied.
func (rb *RingBuffer) GetLength(data []byte) (int, bool) {
	length, ok := rb.nextLength()
	if !ok {
		return 0, false
	}

	rb.skip(LENGTH_PREFIX)
	n := min(length, len(data))
	rb.GetData(data[:n])
	rb.skip(length - n)

	return n, true
}

// DropOldest discards the oldest datagram. Returns false if none is stored.
func (rb *RingBuffer) DropOldest() bool {
	length, ok := rb.nextLength()
	if !ok {
		return false
	}
	rb.skip(LENGTH_PREFIX + length)
	return true
}
