// Package buffer defines interfaces for bounded byte buffering.
//
// Buffers sit between a record producer and a storage drain so that the
// latency of a logging call does not depend on the latency of storage.
package buffer

// State describes how full a buffer is.
type State int

const (
	// StateEmpty means no bytes are buffered.
	StateEmpty State = iota
	// StatePartial means some bytes are buffered and some space is free.
	StatePartial
	// StateFull means no space is free.
	StateFull
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePartial:
		return "partial"
	case StateFull:
		return "full"
	default:
		return "unknown"
	}
}

// Buffer is a fixed-capacity FIFO of bytes.
// All implementations must be thread-safe.
type Buffer interface {
	// Capacity returns the fixed size of the buffer in bytes.
	Capacity() int

	// Occupancy returns the number of bytes stored and not yet read.
	Occupancy() int

	// State returns the current fill state.
	State() State

	// WriteBlock stores the concatenation of blocks as a single unit.
	// Either every byte is stored or none is.
	WriteBlock(blocks ...[]byte) (int, error)

	// ReadBlock fills dst completely from the head of the buffer.
	// Either len(dst) bytes are consumed or none are.
	ReadBlock(dst []byte) (int, error)
}
