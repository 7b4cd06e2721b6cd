// Package buffer provides a thread-safe circular byte buffer.
//
// Ring is a fixed-capacity FIFO of bytes shared between one producer and one
// consumer. Storage is allocated once and never resized.
//
// # Ring
//
//	ring, err := buffer.New(8 * 1024)
//
//	// Store a record and its terminator as one unit
//	if _, err := ring.WriteBlock(record, []byte{'\n'}); err != nil {
//	    if errors.Is(err, errors.ErrRingFull) {
//	        // Not enough room right now: drop or drain first
//	    }
//	}
//
//	// Drain exactly n bytes
//	chunk := make([]byte, n)
//	if _, err := ring.ReadBlock(chunk); err != nil {
//	    // ErrRingUnderrun: fewer than n bytes buffered
//	}
//
// # All-or-nothing
//
// WriteBlock and ReadBlock either transfer every requested byte and update
// the counters, or transfer nothing and leave the ring unchanged:
//
//   - WriteBlock fails with ErrRecordTooLarge when the block exceeds capacity
//   - WriteBlock fails with ErrRingFull when free space is insufficient
//   - ReadBlock fails with ErrRingUnderrun when occupancy is insufficient
//
// # Thread Safety
//
// A single sync.Mutex guards the positions, the occupancy counter and the
// storage. Each call holds it for one block copy and releases it on every
// return path. No call performs I/O.
//
// # Copying
//
// A block that crosses the end of storage is copied in two contiguous
// segments, before and after the wrap point.
package buffer
