// Package buffer implements a mutex-guarded circular byte buffer.
package buffer

import (
	"fmt"
	"sync"

	"github.com/jittakal/fifolog/internal/errors"
	"github.com/jittakal/fifolog/pkg/buffer"
)

// Ensure implementation satisfies interface at compile time.
var _ buffer.Buffer = (*Ring)(nil)

// Ring is a fixed-capacity circular byte FIFO.
// Every operation holds the mutex for its whole duration and never blocks on I/O.
// Empty and full are told apart by used, since rp == wp in both cases.
type Ring struct {
	data []byte
	rp   int
	wp   int
	used int
	mu   sync.Mutex
}

// New creates a ring with freshly allocated storage of the given capacity.
func New(capacity int) (*Ring, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("ring capacity must be positive, got %d", capacity)
	}
	return &Ring{data: make([]byte, capacity)}, nil
}

// NewWithStorage creates a ring backed by storage. The ring takes ownership
// of storage; its length is the capacity.
func NewWithStorage(storage []byte) (*Ring, error) {
	if len(storage) == 0 {
		return nil, fmt.Errorf("ring storage must not be empty")
	}
	return &Ring{data: storage}, nil
}

// Capacity returns the fixed size of the ring in bytes.
func (r *Ring) Capacity() int {
	return len(r.data)
}

// Occupancy returns the number of buffered bytes.
func (r *Ring) Occupancy() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.used
}

// Free returns the number of bytes that can be written without overrun.
func (r *Ring) Free() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data) - r.used
}

// State returns the current fill state.
func (r *Ring) State() buffer.State {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.used {
	case 0:
		return buffer.StateEmpty
	case len(r.data):
		return buffer.StateFull
	default:
		return buffer.StatePartial
	}
}

// WriteBlock stores the concatenation of blocks, or nothing.
// It returns ErrRecordTooLarge when the blocks could never fit and
// ErrRingFull when they do not fit right now.
func (r *Ring) WriteBlock(blocks ...[]byte) (int, error) {
	total := 0
	for _, b := range blocks {
		total += len(b)
	}

	size := len(r.data)
	if total > size {
		return 0, fmt.Errorf("%w: %d bytes, capacity %d", errors.ErrRecordTooLarge, total, size)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if size-r.used < total {
		return 0, errors.ErrRingFull
	}

	wp := r.wp
	for _, b := range blocks {
		wp = r.put(wp, b)
	}

	r.wp = wp
	r.used += total
	return total, nil
}

// ReadBlock fills dst from the head of the ring, or copies nothing and
// returns ErrRingUnderrun.
func (r *Ring) ReadBlock(dst []byte) (int, error) {
	n := len(dst)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.used < n {
		return 0, errors.ErrRingUnderrun
	}

	r.rp = r.get(r.rp, dst)
	r.used -= n
	return n, nil
}

// put copies src at position wp in at most two segments and returns the
// position after the last byte written.
func (r *Ring) put(wp int, src []byte) int {
	if len(src) == 0 {
		return wp
	}
	n := copy(r.data[wp:], src)
	if n < len(src) {
		n = copy(r.data, src[n:])
		return n
	}
	return r.wrap(wp + n)
}

// get copies len(dst) bytes from position rp in at most two segments and
// returns the position after the last byte read.
func (r *Ring) get(rp int, dst []byte) int {
	if len(dst) == 0 {
		return rp
	}
	n := copy(dst, r.data[rp:])
	if n < len(dst) {
		n = copy(dst[n:], r.data)
		return n
	}
	return r.wrap(rp + n)
}

func (r *Ring) wrap(pos int) int {
	if pos == len(r.data) {
		return 0
	}
	return pos
}
