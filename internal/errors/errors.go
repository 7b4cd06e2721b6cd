// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrRingFull       = errors.New("ring buffer has insufficient free space")
	ErrRingUnderrun   = errors.New("ring buffer holds fewer bytes than requested")
	ErrRecordTooLarge = errors.New("record exceeds ring buffer capacity")
	ErrShortWrite     = errors.New("sink accepted fewer bytes than the chunk")
	ErrSinkClosed     = errors.New("sink is closed")
	ErrAppenderClosed = errors.New("appender is closed")
	ErrConnectionLost = errors.New("connection lost")
)

// Flush stages reported by FlushError.
const (
	StageRead  = "read"
	StageWrite = "write"
)

// FlushError reports a condition that aborted a single flush. Bytes already
// dequeued for the failing chunk are counted in Lost; anything still in the
// ring is left for the next flush.
type FlushError struct {
	Stage string
	Chunk int
	Lost  int
	Err   error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("flush aborted: stage=%s chunk=%d lost=%d: %v",
		e.Stage, e.Chunk, e.Lost, e.Err)
}

func (e *FlushError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a later flush may succeed. Read failures mean
// the ring invariant was broken and will not heal by retrying.
func (e *FlushError) IsRetryable() bool {
	if e.Stage == StageRead {
		return false
	}
	return IsRetryable(e.Err) || errors.Is(e.Err, ErrShortWrite)
}

// StorageError represents a sink operation failure.
type StorageError struct {
	Backend   string
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: backend=%s operation=%s path=%s: %v",
		e.Backend, e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsRetryable determines if a StorageError is retryable based on the operation type.
func (e *StorageError) IsRetryable() bool {
	switch e.Operation {
	case "write", "upload", "send", "xadd", "rotate":
		return true
	}
	return false
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
// It first checks if the error implements the Retryable interface,
// then falls back to sentinel errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	if errors.Is(err, ErrConnectionLost) {
		return true
	}

	return false
}
