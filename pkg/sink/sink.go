// Package sink defines interfaces for durable append targets.
//
// A sink receives the opaque byte stream drained from a buffer and makes it
// durable (a local file, an object store, a message broker).
package sink

import (
	"context"
)

// Sink appends bytes to durable storage.
type Sink interface {
	// Write appends p and returns the number of bytes made durable.
	// A count below len(p) is a short write even when err is nil.
	Write(ctx context.Context, p []byte) (int, error)

	// Close flushes pending state and releases resources.
	Close() error
}

// Backend is implemented by sinks that can name their storage backend
// for logs and metrics.
type Backend interface {
	Backend() string
}

// BackendOf returns the backend name of s, or "custom".
func BackendOf(s Sink) string {
	if b, ok := s.(Backend); ok {
		return b.Backend()
	}
	return "custom"
}
