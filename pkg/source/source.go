// Package source defines interfaces for record producers.
//
// A source reads records from somewhere (a stream, a broker, a generator)
// and hands each one to an emit function, usually an appender.
package source

import (
	"context"
)

// EmitFunc receives one record. The record is only valid for the
// duration of the call.
type EmitFunc func(record []byte) error

// Source produces records until its input ends or ctx is cancelled.
type Source interface {
	// Run emits records in order. It returns nil when the input ends or
	// ctx is cancelled, and the first emit error it cannot absorb.
	Run(ctx context.Context, emit EmitFunc) error

	// Name identifies the source in logs and metrics.
	Name() string
}
