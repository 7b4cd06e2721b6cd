// Package storage defines interfaces shared by the storage sinks.
//
// This package provides abstractions for object placement, object upload
// and log file rotation.
package storage

import (
	"context"
	"time"
)

// Router determines object paths for segments.
type Router interface {
	// Route returns the storage prefix for a stream at the given time.
	Route(stream string, t time.Time) string
}

// Uploader stores a complete object under key.
type Uploader interface {
	// Upload writes body as one object. The object is durable once
	// Upload returns nil.
	Upload(ctx context.Context, key string, contentType string, body []byte) error

	// Close releases client resources.
	Close() error
}

// FileStats describes the log file currently being appended to.
type FileStats struct {
	SizeBytes      int64
	Writes         int
	FirstWriteTime time.Time
	LastWriteTime  time.Time
}

// RotationPolicy determines when to rotate the active log file.
type RotationPolicy interface {
	// ShouldRotate returns true if the file should be rotated before the
	// next write.
	ShouldRotate(stats FileStats) bool
}
