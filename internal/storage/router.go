// Package storage implements durable sinks for drained log bytes.
package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/jittakal/fifolog/pkg/storage"
)

// Ensure implementations satisfy interfaces.
var (
	_ storage.Router         = (*DefaultRouter)(nil)
	_ storage.RotationPolicy = (*CompositePolicy)(nil)
)

// DefaultRouter implements Hive-style date partitioning for object paths.
type DefaultRouter struct {
	protocol string
	bucket   string
	basePath string
}

// NewRouter creates a new storage router.
func NewRouter(protocol, bucket, basePath string) *DefaultRouter {
	return &DefaultRouter{
		protocol: protocol,
		bucket:   bucket,
		basePath: strings.Trim(basePath, "/"),
	}
}

// Route returns the storage prefix for a stream at the given time.
// Format: protocol://bucket/basePath/stream/dt=YYYY-MM-DD/
// The base path segment is omitted when empty.
func (r *DefaultRouter) Route(stream string, t time.Time) string {
	date := t.UTC().Format("2006-01-02")

	if r.basePath == "" {
		return fmt.Sprintf("%s://%s/%s/dt=%s/", r.protocol, r.bucket, stream, date)
	}
	return fmt.Sprintf("%s://%s/%s/%s/dt=%s/", r.protocol, r.bucket, r.basePath, stream, date)
}

// ObjectKey strips the protocol and bucket from a routed path, leaving the
// key prefix inside the bucket.
func ObjectKey(path string) string {
	if i := strings.Index(path, "://"); i >= 0 {
		rest := path[i+3:]
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) == 2 {
			return parts[1]
		}
		return ""
	}
	return strings.TrimPrefix(path, "/")
}

// RotationStrategy determines how rotation conditions combine.
type RotationStrategy string

const (
	// StrategyAny rotates when any configured limit is reached.
	StrategyAny RotationStrategy = "any"
	// StrategyAll rotates only when every configured limit is reached.
	StrategyAll RotationStrategy = "all"
)

// PolicyConfig configures rotation behavior. Zero limits are disabled.
type PolicyConfig struct {
	MaxFileSizeMB      int64
	MaxWritesPerFile   int
	MaxDurationSeconds int
	Strategy           string
}

// NewPolicy creates a new rotation policy (alias for NewCompositePolicy).
func NewPolicy(config PolicyConfig) *CompositePolicy {
	return NewCompositePolicy(config)
}

// CompositePolicy rotates based on multiple criteria.
type CompositePolicy struct {
	maxSizeBytes int64
	maxWrites    int
	maxDuration  time.Duration
	strategy     RotationStrategy
	now          func() time.Time
}

// NewCompositePolicy creates a new composite rotation policy.
func NewCompositePolicy(config PolicyConfig) *CompositePolicy {
	strategy := RotationStrategy(config.Strategy)
	if strategy != StrategyAll {
		strategy = StrategyAny
	}
	return &CompositePolicy{
		maxSizeBytes: config.MaxFileSizeMB * 1024 * 1024,
		maxWrites:    config.MaxWritesPerFile,
		maxDuration:  time.Duration(config.MaxDurationSeconds) * time.Second,
		strategy:     strategy,
		now:          time.Now,
	}
}

// ShouldRotate reports whether the configured limits are reached.
// An empty file never rotates.
func (p *CompositePolicy) ShouldRotate(stats storage.FileStats) bool {
	if stats.Writes == 0 {
		return false
	}

	var checks []bool
	if p.maxSizeBytes > 0 {
		checks = append(checks, stats.SizeBytes >= p.maxSizeBytes)
	}
	if p.maxWrites > 0 {
		checks = append(checks, stats.Writes >= p.maxWrites)
	}
	if p.maxDuration > 0 && !stats.FirstWriteTime.IsZero() {
		checks = append(checks, p.now().Sub(stats.FirstWriteTime) >= p.maxDuration)
	}
	if len(checks) == 0 {
		return false
	}

	if p.strategy == StrategyAll {
		for _, c := range checks {
			if !c {
				return false
			}
		}
		return true
	}

	for _, c := range checks {
		if c {
			return true
		}
	}
	return false
}
