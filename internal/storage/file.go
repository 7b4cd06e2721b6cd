package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	fferrors "github.com/jittakal/fifolog/internal/errors"
	"github.com/jittakal/fifolog/pkg/sink"
	"github.com/jittakal/fifolog/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ sink.Sink = (*FileSink)(nil)

// MetricsCollector defines metrics operations for storage.
type MetricsCollector interface {
	IncSegmentsWritten(backend, format, status string)
	ObserveSegmentSize(backend, format string, size float64)
	IncFileRotations(reason string)
	IncStorageErrors(backend string, operation string)
}

// FileConfig contains local log file configuration.
type FileConfig struct {
	Path            string
	Fsync           bool
	RotationEnabled bool
	Rotation        PolicyConfig
}

// FileSink appends drained bytes to a local log file opened in append mode.
// When rotation is enabled the active file is renamed with a timestamp
// suffix once the policy fires, and a fresh file is opened at Path.
type FileSink struct {
	path    string
	fsync   bool
	policy  storage.RotationPolicy
	logger  *zap.Logger
	metrics MetricsCollector

	mu            sync.Mutex
	file          *os.File
	stats         storage.FileStats
	closed        bool
	fileSequence  int    // Sequence counter for files rotated in the same second
	lastTimestamp string // Last timestamp used for rotated file names
	now           func() time.Time
}

// NewFileSink creates a new log file sink.
func NewFileSink(cfg FileConfig, logger *zap.Logger, metrics MetricsCollector) (*FileSink, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("file path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	s := &FileSink{
		path:    cfg.Path,
		fsync:   cfg.Fsync,
		logger:  logger.Named("file_sink"),
		metrics: metrics,
		now:     time.Now,
	}
	if cfg.RotationEnabled {
		s.policy = NewPolicy(cfg.Rotation)
	}

	if err := s.open(); err != nil {
		return nil, err
	}

	s.logger.Info("file sink created",
		zap.String("path", cfg.Path),
		zap.Bool("fsync", cfg.Fsync),
		zap.Bool("rotation", cfg.RotationEnabled),
		zap.Int64("existing_bytes", s.stats.SizeBytes),
	)

	return s, nil
}

// open opens the active file and seeds stats from its current size.
func (s *FileSink) open() error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	s.file = f
	s.stats = storage.FileStats{SizeBytes: info.Size()}
	if info.Size() > 0 {
		s.stats.FirstWriteTime = info.ModTime()
	}
	return nil
}

// Write appends p to the active file.
func (s *FileSink) Write(ctx context.Context, p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fferrors.ErrSinkClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if s.policy != nil && s.policy.ShouldRotate(s.stats) {
		if err := s.rotateLocked("policy"); err != nil {
			return 0, err
		}
	}

	n, err := s.file.Write(p)
	s.record(n)
	if err != nil {
		return n, s.fail("write", err)
	}

	if s.fsync {
		if err := s.file.Sync(); err != nil {
			return n, s.fail("sync", err)
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveSegmentSize("file", "raw", float64(n))
	}
	return n, nil
}

func (s *FileSink) record(n int) {
	if n <= 0 {
		return
	}
	now := s.now()
	if s.stats.FirstWriteTime.IsZero() {
		s.stats.FirstWriteTime = now
	}
	s.stats.LastWriteTime = now
	s.stats.SizeBytes += int64(n)
	s.stats.Writes++
}

func (s *FileSink) fail(operation string, err error) error {
	if s.metrics != nil {
		s.metrics.IncStorageErrors("file", operation)
	}
	return &fferrors.StorageError{
		Backend:   "file",
		Operation: operation,
		Path:      s.path,
		Err:       err,
	}
}

// Rotate rotates the active file now, unless it is empty.
func (s *FileSink) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fferrors.ErrSinkClosed
	}
	if s.stats.SizeBytes == 0 {
		return nil
	}
	return s.rotateLocked("manual")
}

// rotateLocked renames the active file to
// <name>_YYYYMMDD_HHMMSS_NNN<ext> and reopens Path.
func (s *FileSink) rotateLocked(reason string) error {
	if err := s.file.Close(); err != nil {
		return s.fail("rotate", err)
	}

	rotated := s.rotatedName()
	if err := os.Rename(s.path, rotated); err != nil {
		// Keep appending to the original file
		if openErr := s.open(); openErr != nil {
			return s.fail("rotate", openErr)
		}
		return s.fail("rotate", err)
	}

	previous := s.stats
	if err := s.open(); err != nil {
		return s.fail("rotate", err)
	}

	if s.metrics != nil {
		s.metrics.IncFileRotations(reason)
	}
	s.logger.Info("rotated log file",
		zap.String("reason", reason),
		zap.String("rotated_to", rotated),
		zap.Int64("size_bytes", previous.SizeBytes),
		zap.Int("writes", previous.Writes),
	)
	return nil
}

func (s *FileSink) rotatedName() string {
	timestamp := s.now().Format("20060102_150405")
	if timestamp == s.lastTimestamp {
		s.fileSequence++
	} else {
		s.fileSequence = 1
		s.lastTimestamp = timestamp
	}

	ext := filepath.Ext(s.path)
	base := strings.TrimSuffix(s.path, ext)
	return fmt.Sprintf("%s_%s_%03d%s", base, timestamp, s.fileSequence, ext)
}

// Stats returns statistics for the active file.
func (s *FileSink) Stats() storage.FileStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Backend returns the backend name.
func (s *FileSink) Backend() string {
	return "file"
}

// Close syncs and closes the active file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.logger.Info("closing file sink", zap.String("path", s.path))
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return s.fail("sync", err)
	}
	if err := s.file.Close(); err != nil {
		return s.fail("close", err)
	}
	return nil
}
