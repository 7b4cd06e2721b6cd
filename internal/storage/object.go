package storage

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	fferrors "github.com/jittakal/fifolog/internal/errors"
	"github.com/jittakal/fifolog/pkg/encoder"
	"github.com/jittakal/fifolog/pkg/sink"
	"github.com/jittakal/fifolog/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ sink.Sink = (*ObjectSink)(nil)

// ObjectSink stores each drained chunk as one segment object in a bucket.
// Objects are named
//
//	<base>/<stream>/dt=YYYY-MM-DD/segment_YYYYMMDD_HHMMSS_NNN<ext>
//
// and the chunk is reported written only after the upload returns.
type ObjectSink struct {
	backend  string
	stream   string
	router   storage.Router
	encoder  encoder.Encoder
	uploader storage.Uploader
	logger   *zap.Logger
	metrics  MetricsCollector

	mu            sync.Mutex
	closed        bool
	sequence      int64  // Total segments written
	fileSequence  int    // Sequence counter for segments in the same second
	lastTimestamp string // Last timestamp used for segment names
	now           func() time.Time
}

// NewObjectSink creates a segment sink on top of an uploader.
func NewObjectSink(
	backend string,
	stream string,
	router storage.Router,
	enc encoder.Encoder,
	uploader storage.Uploader,
	logger *zap.Logger,
	metrics MetricsCollector,
) *ObjectSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ObjectSink{
		backend:  backend,
		stream:   stream,
		router:   router,
		encoder:  enc,
		uploader: uploader,
		logger:   logger.Named(backend + "_sink"),
		metrics:  metrics,
		now:      time.Now,
	}
}

// Write encodes p as one segment and uploads it.
// On failure no bytes are reported written.
func (s *ObjectSink) Write(ctx context.Context, p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fferrors.ErrSinkClosed
	}

	startTime := s.now()
	seg := encoder.Segment{
		Stream:    s.stream,
		Sequence:  s.sequence + 1,
		CreatedAt: startTime,
		Data:      p,
	}

	var body bytes.Buffer
	if _, err := s.encoder.Encode(&body, seg); err != nil {
		return 0, s.fail("encode", "", err)
	}

	key := ObjectKey(s.router.Route(s.stream, startTime)) + s.segmentName(startTime)

	if err := s.uploader.Upload(ctx, key, s.encoder.ContentType(), body.Bytes()); err != nil {
		return 0, s.fail("upload", key, err)
	}
	s.sequence++

	format := string(s.encoder.Format())
	if s.metrics != nil {
		s.metrics.IncSegmentsWritten(s.backend, format, "success")
		s.metrics.ObserveSegmentSize(s.backend, format, float64(body.Len()))
	}

	s.logger.Debug("wrote segment",
		zap.String("key", key),
		zap.Int64("sequence", seg.Sequence),
		zap.Int("chunk_bytes", len(p)),
		zap.Int("object_bytes", body.Len()),
		zap.Duration("duration", time.Since(startTime)),
	)

	return len(p), nil
}

func (s *ObjectSink) segmentName(t time.Time) string {
	timestamp := t.UTC().Format("20060102_150405")
	if timestamp == s.lastTimestamp {
		s.fileSequence++
	} else {
		s.fileSequence = 1
		s.lastTimestamp = timestamp
	}
	return fmt.Sprintf("segment_%s_%03d%s", timestamp, s.fileSequence, s.encoder.FileExtension())
}

func (s *ObjectSink) fail(operation, key string, err error) error {
	if s.metrics != nil {
		s.metrics.IncStorageErrors(s.backend, operation)
		s.metrics.IncSegmentsWritten(s.backend, string(s.encoder.Format()), "failure")
	}
	return &fferrors.StorageError{
		Backend:   s.backend,
		Operation: operation,
		Path:      key,
		Err:       err,
	}
}

// Backend returns the backend name.
func (s *ObjectSink) Backend() string {
	return s.backend
}

// Segments returns the number of segments written.
func (s *ObjectSink) Segments() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sequence
}

// Close closes the uploader.
func (s *ObjectSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("closing object sink", zap.Int64("segments", s.sequence))
	return s.uploader.Close()
}
