// Package appender implements a buffered log appender that decouples record
// producers from sink latency through a bounded ring buffer.
package appender

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jittakal/fifolog/internal/buffer"
	fferrors "github.com/jittakal/fifolog/internal/errors"
	"github.com/jittakal/fifolog/pkg/sink"
)

// OverrunPolicy selects what Append does when a record does not fit.
type OverrunPolicy string

const (
	// PolicyDrop discards the record immediately. Append latency stays uniform.
	PolicyDrop OverrunPolicy = "drop"
	// PolicyFlush drains the ring synchronously, then retries once before dropping.
	PolicyFlush OverrunPolicy = "flush"
)

// Default sizes, matching the classic 8 KiB FIFO drained in 4 KiB chunks.
const (
	DefaultCapacity  = 8 * 1024
	DefaultChunkSize = 4 * 1024
)

// MetricsCollector defines metrics operations for the appender.
type MetricsCollector interface {
	IncRecordsAppended()
	IncRecordsDropped()
	IncRecordsRejected()
	SetOccupancy(bytes float64)
	AddBytesFlushed(bytes float64)
	AddBytesLost(bytes float64)
	IncFlushErrors(stage string)
	ObserveSinkWriteDuration(backend string, duration float64)
}

// Config contains construction-time appender settings.
type Config struct {
	// Capacity is the ring size in bytes. Ignored when Storage is set.
	Capacity int
	// Storage optionally supplies the ring's backing array.
	Storage []byte
	// ChunkSize is the largest block handed to the sink in one Write.
	ChunkSize int
	// Terminator is appended to every record.
	Terminator byte
	// Policy selects the overrun behavior.
	Policy OverrunPolicy
	// FlushOnAppend triggers a flush after every successful append.
	FlushOnAppend bool
}

// DefaultConfig returns the lazy best effort configuration: newline
// terminated records, drop on overrun, flush after every append.
func DefaultConfig() Config {
	return Config{
		Capacity:      DefaultCapacity,
		ChunkSize:     DefaultChunkSize,
		Terminator:    '\n',
		Policy:        PolicyDrop,
		FlushOnAppend: true,
	}
}

// Validate validates appender configuration.
func (c Config) Validate() error {
	if c.Storage == nil && c.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %d", c.Capacity)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	switch c.Policy {
	case PolicyDrop, PolicyFlush:
	default:
		return fmt.Errorf("unsupported overrun policy: %q", c.Policy)
	}
	return nil
}

// Stats is a point-in-time view of the appender.
type Stats struct {
	Capacity       int       `json:"capacity"`
	Occupancy      int       `json:"occupancy"`
	State          string    `json:"state"`
	Appended       uint64    `json:"records_appended"`
	Dropped        uint64    `json:"records_dropped"`
	Rejected       uint64    `json:"records_rejected"`
	BytesFlushed   uint64    `json:"bytes_flushed"`
	BytesLost      uint64    `json:"bytes_lost"`
	FlushErrors    uint64    `json:"flush_errors"`
	LastFlush      time.Time `json:"last_flush,omitempty"`
	LastFlushError string    `json:"last_flush_error,omitempty"`
}

// Appender owns a ring buffer and drains it to a sink.
//
// Append is the producer side and Flush the consumer side. Both may be called
// from different goroutines. Flushes are serialized with each other so the
// scratch chunk has a single consumer; the ring lock is never held across
// sink I/O.
type Appender struct {
	ring       *buffer.Ring
	sink       sink.Sink
	backend    string
	policy     OverrunPolicy
	flushOnApp bool
	terminator []byte
	scratch    []byte
	logger     *zap.Logger
	metrics    MetricsCollector

	flushMu sync.Mutex

	lifecycle sync.RWMutex
	closed    bool

	appended     atomic.Uint64
	dropped      atomic.Uint64
	rejected     atomic.Uint64
	bytesFlushed atomic.Uint64
	bytesLost    atomic.Uint64
	flushErrors  atomic.Uint64
	dropping     atomic.Bool

	statusMu  sync.RWMutex
	lastFlush time.Time
	lastErr   error
}

// New creates an appender writing to s.
func New(cfg Config, s sink.Sink, logger *zap.Logger, metrics MetricsCollector) (*Appender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid appender config: %w", err)
	}
	if s == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		ring *buffer.Ring
		err  error
	)
	if cfg.Storage != nil {
		ring, err = buffer.NewWithStorage(cfg.Storage)
	} else {
		ring, err = buffer.New(cfg.Capacity)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create ring buffer: %w", err)
	}

	a := &Appender{
		ring:       ring,
		sink:       s,
		backend:    sink.BackendOf(s),
		policy:     cfg.Policy,
		flushOnApp: cfg.FlushOnAppend,
		terminator: []byte{cfg.Terminator},
		scratch:    make([]byte, cfg.ChunkSize),
		logger:     logger.Named("appender"),
		metrics:    metrics,
	}

	a.logger.Info("appender created",
		zap.Int("capacity", ring.Capacity()),
		zap.Int("chunk_size", cfg.ChunkSize),
		zap.String("policy", string(cfg.Policy)),
		zap.Bool("flush_on_append", cfg.FlushOnAppend),
		zap.String("backend", a.backend),
	)

	return a, nil
}

// Append stores record followed by the terminator.
//
// A record that can never fit returns ErrRecordTooLarge. A record that does
// not fit right now is dropped and counted, and Append returns nil. After a
// successful store Append may flush inline, so it can block on sink I/O and
// returns any flush error.
func (a *Appender) Append(ctx context.Context, record []byte) error {
	stored, err := a.store(ctx, record)
	if err != nil {
		return err
	}
	if stored && a.flushOnApp {
		return a.Flush(ctx)
	}
	return nil
}

// store writes record into the ring and reports whether it was kept.
func (a *Appender) store(ctx context.Context, record []byte) (bool, error) {
	a.lifecycle.RLock()
	defer a.lifecycle.RUnlock()

	if a.closed {
		return false, fferrors.ErrAppenderClosed
	}

	_, err := a.ring.WriteBlock(record, a.terminator)
	if errors.Is(err, fferrors.ErrRingFull) && a.policy == PolicyFlush {
		if ferr := a.Flush(ctx); ferr != nil {
			a.drop(len(record) + 1)
			return false, ferr
		}
		_, err = a.ring.WriteBlock(record, a.terminator)
	}

	switch {
	case err == nil:
	case errors.Is(err, fferrors.ErrRingFull):
		a.drop(len(record) + 1)
		return false, nil
	case errors.Is(err, fferrors.ErrRecordTooLarge):
		a.rejected.Add(1)
		if a.metrics != nil {
			a.metrics.IncRecordsRejected()
		}
		return false, err
	default:
		return false, err
	}

	a.appended.Add(1)
	a.dropping.Store(false)
	if a.metrics != nil {
		a.metrics.IncRecordsAppended()
		a.metrics.SetOccupancy(float64(a.ring.Occupancy()))
	}
	return true, nil
}

// drop counts a discarded record. Only the first drop of a run is logged.
func (a *Appender) drop(size int) {
	a.dropped.Add(1)
	if a.metrics != nil {
		a.metrics.IncRecordsDropped()
	}
	if !a.dropping.Swap(true) {
		a.logger.Warn("ring buffer overrun, dropping records",
			zap.Int("record_size", size),
			zap.Int("occupancy", a.ring.Occupancy()),
			zap.Int("capacity", a.ring.Capacity()),
		)
	}
}

// Flush drains the bytes buffered when it starts, in chunks of at most the
// configured chunk size. Bytes appended meanwhile wait for the next flush.
//
// A failed ring read leaves the ring untouched. A failed or short sink write
// loses the chunk already dequeued and keeps the remainder buffered. Either
// aborts the flush with a *errors.FlushError; nothing is retried here.
func (a *Appender) Flush(ctx context.Context) error {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()

	remaining := a.ring.Occupancy()
	if remaining == 0 {
		return nil
	}

	start := time.Now()
	flushed := 0

	for remaining > 0 {
		// Cancellation leaves the last flush status untouched
		if err := ctx.Err(); err != nil {
			if a.metrics != nil {
				a.metrics.SetOccupancy(float64(a.ring.Occupancy()))
			}
			return err
		}

		n := min(remaining, len(a.scratch))
		chunk := a.scratch[:n]

		if _, err := a.ring.ReadBlock(chunk); err != nil {
			return a.abort(&fferrors.FlushError{
				Stage: fferrors.StageRead,
				Chunk: n,
				Err:   err,
			})
		}

		writeStart := time.Now()
		written, err := a.sink.Write(ctx, chunk)
		if a.metrics != nil {
			a.metrics.ObserveSinkWriteDuration(a.backend, time.Since(writeStart).Seconds())
		}
		if err == nil && written != n {
			err = fmt.Errorf("%w: %d of %d bytes", fferrors.ErrShortWrite, written, n)
		}
		if err != nil {
			return a.abort(&fferrors.FlushError{
				Stage: fferrors.StageWrite,
				Chunk: n,
				Lost:  n - max(0, min(written, n)),
				Err:   err,
			})
		}

		remaining -= n
		flushed += n
		a.bytesFlushed.Add(uint64(n))
		if a.metrics != nil {
			a.metrics.AddBytesFlushed(float64(n))
		}
	}

	a.finishFlush(nil)
	a.logger.Debug("flushed ring buffer",
		zap.Int("bytes", flushed),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (a *Appender) abort(ferr *fferrors.FlushError) error {
	a.flushErrors.Add(1)
	a.bytesLost.Add(uint64(ferr.Lost))
	if a.metrics != nil {
		a.metrics.IncFlushErrors(ferr.Stage)
		if ferr.Lost > 0 {
			a.metrics.AddBytesLost(float64(ferr.Lost))
		}
	}

	a.logger.Error("flush aborted",
		zap.String("stage", ferr.Stage),
		zap.Int("chunk", ferr.Chunk),
		zap.Int("lost", ferr.Lost),
		zap.Int("remaining", a.ring.Occupancy()),
		zap.String("backend", a.backend),
		zap.Error(ferr.Err),
	)

	a.finishFlush(ferr)
	return ferr
}

func (a *Appender) finishFlush(err error) {
	if a.metrics != nil {
		a.metrics.SetOccupancy(float64(a.ring.Occupancy()))
	}

	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	a.lastFlush = time.Now()
	a.lastErr = err
}

// Run flushes every interval until ctx is cancelled. A failed periodic
// flush is logged; the next tick retries with whatever is buffered.
// With a non-positive interval Run only waits for cancellation.
func (a *Appender) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.logger.Info("periodic flusher started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("periodic flusher stopped")
			return nil
		case <-ticker.C:
			if err := a.Flush(ctx); err != nil && ctx.Err() == nil {
				a.logger.Warn("periodic flush failed", zap.Error(err))
			}
		}
	}
}

// Close rejects further appends, drains what is buffered and closes the sink.
// The sink is closed even when the final drain fails.
func (a *Appender) Close(ctx context.Context) error {
	a.lifecycle.Lock()
	if a.closed {
		a.lifecycle.Unlock()
		return nil
	}
	a.closed = true
	a.lifecycle.Unlock()

	flushErr := a.Flush(ctx)
	if flushErr != nil {
		a.logger.Error("final drain failed",
			zap.Int("remaining", a.ring.Occupancy()),
			zap.Error(flushErr),
		)
	}

	closeErr := a.sink.Close()
	a.logger.Info("appender closed",
		zap.Uint64("appended", a.appended.Load()),
		zap.Uint64("dropped", a.dropped.Load()),
		zap.Uint64("bytes_flushed", a.bytesFlushed.Load()),
	)

	return errors.Join(flushErr, closeErr)
}

// Write implements io.Writer so that loggers can emit records directly.
// One trailing terminator in p is stripped since Append adds its own.
// Dropped records still report len(p) to keep writers from retrying.
func (a *Appender) Write(p []byte) (int, error) {
	record := bytes.TrimSuffix(p, a.terminator)
	if err := a.Append(context.Background(), record); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Sync drains the ring, making Appender usable as a zapcore.WriteSyncer.
func (a *Appender) Sync() error {
	return a.Flush(context.Background())
}

// Occupancy returns the number of buffered bytes.
func (a *Appender) Occupancy() int {
	return a.ring.Occupancy()
}

// Dropped returns the number of records discarded on overrun.
func (a *Appender) Dropped() uint64 {
	return a.dropped.Load()
}

// Healthy reports whether the most recent flush succeeded.
func (a *Appender) Healthy() bool {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	return a.lastErr == nil
}

// Stats returns current appender statistics.
func (a *Appender) Stats() Stats {
	stats := Stats{
		Capacity:     a.ring.Capacity(),
		Occupancy:    a.ring.Occupancy(),
		State:        a.ring.State().String(),
		Appended:     a.appended.Load(),
		Dropped:      a.dropped.Load(),
		Rejected:     a.rejected.Load(),
		BytesFlushed: a.bytesFlushed.Load(),
		BytesLost:    a.bytesLost.Load(),
		FlushErrors:  a.flushErrors.Load(),
	}

	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	stats.LastFlush = a.lastFlush
	if a.lastErr != nil {
		stats.LastFlushError = a.lastErr.Error()
	}
	return stats
}
