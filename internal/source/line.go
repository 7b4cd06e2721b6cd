// Package source implements the record sources that feed the appender.
package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	fferrors "github.com/jittakal/fifolog/internal/errors"
	"github.com/jittakal/fifolog/pkg/source"
)

// Ensure implementations satisfy interface at compile time.
var (
	_ source.Source = (*LineSource)(nil)
	_ source.Source = (*Generator)(nil)
)

// MetricsCollector defines metrics operations for record sources.
type MetricsCollector interface {
	IncSourceRecords(source, status string)
}

// LineSource emits one record per line read from r. Line terminators
// ("\n" or "\r\n") are stripped. Lines longer than maxLine bytes are
// skipped and counted as rejected.
type LineSource struct {
	name    string
	r       io.Reader
	maxLine int
	logger  *zap.Logger
	metrics MetricsCollector
}

// NewLineSource creates a line source. maxLine is usually the ring
// capacity, since longer records can never be appended.
func NewLineSource(name string, r io.Reader, maxLine int, logger *zap.Logger, metrics MetricsCollector) *LineSource {
	if maxLine <= 0 {
		maxLine = 64 * 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LineSource{
		name:    name,
		r:       r,
		maxLine: maxLine,
		logger:  logger.Named("source").With(zap.String("source", name)),
		metrics: metrics,
	}
}

// Name returns the source name.
func (s *LineSource) Name() string {
	return s.name
}

type line struct {
	data     []byte
	tooLong  bool
	length   int
	readErr  error
	finished bool
}

// Run emits lines until EOF or ctx is cancelled. Run returns on
// cancellation even while a read is blocked; the reader goroutine exits
// with the next read.
func (s *LineSource) Run(ctx context.Context, emit source.EmitFunc) error {
	lines := make(chan line)
	done := make(chan struct{})
	defer close(done)

	go s.read(lines, done)

	var emitted int
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("line source stopped", zap.Int("lines", emitted))
			return nil

		case l := <-lines:
			if l.finished {
				if l.readErr != nil {
					return fmt.Errorf("failed to read %s: %w", s.name, l.readErr)
				}
				s.logger.Info("line source reached end of input", zap.Int("lines", emitted))
				return nil
			}
			if l.tooLong {
				s.count("rejected")
				s.logger.Warn("line exceeds maximum record size, skipping",
					zap.Int("length", l.length),
					zap.Int("max_line", s.maxLine),
				)
				continue
			}

			if err := handleEmit(emit, l.data, s.count, s.logger); err != nil {
				return err
			}
			emitted++
		}
	}
}

// read splits the input into lines with a reader buffer of maxLine bytes.
func (s *LineSource) read(out chan<- line, done <-chan struct{}) {
	br := bufio.NewReaderSize(s.r, s.maxLine+2)
	send := func(l line) bool {
		select {
		case out <- l:
			return true
		case <-done:
			return false
		}
	}

	for {
		data, err := br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			length := len(data)
			for errors.Is(err, bufio.ErrBufferFull) {
				data, err = br.ReadSlice('\n')
				length += len(data)
			}
			if !send(line{tooLong: true, length: length}) {
				return
			}
			if err != nil {
				send(line{finished: true, readErr: ignoreEOF(err)})
				return
			}
			continue
		}

		if len(data) > 0 {
			trimmed := bytes.TrimSuffix(bytes.TrimSuffix(data, []byte("\n")), []byte("\r"))
			if len(trimmed) > s.maxLine {
				if !send(line{tooLong: true, length: len(trimmed)}) {
					return
				}
			} else {
				record := make([]byte, len(trimmed))
				copy(record, trimmed)
				if !send(line{data: record}) {
					return
				}
			}
		}

		if err != nil {
			send(line{finished: true, readErr: ignoreEOF(err)})
			return
		}
	}
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *LineSource) count(status string) {
	if s.metrics != nil {
		s.metrics.IncSourceRecords(s.name, status)
	}
}

// handleEmit passes one record to emit. Only a closed appender ends the
// source; rejected records and flush failures are counted and logged.
func handleEmit(emit source.EmitFunc, record []byte, count func(string), logger *zap.Logger) error {
	err := emit(record)
	switch {
	case err == nil:
		count("appended")
		return nil
	case errors.Is(err, fferrors.ErrAppenderClosed):
		return err
	case errors.Is(err, fferrors.ErrRecordTooLarge):
		count("rejected")
		logger.Warn("record rejected", zap.Int("size", len(record)), zap.Error(err))
		return nil
	default:
		count("failed")
		logger.Error("failed to emit record", zap.Error(err))
		return nil
	}
}
