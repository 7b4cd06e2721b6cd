package kafka

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	fferrors "github.com/jittakal/fifolog/internal/errors"
	"github.com/jittakal/fifolog/pkg/sink"
)

// Ensure implementation satisfies interface at compile time.
var _ sink.Sink = (*ProducerSink)(nil)

// ProducerMetrics defines metrics operations for the Kafka sink.
type ProducerMetrics interface {
	IncSegmentsWritten(backend, format, status string)
	ObserveSegmentSize(backend, format string, size float64)
	IncStorageErrors(backend string, operation string)
}

// ProducerConfig contains Kafka sink configuration.
type ProducerConfig struct {
	Security        SecurityConfig
	Topic           string
	Key             string
	RequiredAcks    string
	Compression     string
	MaxMessageBytes int
}

// ProducerSink publishes each drained chunk as one Kafka message.
// A chunk counts as written once the broker acknowledges it.
type ProducerSink struct {
	producer sarama.SyncProducer
	topic    string
	key      string
	logger   *zap.Logger
	metrics  ProducerMetrics

	mu       sync.Mutex
	closed   bool
	sequence int64
}

// NewProducerSink creates a Kafka sink backed by a sarama SyncProducer.
func NewProducerSink(cfg ProducerConfig, logger *zap.Logger, metrics ProducerMetrics) (*ProducerSink, error) {
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka sink topic is required")
	}
	if len(cfg.Security.BootstrapServers) == 0 {
		return nil, fmt.Errorf("kafka bootstrap servers are required")
	}

	saramaConfig, err := newProducerConfig(cfg)
	if err != nil {
		return nil, err
	}

	producer, err := sarama.NewSyncProducer(cfg.Security.BootstrapServers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	s := newProducerSink(producer, cfg, logger, metrics)
	s.logger.Info("kafka sink created",
		zap.Strings("bootstrap_servers", cfg.Security.BootstrapServers),
		zap.String("topic", cfg.Topic),
		zap.String("required_acks", cfg.RequiredAcks),
		zap.String("compression", cfg.Compression),
	)
	return s, nil
}

func newProducerSink(producer sarama.SyncProducer, cfg ProducerConfig, logger *zap.Logger, metrics ProducerMetrics) *ProducerSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProducerSink{
		producer: producer,
		topic:    cfg.Topic,
		key:      cfg.Key,
		logger:   logger.Named("kafka_sink"),
		metrics:  metrics,
	}
}

func newProducerConfig(cfg ProducerConfig) (*sarama.Config, error) {
	config, err := newSaramaConfig(cfg.Security)
	if err != nil {
		return nil, err
	}

	acks, err := parseRequiredAcks(cfg.RequiredAcks)
	if err != nil {
		return nil, err
	}
	codec, err := parseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	config.Producer.RequiredAcks = acks
	config.Producer.Compression = codec
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	if cfg.MaxMessageBytes > 0 {
		config.Producer.MaxMessageBytes = cfg.MaxMessageBytes
	}

	// sarama requires a single in-flight request for idempotent producers
	if acks == sarama.WaitForAll {
		config.Producer.Idempotent = true
		config.Net.MaxOpenRequests = 1
	}
	return config, nil
}

func parseRequiredAcks(s string) (sarama.RequiredAcks, error) {
	switch strings.ToLower(s) {
	case "", "all", "-1":
		return sarama.WaitForAll, nil
	case "local", "leader", "1":
		return sarama.WaitForLocal, nil
	case "none", "0":
		return sarama.NoResponse, nil
	}
	return 0, fmt.Errorf("unsupported required acks: %s", s)
}

func parseCompression(s string) (sarama.CompressionCodec, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return sarama.CompressionNone, nil
	case "gzip":
		return sarama.CompressionGZIP, nil
	case "snappy":
		return sarama.CompressionSnappy, nil
	case "lz4":
		return sarama.CompressionLZ4, nil
	case "zstd":
		return sarama.CompressionZSTD, nil
	}
	return sarama.CompressionNone, fmt.Errorf("unsupported kafka compression: %s", s)
}

// Write sends p as one message.
// On failure no bytes are reported written.
func (s *ProducerSink) Write(ctx context.Context, p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fferrors.ErrSinkClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// The appender reuses its chunk buffer once Write returns
	value := make([]byte, len(p))
	copy(value, p)

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("fifolog-sequence"), Value: []byte(strconv.FormatInt(s.sequence+1, 10))},
		},
		Timestamp: time.Now(),
	}
	if s.key != "" {
		msg.Key = sarama.StringEncoder(s.key)
	}

	partition, offset, err := s.producer.SendMessage(msg)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncStorageErrors("kafka", "send")
			s.metrics.IncSegmentsWritten("kafka", "raw", "failure")
		}
		return 0, &fferrors.StorageError{
			Backend:   "kafka",
			Operation: "send",
			Path:      s.topic,
			Err:       err,
		}
	}
	s.sequence++

	if s.metrics != nil {
		s.metrics.IncSegmentsWritten("kafka", "raw", "success")
		s.metrics.ObserveSegmentSize("kafka", "raw", float64(len(p)))
	}

	s.logger.Debug("sent chunk",
		zap.String("topic", s.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.Int("bytes", len(p)),
	)
	return len(p), nil
}

// Backend returns the backend name.
func (s *ProducerSink) Backend() string {
	return "kafka"
}

// Messages returns the number of chunks acknowledged by the broker.
func (s *ProducerSink) Messages() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sequence
}

// Close closes the producer.
func (s *ProducerSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.logger.Info("closing kafka sink", zap.Int64("messages", s.sequence))
	if err := s.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}
