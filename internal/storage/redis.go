package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	fferrors "github.com/jittakal/fifolog/internal/errors"
	"github.com/jittakal/fifolog/pkg/sink"
)

// Ensure implementation satisfies interface at compile time.
var _ sink.Sink = (*RedisSink)(nil)

// RedisConfig contains Redis stream sink configuration.
type RedisConfig struct {
	Addr        string
	Username    string
	Password    string
	DB          int
	Stream      string
	MaxLen      int64
	DialTimeout time.Duration
}

// redisAPI is the subset of redis.Client used here.
type redisAPI interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisSink appends each drained chunk as one entry on a Redis stream.
// Entries carry the chunk under the "data" field and a sink sequence
// under "seq". With MaxLen set the stream is trimmed approximately.
type RedisSink struct {
	client  redisAPI
	stream  string
	maxLen  int64
	logger  *zap.Logger
	metrics MetricsCollector

	mu       sync.Mutex
	closed   bool
	sequence int64
	lastID   string
}

// NewRedisSink connects to Redis and creates a stream sink. A failed
// ping is logged, not returned; the first write reports the error.
func NewRedisSink(ctx context.Context, cfg RedisConfig, logger *zap.Logger, metrics MetricsCollector) (*RedisSink, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if cfg.Stream == "" {
		return nil, fmt.Errorf("redis stream is required")
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
		MaxRetries:   3,
	})

	s := newRedisSink(client, cfg, logger, metrics)
	s.ping(ctx)

	s.logger.Info("redis sink created",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.String("stream", cfg.Stream),
		zap.Int64("max_len", cfg.MaxLen),
	)
	return s, nil
}

func newRedisSink(client redisAPI, cfg RedisConfig, logger *zap.Logger, metrics MetricsCollector) *RedisSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSink{
		client:  client,
		stream:  cfg.Stream,
		maxLen:  cfg.MaxLen,
		logger:  logger.Named("redis_sink"),
		metrics: metrics,
	}
}

func (s *RedisSink) ping(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := s.client.Ping(ctx).Err()
	elapsed := time.Since(start)

	if err != nil {
		s.logger.Warn("connection failed", zap.Error(err), zap.Duration("ping_rtt", elapsed))
	} else {
		s.logger.Info("connection established", zap.Duration("ping_rtt", elapsed))
	}
}

// Write adds p to the stream as one entry.
// On failure no bytes are reported written.
func (s *RedisSink) Write(ctx context.Context, p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fferrors.ErrSinkClosed
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"data": string(p),
			"seq":  s.sequence + 1,
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncStorageErrors("redis", "xadd")
			s.metrics.IncSegmentsWritten("redis", "raw", "failure")
		}
		return 0, &fferrors.StorageError{
			Backend:   "redis",
			Operation: "xadd",
			Path:      s.stream,
			Err:       err,
		}
	}
	s.sequence++
	s.lastID = id

	if s.metrics != nil {
		s.metrics.IncSegmentsWritten("redis", "raw", "success")
		s.metrics.ObserveSegmentSize("redis", "raw", float64(len(p)))
	}
	s.logger.Debug("added stream entry", zap.String("id", id), zap.Int("bytes", len(p)))
	return len(p), nil
}

// LastID returns the ID of the most recent stream entry.
func (s *RedisSink) LastID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID
}

// Backend returns the backend name.
func (s *RedisSink) Backend() string {
	return "redis"
}

// Close closes the Redis client.
func (s *RedisSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("closing redis sink", zap.Int64("entries", s.sequence))
	return s.client.Close()
}
