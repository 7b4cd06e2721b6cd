package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	fferrors "github.com/jittakal/fifolog/internal/errors"
	"github.com/jittakal/fifolog/pkg/source"
)

// Ensure implementation satisfies interfaces at compile time.
var (
	_ source.Source               = (*ConsumerSource)(nil)
	_ sarama.ConsumerGroupHandler = (*consumerGroupHandler)(nil)
)

// ConsumerConfig contains Kafka consumer group configuration.
type ConsumerConfig struct {
	Security            SecurityConfig
	GroupID             string
	Topics              []string
	AutoOffsetReset     string
	SessionTimeoutMS    int
	HeartbeatIntervalMS int
}

// ConsumerMetrics defines metrics operations for the Kafka source.
type ConsumerMetrics interface {
	IncMessagesConsumed(topic string, partition int32)
	IncRebalances(groupID string)
	IncSourceRecords(source, status string)
}

// ConsumerSource emits the value of every message on the subscribed
// topics as one record. A message is marked once emit has returned, so
// records still in the ring when the process dies are not redelivered.
type ConsumerSource struct {
	group   sarama.ConsumerGroup
	config  ConsumerConfig
	logger  *zap.Logger
	metrics ConsumerMetrics

	mu     sync.Mutex
	closed bool
}

// NewConsumerSource creates a consumer group source.
func NewConsumerSource(cfg ConsumerConfig, logger *zap.Logger, metrics ConsumerMetrics) (*ConsumerSource, error) {
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka consumer group ID is required")
	}
	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("kafka source topics are required")
	}

	saramaConfig, err := newSaramaConfig(cfg.Security)
	if err != nil {
		return nil, err
	}
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{
		sarama.NewBalanceStrategyRoundRobin(),
	}
	saramaConfig.Consumer.Offsets.Initial = offsetInitial(cfg.AutoOffsetReset)
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
	if cfg.SessionTimeoutMS > 0 {
		saramaConfig.Consumer.Group.Session.Timeout = time.Duration(cfg.SessionTimeoutMS) * time.Millisecond
	}
	if cfg.HeartbeatIntervalMS > 0 {
		saramaConfig.Consumer.Group.Heartbeat.Interval = time.Duration(cfg.HeartbeatIntervalMS) * time.Millisecond
	}
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Security.BootstrapServers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("kafka source created",
		zap.String("group_id", cfg.GroupID),
		zap.Strings("topics", cfg.Topics),
		zap.Strings("bootstrap_servers", cfg.Security.BootstrapServers),
		zap.Int("session_timeout_ms", cfg.SessionTimeoutMS),
	)

	return &ConsumerSource{
		group:   group,
		config:  cfg,
		logger:  logger.Named("kafka_source"),
		metrics: metrics,
	}, nil
}

// Name returns "kafka".
func (c *ConsumerSource) Name() string {
	return "kafka"
}

// Run joins the group and emits messages until ctx is cancelled. Group
// sessions end on every rebalance; Run rejoins until ctx is done.
func (c *ConsumerSource) Run(ctx context.Context, emit source.EmitFunc) error {
	handler := &consumerGroupHandler{
		groupID: c.config.GroupID,
		emit:    emit,
		logger:  c.logger,
		metrics: c.metrics,
	}

	go func() {
		for err := range c.group.Errors() {
			c.logger.Warn("consumer group error", zap.Error(err))
		}
	}()

	for {
		if err := c.group.Consume(ctx, c.config.Topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return fmt.Errorf("consumer group session failed: %w", err)
		}
		if err := handler.fatalErr(); err != nil {
			return err
		}
		if ctx.Err() != nil {
			c.logger.Info("kafka source stopped")
			return nil
		}
	}
}

// Close leaves the group and releases resources.
func (c *ConsumerSource) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	c.logger.Info("closing kafka source")
	return c.group.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler.
type consumerGroupHandler struct {
	groupID string
	emit    source.EmitFunc
	logger  *zap.Logger
	metrics ConsumerMetrics

	// fatal is set when emit reports the appender is closed
	mu    sync.Mutex
	fatal error
}

func (h *consumerGroupHandler) fatalErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fatal
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (h *consumerGroupHandler) Setup(session sarama.ConsumerGroupSession) error {
	h.logger.Info("consumer group session setup",
		zap.String("member_id", session.MemberID()),
		zap.Int32("generation_id", session.GenerationID()),
		zap.Any("claims", session.Claims()),
	)
	if h.metrics != nil {
		h.metrics.IncRebalances(h.groupID)
	}
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (h *consumerGroupHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	h.logger.Info("consumer group session cleanup", zap.String("member_id", session.MemberID()))
	return nil
}

// ConsumeClaim emits messages from one partition in offset order.
func (h *consumerGroupHandler) ConsumeClaim(
	session sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
) error {
	h.logger.Info("started consuming partition",
		zap.String("topic", claim.Topic()),
		zap.Int32("partition", claim.Partition()),
		zap.Int64("initial_offset", claim.InitialOffset()),
	)

	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if h.metrics != nil {
				h.metrics.IncMessagesConsumed(message.Topic, message.Partition)
			}

			if err := h.handle(message); err != nil {
				h.mu.Lock()
				h.fatal = err
				h.mu.Unlock()
				return err
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// handle emits one message. Only a closed appender stops consumption;
// rejected records and failed flushes are logged and the message is
// still marked.
func (h *consumerGroupHandler) handle(message *sarama.ConsumerMessage) error {
	err := h.emit(message.Value)
	switch {
	case err == nil:
		h.count("appended")
		return nil

	case errors.Is(err, fferrors.ErrAppenderClosed):
		return err

	case errors.Is(err, fferrors.ErrRecordTooLarge):
		h.count("rejected")
		h.logger.Warn("record rejected",
			zap.String("topic", message.Topic),
			zap.Int32("partition", message.Partition),
			zap.Int64("offset", message.Offset),
			zap.Int("size", len(message.Value)),
			zap.Error(err),
		)
		return nil

	default:
		h.count("failed")
		h.logger.Error("failed to emit record",
			zap.String("topic", message.Topic),
			zap.Int32("partition", message.Partition),
			zap.Int64("offset", message.Offset),
			zap.Error(err),
		)
		return nil
	}
}

func (h *consumerGroupHandler) count(status string) {
	if h.metrics != nil {
		h.metrics.IncSourceRecords("kafka", status)
	}
}

// offsetInitial converts the AutoOffsetReset config to Sarama's offset constant.
func offsetInitial(autoOffsetReset string) int64 {
	switch autoOffsetReset {
	case "earliest":
		return sarama.OffsetOldest
	case "latest":
		return sarama.OffsetNewest
	default:
		return sarama.OffsetNewest
	}
}
