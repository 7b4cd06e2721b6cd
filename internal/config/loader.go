package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jittakal/fifolog/internal/config/dto"
	"github.com/spf13/viper"
)

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FIFOLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load loads configuration from file and environment variables
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	l.setDefaults()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Expand ${VAR} references in string values
	for _, key := range l.v.AllKeys() {
		value := l.v.GetString(key)
		if strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	// Application defaults
	l.v.SetDefault("application.name", "fifolog")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	// Buffer defaults
	l.v.SetDefault("buffer.capacity_bytes", 8*1024)
	l.v.SetDefault("buffer.chunk_size_bytes", 4*1024)
	l.v.SetDefault("buffer.terminator", "\n")
	l.v.SetDefault("buffer.overrun_policy", "drop")
	l.v.SetDefault("buffer.flush_on_append", true)
	l.v.SetDefault("buffer.flush_interval_ms", 1000)

	// Sink defaults
	l.v.SetDefault("sink.backend", "file")
	l.v.SetDefault("sink.format", "raw")
	l.v.SetDefault("sink.file.path", "fifolog.log")
	l.v.SetDefault("sink.file.fsync", false)
	l.v.SetDefault("sink.rotation.enabled", false)
	l.v.SetDefault("sink.rotation.max_file_size_mb", 128)
	l.v.SetDefault("sink.rotation.max_writes_per_file", 0)
	l.v.SetDefault("sink.rotation.max_duration_seconds", 3600)
	l.v.SetDefault("sink.rotation.strategy", "any")
	l.v.SetDefault("sink.s3.use_path_style", false)
	l.v.SetDefault("sink.s3.sse_enabled", true)
	l.v.SetDefault("sink.kafka.required_acks", "all")
	l.v.SetDefault("sink.kafka.compression", "snappy")
	l.v.SetDefault("sink.kafka.max_message_bytes", 1000000)
	l.v.SetDefault("sink.redis.addr", "localhost:6379")
	l.v.SetDefault("sink.redis.stream", "fifolog")
	l.v.SetDefault("sink.redis.dial_timeout_ms", 5000)

	// Kafka connection defaults
	l.v.SetDefault("kafka.security_protocol", "PLAINTEXT")
	l.v.SetDefault("kafka.sasl_mechanism", "PLAIN")
	l.v.SetDefault("kafka.client_id", "fifolog")

	// Source defaults
	l.v.SetDefault("source.type", "stdin")
	l.v.SetDefault("source.generator.interval_ms", 10)
	l.v.SetDefault("source.generator.count", 0)
	l.v.SetDefault("source.generator.min_words", 4)
	l.v.SetDefault("source.generator.max_words", 16)
	l.v.SetDefault("source.kafka.auto_offset_reset", "earliest")
	l.v.SetDefault("source.kafka.session_timeout_ms", 30000)
	l.v.SetDefault("source.kafka.heartbeat_interval_ms", 10000)

	// Record defaults
	l.v.SetDefault("record.format", "raw")
	l.v.SetDefault("record.event_type", "io.fifolog.record")
	l.v.SetDefault("record.source", "fifolog")

	// Encoder defaults
	l.v.SetDefault("parquet.compression", "snappy")
	l.v.SetDefault("avro.codec", "snappy")

	// Observability defaults
	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stderr")
	l.v.SetDefault("observability.metrics.enabled", true)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.metrics.path", "/metrics")
	l.v.SetDefault("observability.health.enabled", true)
	l.v.SetDefault("observability.health.port", 8080)
	l.v.SetDefault("observability.health.liveness_path", "/health/live")
	l.v.SetDefault("observability.health.readiness_path", "/health/ready")

	// Shutdown defaults
	l.v.SetDefault("shutdown.grace_period_seconds", 30)
	l.v.SetDefault("shutdown.force_timeout_seconds", 60)
}

// Validate validates the configuration
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	if err := config.Buffer.Validate(); err != nil {
		return err
	}

	// Sink validation
	switch config.Sink.Backend {
	case "file":
		if err := config.Sink.File.Validate(); err != nil {
			return err
		}
		if config.Sink.Rotation.Strategy != "any" && config.Sink.Rotation.Strategy != "all" {
			return fmt.Errorf("unsupported rotation strategy: %s", config.Sink.Rotation.Strategy)
		}
	case "s3":
		if err := config.Sink.S3.Validate(); err != nil {
			return err
		}
	case "azure":
		if err := config.Sink.Azure.Validate(); err != nil {
			return err
		}
	case "gcs":
		if err := config.Sink.GCS.Validate(); err != nil {
			return err
		}
	case "kafka":
		if len(config.Kafka.BootstrapServers) == 0 {
			return errors.New("kafka.bootstrap_servers is required for kafka sink")
		}
		if err := config.Sink.Kafka.Validate(); err != nil {
			return err
		}
	case "redis":
		if err := config.Sink.Redis.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported sink backend: %s", config.Sink.Backend)
	}

	// Format validation
	switch config.Sink.Format {
	case "raw", "avro", "parquet":
	default:
		return fmt.Errorf("unsupported sink format: %s", config.Sink.Format)
	}

	// Source validation
	switch config.Source.Type {
	case "stdin":
	case "generator":
		g := config.Source.Generator
		if g.MinWords <= 0 || g.MaxWords < g.MinWords {
			return fmt.Errorf("invalid generator word range: %d-%d", g.MinWords, g.MaxWords)
		}
	case "kafka":
		if len(config.Kafka.BootstrapServers) == 0 {
			return errors.New("kafka.bootstrap_servers is required for kafka source")
		}
		if err := config.Source.Kafka.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported source type: %s", config.Source.Type)
	}

	if config.Record.Format != "raw" && config.Record.Format != "cloudevents" {
		return fmt.Errorf("unsupported record format: %s", config.Record.Format)
	}

	// Port validation
	if config.Observability.Metrics.Enabled {
		if config.Observability.Metrics.Port < 1 || config.Observability.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", config.Observability.Metrics.Port)
		}
	}
	if config.Observability.Health.Enabled {
		if config.Observability.Health.Port < 1 || config.Observability.Health.Port > 65535 {
			return fmt.Errorf("invalid health port: %d", config.Observability.Health.Port)
		}
	}

	return nil
}
