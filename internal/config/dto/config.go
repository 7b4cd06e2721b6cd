package dto

import (
	"fmt"
	"time"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Buffer        BufferConfig        `mapstructure:"buffer"`
	Sink          SinkConfig          `mapstructure:"sink"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Source        SourceConfig        `mapstructure:"source"`
	Record        RecordConfig        `mapstructure:"record"`
	Parquet       ParquetConfig       `mapstructure:"parquet"`
	Avro          AvroConfig          `mapstructure:"avro"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Shutdown      ShutdownConfig      `mapstructure:"shutdown"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// BufferConfig contains ring buffer and appender settings
type BufferConfig struct {
	CapacityBytes   int    `mapstructure:"capacity_bytes"`
	ChunkSizeBytes  int    `mapstructure:"chunk_size_bytes"`
	Terminator      string `mapstructure:"terminator"`
	OverrunPolicy   string `mapstructure:"overrun_policy"`
	FlushOnAppend   bool   `mapstructure:"flush_on_append"`
	FlushIntervalMS int    `mapstructure:"flush_interval_ms"`
}

// FlushInterval returns the periodic flush interval.
func (c BufferConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMS) * time.Millisecond
}

// TerminatorByte returns the record terminator.
func (c BufferConfig) TerminatorByte() byte {
	if len(c.Terminator) == 0 {
		return '\n'
	}
	return c.Terminator[0]
}

// Validate validates buffer configuration.
func (c *BufferConfig) Validate() error {
	if c.CapacityBytes <= 0 {
		return fmt.Errorf("buffer capacity must be positive")
	}
	if c.ChunkSizeBytes <= 0 {
		return fmt.Errorf("buffer chunk size must be positive")
	}
	if len(c.Terminator) > 1 {
		return fmt.Errorf("buffer terminator must be a single byte, got %q", c.Terminator)
	}
	if c.OverrunPolicy != "drop" && c.OverrunPolicy != "flush" {
		return fmt.Errorf("unsupported overrun policy: %s", c.OverrunPolicy)
	}
	if c.FlushIntervalMS < 0 {
		return fmt.Errorf("flush interval cannot be negative")
	}
	return nil
}

// SinkConfig contains sink backend configuration
type SinkConfig struct {
	Backend  string          `mapstructure:"backend"`
	Format   string          `mapstructure:"format"`
	File     FileConfig      `mapstructure:"file"`
	Rotation RotationConfig  `mapstructure:"rotation"`
	S3       S3Config        `mapstructure:"s3"`
	Azure    AzureConfig     `mapstructure:"azure"`
	GCS      GCSConfig       `mapstructure:"gcs"`
	Kafka    KafkaSinkConfig `mapstructure:"kafka"`
	Redis    RedisConfig     `mapstructure:"redis"`
}

// FileConfig contains local filesystem configuration
type FileConfig struct {
	Path  string `mapstructure:"path"`
	Fsync bool   `mapstructure:"fsync"`
}

// Validate validates file configuration.
func (c *FileConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("file path is required")
	}
	return nil
}

// RotationConfig contains log file rotation settings
type RotationConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	MaxFileSizeMB      int64  `mapstructure:"max_file_size_mb"`
	MaxWritesPerFile   int    `mapstructure:"max_writes_per_file"`
	MaxDurationSeconds int    `mapstructure:"max_duration_seconds"`
	Strategy           string `mapstructure:"strategy"`
}

// S3Config contains AWS S3 configuration
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	BasePath     string `mapstructure:"base_path"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// Validate validates S3 configuration.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// AzureConfig contains Azure Blob Storage configuration
type AzureConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Container   string `mapstructure:"container"`
	BasePath    string `mapstructure:"base_path"`
	Endpoint    string `mapstructure:"endpoint"`
}

// Validate validates Azure configuration.
func (c *AzureConfig) Validate() error {
	if c.AccountName == "" {
		return fmt.Errorf("azure account name is required")
	}
	if c.Container == "" {
		return fmt.Errorf("azure container is required")
	}
	return nil
}

// GCSConfig contains Google Cloud Storage configuration
type GCSConfig struct {
	Bucket               string `mapstructure:"bucket"`
	ProjectID            string `mapstructure:"project_id"`
	BasePath             string `mapstructure:"base_path"`
	Endpoint             string `mapstructure:"endpoint"`
	CredentialsFile      string `mapstructure:"credentials_file"`
	CredentialsJSON      string `mapstructure:"credentials_json"`
	UseDefaultCredential bool   `mapstructure:"use_default_credential"`
}

// Validate validates GCS configuration.
func (c *GCSConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("gcs bucket is required")
	}
	return nil
}

// KafkaSinkConfig contains settings for the Kafka sink
type KafkaSinkConfig struct {
	Topic           string `mapstructure:"topic"`
	Key             string `mapstructure:"key"`
	RequiredAcks    string `mapstructure:"required_acks"`
	Compression     string `mapstructure:"compression"`
	MaxMessageBytes int    `mapstructure:"max_message_bytes"`
}

// Validate validates Kafka sink configuration.
func (c *KafkaSinkConfig) Validate() error {
	if c.Topic == "" {
		return fmt.Errorf("kafka sink topic is required")
	}
	return nil
}

// RedisConfig contains settings for the Redis stream sink
type RedisConfig struct {
	Addr          string `mapstructure:"addr"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	Stream        string `mapstructure:"stream"`
	MaxLen        int64  `mapstructure:"max_len"`
	DialTimeoutMS int    `mapstructure:"dial_timeout_ms"`
}

// Validate validates Redis configuration.
func (c *RedisConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	if c.Stream == "" {
		return fmt.Errorf("redis stream is required")
	}
	return nil
}

// KafkaConfig contains Kafka connection settings shared by the Kafka sink
// and the Kafka source
type KafkaConfig struct {
	BootstrapServers []string `mapstructure:"bootstrap_servers"`
	SecurityProtocol string   `mapstructure:"security_protocol"`
	SASLMechanism    string   `mapstructure:"sasl_mechanism"`
	SASLUsername     string   `mapstructure:"sasl_username"`
	SASLPassword     string   `mapstructure:"sasl_password"`
	AWSRegion        string   `mapstructure:"aws_region"`
	ClientID         string   `mapstructure:"client_id"`
}

// SourceConfig contains record source settings
type SourceConfig struct {
	Type      string            `mapstructure:"type"`
	Generator GeneratorConfig   `mapstructure:"generator"`
	Kafka     KafkaSourceConfig `mapstructure:"kafka"`
}

// GeneratorConfig contains synthetic record generator settings
type GeneratorConfig struct {
	IntervalMS int `mapstructure:"interval_ms"`
	Count      int `mapstructure:"count"`
	MinWords   int `mapstructure:"min_words"`
	MaxWords   int `mapstructure:"max_words"`
}

// KafkaSourceConfig contains Kafka consumer group settings
type KafkaSourceConfig struct {
	GroupID             string   `mapstructure:"group_id"`
	Topics              []string `mapstructure:"topics"`
	AutoOffsetReset     string   `mapstructure:"auto_offset_reset"`
	SessionTimeoutMS    int      `mapstructure:"session_timeout_ms"`
	HeartbeatIntervalMS int      `mapstructure:"heartbeat_interval_ms"`
}

// Validate validates Kafka source configuration.
func (c *KafkaSourceConfig) Validate() error {
	if c.GroupID == "" {
		return fmt.Errorf("kafka consumer group ID is required")
	}
	if len(c.Topics) == 0 {
		return fmt.Errorf("kafka consumer topics are required")
	}
	return nil
}

// RecordConfig contains record formatting settings
type RecordConfig struct {
	Format    string `mapstructure:"format"`
	EventType string `mapstructure:"event_type"`
	Source    string `mapstructure:"source"`
}

// ParquetConfig contains Parquet format settings
type ParquetConfig struct {
	Compression string `mapstructure:"compression"`
}

// AvroConfig contains Avro format settings
type AvroConfig struct {
	Codec string `mapstructure:"codec"`
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// HealthConfig contains admin server settings
type HealthConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Port          int    `mapstructure:"port"`
	LivenessPath  string `mapstructure:"liveness_path"`
	ReadinessPath string `mapstructure:"readiness_path"`
}

// ShutdownConfig contains shutdown settings
type ShutdownConfig struct {
	GracePeriodSeconds  int `mapstructure:"grace_period_seconds"`
	ForceTimeoutSeconds int `mapstructure:"force_timeout_seconds"`
}

// GracePeriod returns the time allowed for the final drain.
func (c ShutdownConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodSeconds) * time.Second
}

// ForceTimeout returns the hard shutdown deadline.
func (c ShutdownConfig) ForceTimeout() time.Duration {
	return time.Duration(c.ForceTimeoutSeconds) * time.Second
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.Application.Name == "" {
		return fmt.Errorf("application name is required")
	}
	if c.Sink.Backend == "" {
		return fmt.Errorf("sink backend is required")
	}
	return c.Buffer.Validate()
}
