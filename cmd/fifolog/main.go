package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jittakal/fifolog/internal/appender"
	"github.com/jittakal/fifolog/internal/config"
	"github.com/jittakal/fifolog/internal/config/dto"
	"github.com/jittakal/fifolog/internal/encoder"
	"github.com/jittakal/fifolog/internal/kafka"
	"github.com/jittakal/fifolog/internal/observability"
	"github.com/jittakal/fifolog/internal/record"
	"github.com/jittakal/fifolog/internal/server"
	"github.com/jittakal/fifolog/internal/source"
	"github.com/jittakal/fifolog/internal/storage"
	pkgencoder "github.com/jittakal/fifolog/pkg/encoder"
	"github.com/jittakal/fifolog/pkg/sink"
	pkgsource "github.com/jittakal/fifolog/pkg/source"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	// Priority: CLI flag > CONFIG_PATH env var > default path
	var cfgPath string
	if *configPath != "" {
		cfgPath = *configPath
	} else if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		cfgPath = envPath
	} else {
		cfgPath = "config/application.yaml"
	}

	cfg, err := config.NewLoader().Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: cfg.Observability.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting fifolog",
		zap.String("version", cfg.Application.Version),
		zap.String("environment", cfg.Application.Environment),
		zap.String("sink", cfg.Sink.Backend),
		zap.String("source", cfg.Source.Type),
	)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	s, err := newSink(sigCtx, cfg, logger, metrics)
	if err != nil {
		return err
	}

	app, err := appender.New(appender.Config{
		Capacity:      cfg.Buffer.CapacityBytes,
		ChunkSize:     cfg.Buffer.ChunkSizeBytes,
		Terminator:    cfg.Buffer.TerminatorByte(),
		Policy:        appender.OverrunPolicy(cfg.Buffer.OverrunPolicy),
		FlushOnAppend: cfg.Buffer.FlushOnAppend,
	}, s, logger, metrics)
	if err != nil {
		_ = s.Close()
		return err
	}

	formatter, err := record.NewFormatter(cfg.Record.Format, cfg.Record.EventType, cfg.Record.Source)
	if err != nil {
		_ = app.Close(context.Background())
		return err
	}

	src, closeSource, err := newSource(cfg, logger, metrics)
	if err != nil {
		_ = app.Close(context.Background())
		return err
	}

	httpServer := server.NewServer(server.Config{
		HealthEnabled:  cfg.Observability.Health.Enabled,
		HealthPort:     cfg.Observability.Health.Port,
		LivenessPath:   cfg.Observability.Health.LivenessPath,
		ReadinessPath:  cfg.Observability.Health.ReadinessPath,
		MetricsEnabled: cfg.Observability.Metrics.Enabled,
		MetricsPort:    cfg.Observability.Metrics.Port,
		MetricsPath:    cfg.Observability.Metrics.Path,
		FlushTimeout:   cfg.Shutdown.GracePeriod(),
	}, app, registry, logger)

	// The source ending (EOF, generator count) stops everything else too
	ctx, stop := context.WithCancel(sigCtx)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer stop()
		emit := record.Emit(formatter, func(r []byte) error {
			return app.Append(gctx, r)
		})
		if err := src.Run(gctx, emit); err != nil {
			return fmt.Errorf("source %s failed: %w", src.Name(), err)
		}
		logger.Info("source finished", zap.String("source", src.Name()))
		return nil
	})

	g.Go(func() error {
		return app.Run(gctx, cfg.Buffer.FlushInterval())
	})

	g.Go(func() error {
		return httpServer.Run(gctx, cfg.Shutdown.GracePeriod())
	})

	g.Go(func() error {
		rotateOnHangup(gctx, s, logger)
		return nil
	})

	logger.Info("application started successfully")

	runErr := g.Wait()
	if runErr != nil {
		logger.Error("run failed", zap.Error(runErr))
	}

	logger.Info("initiating graceful shutdown", zap.Duration("grace_period", cfg.Shutdown.GracePeriod()))

	if force := cfg.Shutdown.ForceTimeout(); force > 0 {
		timer := time.AfterFunc(force, func() {
			logger.Error("shutdown timed out, forcing exit", zap.Duration("force_timeout", force))
			_ = logger.Sync()
			os.Exit(1)
		})
		defer timer.Stop()
	}

	if closeSource != nil {
		if err := closeSource(); err != nil {
			logger.Warn("failed to close source", zap.Error(err))
		}
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.GracePeriod())
	defer cancel()
	closeErr := app.Close(drainCtx)

	stats := app.Stats()
	logger.Info("application stopped",
		zap.Uint64("appended", stats.Appended),
		zap.Uint64("dropped", stats.Dropped),
		zap.Uint64("bytes_flushed", stats.BytesFlushed),
		zap.Uint64("bytes_lost", stats.BytesLost),
		zap.Int("remaining", stats.Occupancy),
	)

	return errors.Join(runErr, closeErr)
}

// newSink creates the sink for the configured backend.
func newSink(ctx context.Context, cfg *dto.ApplicationConfig, logger *zap.Logger, metrics *observability.Metrics) (sink.Sink, error) {
	stream := cfg.Application.Name

	switch cfg.Sink.Backend {
	case "file":
		fileSink, err := storage.NewFileSink(storage.FileConfig{
			Path:            cfg.Sink.File.Path,
			Fsync:           cfg.Sink.File.Fsync,
			RotationEnabled: cfg.Sink.Rotation.Enabled,
			Rotation: storage.PolicyConfig{
				MaxFileSizeMB:      cfg.Sink.Rotation.MaxFileSizeMB,
				MaxWritesPerFile:   cfg.Sink.Rotation.MaxWritesPerFile,
				MaxDurationSeconds: cfg.Sink.Rotation.MaxDurationSeconds,
				Strategy:           cfg.Sink.Rotation.Strategy,
			},
		}, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create file sink: %w", err)
		}
		return fileSink, nil

	case "s3":
		enc, err := newEncoder(cfg)
		if err != nil {
			return nil, err
		}
		s3Sink, err := storage.NewS3Sink(ctx, storage.S3Config{
			Bucket:       cfg.Sink.S3.Bucket,
			Region:       cfg.Sink.S3.Region,
			BasePath:     cfg.Sink.S3.BasePath,
			Endpoint:     cfg.Sink.S3.Endpoint,
			UsePathStyle: cfg.Sink.S3.UsePathStyle,
			SSEEnabled:   cfg.Sink.S3.SSEEnabled,
			SSEKMSKeyID:  cfg.Sink.S3.SSEKMSKeyID,
		}, stream, enc, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 sink: %w", err)
		}
		return s3Sink, nil

	case "gcs":
		enc, err := newEncoder(cfg)
		if err != nil {
			return nil, err
		}
		credentialsJSON := cfg.Sink.GCS.CredentialsJSON
		if credentialsJSON == "" {
			credentialsJSON = os.Getenv("GCP_CREDENTIALS_JSON")
		}
		gcsSink, err := storage.NewGCSSink(ctx, storage.GCSConfig{
			Bucket:               cfg.Sink.GCS.Bucket,
			ProjectID:            cfg.Sink.GCS.ProjectID,
			BasePath:             cfg.Sink.GCS.BasePath,
			Endpoint:             cfg.Sink.GCS.Endpoint,
			CredentialsFile:      cfg.Sink.GCS.CredentialsFile,
			CredentialsJSON:      credentialsJSON,
			UseDefaultCredential: cfg.Sink.GCS.UseDefaultCredential,
		}, stream, enc, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCS sink: %w", err)
		}
		return gcsSink, nil

	case "azure":
		enc, err := newEncoder(cfg)
		if err != nil {
			return nil, err
		}
		accountKey := cfg.Sink.Azure.AccountKey
		if accountKey == "" {
			accountKey = os.Getenv("AZURE_STORAGE_ACCOUNT_KEY")
		}
		azureSink, err := storage.NewAzureSink(storage.AzureConfig{
			AccountName:   cfg.Sink.Azure.AccountName,
			AccountKey:    accountKey,
			ContainerName: cfg.Sink.Azure.Container,
			BasePath:      cfg.Sink.Azure.BasePath,
			Endpoint:      cfg.Sink.Azure.Endpoint,
		}, stream, enc, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Blob sink: %w", err)
		}
		return azureSink, nil

	case "kafka":
		kafkaSink, err := kafka.NewProducerSink(kafka.ProducerConfig{
			Security:        securityConfig(cfg.Kafka),
			Topic:           cfg.Sink.Kafka.Topic,
			Key:             cfg.Sink.Kafka.Key,
			RequiredAcks:    cfg.Sink.Kafka.RequiredAcks,
			Compression:     cfg.Sink.Kafka.Compression,
			MaxMessageBytes: cfg.Sink.Kafka.MaxMessageBytes,
		}, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka sink: %w", err)
		}
		return kafkaSink, nil

	case "redis":
		redisSink, err := storage.NewRedisSink(ctx, storage.RedisConfig{
			Addr:        cfg.Sink.Redis.Addr,
			Username:    cfg.Sink.Redis.Username,
			Password:    cfg.Sink.Redis.Password,
			DB:          cfg.Sink.Redis.DB,
			Stream:      cfg.Sink.Redis.Stream,
			MaxLen:      cfg.Sink.Redis.MaxLen,
			DialTimeout: time.Duration(cfg.Sink.Redis.DialTimeoutMS) * time.Millisecond,
		}, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis sink: %w", err)
		}
		return redisSink, nil
	}

	return nil, fmt.Errorf("unsupported sink backend: %s (supported: file, s3, gcs, azure, kafka, redis)", cfg.Sink.Backend)
}

// newEncoder creates the segment encoder for object sinks.
func newEncoder(cfg *dto.ApplicationConfig) (pkgencoder.Encoder, error) {
	format := pkgencoder.Format(cfg.Sink.Format)

	var compression string
	switch format {
	case pkgencoder.FormatAvro:
		compression = cfg.Avro.Codec
	case pkgencoder.FormatParquet:
		compression = cfg.Parquet.Compression
	}
	if compression == "" {
		compression = encoder.DefaultCompression(format)
	}

	enc, err := encoder.NewFactory(format, compression).CreateEncoder()
	if err != nil {
		return nil, fmt.Errorf("failed to create %s encoder: %w", format, err)
	}
	return enc, nil
}

// newSource creates the configured record source. The returned close
// function is nil when the source holds no resources.
func newSource(cfg *dto.ApplicationConfig, logger *zap.Logger, metrics *observability.Metrics) (pkgsource.Source, func() error, error) {
	switch cfg.Source.Type {
	case "", "stdin":
		return source.NewLineSource("stdin", os.Stdin, cfg.Buffer.CapacityBytes, logger, metrics), nil, nil

	case "generator":
		gen := source.NewGenerator(source.GeneratorConfig{
			Interval: time.Duration(cfg.Source.Generator.IntervalMS) * time.Millisecond,
			Count:    cfg.Source.Generator.Count,
			MinWords: cfg.Source.Generator.MinWords,
			MaxWords: cfg.Source.Generator.MaxWords,
		}, logger, metrics)
		return gen, nil, nil

	case "kafka":
		consumer, err := kafka.NewConsumerSource(kafka.ConsumerConfig{
			Security:            securityConfig(cfg.Kafka),
			GroupID:             cfg.Source.Kafka.GroupID,
			Topics:              cfg.Source.Kafka.Topics,
			AutoOffsetReset:     cfg.Source.Kafka.AutoOffsetReset,
			SessionTimeoutMS:    cfg.Source.Kafka.SessionTimeoutMS,
			HeartbeatIntervalMS: cfg.Source.Kafka.HeartbeatIntervalMS,
		}, logger, metrics)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create kafka source: %w", err)
		}
		return consumer, consumer.Close, nil
	}

	return nil, nil, fmt.Errorf("unsupported source type: %s (supported: stdin, generator, kafka)", cfg.Source.Type)
}

func securityConfig(c dto.KafkaConfig) kafka.SecurityConfig {
	return kafka.SecurityConfig{
		BootstrapServers: c.BootstrapServers,
		SecurityProtocol: c.SecurityProtocol,
		SASLMechanism:    c.SASLMechanism,
		SASLUsername:     c.SASLUsername,
		SASLPassword:     c.SASLPassword,
		AWSRegion:        c.AWSRegion,
		ClientID:         c.ClientID,
	}
}

// rotateOnHangup rotates a file sink on SIGHUP until ctx is done.
func rotateOnHangup(ctx context.Context, s sink.Sink, logger *zap.Logger) {
	fileSink, ok := s.(*storage.FileSink)
	if !ok {
		return
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := fileSink.Rotate(); err != nil {
				logger.Error("rotation on SIGHUP failed", zap.Error(err))
				continue
			}
			logger.Info("log file rotated on SIGHUP")
		}
	}
}
